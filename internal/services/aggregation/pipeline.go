package aggregation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
)

// SnapshotSource returns the complete snapshot series of a bin. The engine
// does its own windowing and never asks for pre-filtered data.
type SnapshotSource interface {
	ListSnapshots(ctx context.Context, binID int64) ([]models.Snapshot, error)
}

// State is a step of an aggregation run.
type State int

const (
	// StateIdle means no run has started.
	StateIdle State = iota
	// StateFiltering selects the window's snapshots.
	StateFiltering
	// StateReducing computes the metrics.
	StateReducing
	// StateSummarizing waits for the narrative.
	StateSummarizing
	// StateGenerated presents a summarizer narrative.
	StateGenerated
	// StateFallback presents the local fallback narrative.
	StateFallback
	// StateEmptyWindow presents the no-data state; no narrative is requested.
	StateEmptyWindow
	// StateFailed means the snapshot series could not be loaded.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFiltering:
		return "filtering"
	case StateReducing:
		return "reducing"
	case StateSummarizing:
		return "summarizing"
	case StateGenerated:
		return "generated"
	case StateFallback:
		return "fallback"
	case StateEmptyWindow:
		return "empty_window"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateGenerated || s == StateFallback || s == StateEmptyWindow || s == StateFailed
}

// Outcome is the terminal result of a run.
type Outcome struct {
	Err       error
	Narrative models.NarrativeResult
	Request   Request
	State     State
}

// Metrics returns the reduced metrics of the outcome.
func (o Outcome) Metrics() models.MetricsSummary {
	return o.Narrative.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to anchor windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine runs Filter, Reduce and Summarize over a snapshot source.
type Engine struct {
	source     SnapshotSource
	summarizer Summarizer
	now        func() time.Time
}

// NewEngine creates an engine. A nil summarizer always yields fallback text.
func NewEngine(source SnapshotSource, summarizer Summarizer, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		summarizer: summarizer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summarizer returns the configured summarizer.
func (e *Engine) Summarizer() Summarizer {
	return e.summarizer
}

// Metrics loads the bin's series, filters it to the request window and
// reduces it. It returns ErrEmptyWindow when the window holds no snapshots.
func (e *Engine) Metrics(ctx context.Context, req Request) (models.MetricsSummary, error) {
	if e.source == nil {
		return models.MetricsSummary{}, errors.New("no snapshot source configured")
	}

	snapshots, err := e.source.ListSnapshots(ctx, req.BinID)
	if err != nil {
		return models.MetricsSummary{}, fmt.Errorf("failed to load snapshots for bin %d: %w", req.BinID, err)
	}

	return Compute(snapshots, req, e.now())
}

// Summarize produces the narrative for metrics already reduced for req.
func (e *Engine) Summarize(ctx context.Context, req Request, metrics models.MetricsSummary) Outcome {
	narrative := GenerateSummary(ctx, metrics, req.Window, e.summarizer)
	state := StateGenerated
	if narrative.IsFallback() {
		state = StateFallback
	}
	logger.Debug("aggregation finished",
		"request_id", req.ID, "generation", req.Generation, "state", state.String())
	return Outcome{Request: req, State: state, Narrative: narrative}
}

// Run executes a whole request and returns its terminal outcome.
func (e *Engine) Run(ctx context.Context, req Request) Outcome {
	metrics, err := e.Metrics(ctx, req)
	if err != nil {
		return failedOutcome(req, metrics, err)
	}
	return e.Summarize(ctx, req, metrics)
}

// Compute filters snapshots to the request window anchored at now and
// reduces them. The result is tagged with the request's bin and window.
func Compute(snapshots []models.Snapshot, req Request, now time.Time) (models.MetricsSummary, error) {
	filtered := FilterByWindow(snapshots, req.Window, now)

	metrics, err := Reduce(filtered)
	metrics.BinID = req.BinID
	metrics.Window = req.Window.Normalize()
	return metrics, err
}

// Aggregate runs the whole pipeline over an in-memory series.
func Aggregate(ctx context.Context, snapshots []models.Snapshot, req Request, now time.Time, summarizer Summarizer) Outcome {
	metrics, err := Compute(snapshots, req, now)
	if err != nil {
		return failedOutcome(req, metrics, err)
	}
	return NewEngine(nil, summarizer, WithClock(func() time.Time { return now })).Summarize(ctx, req, metrics)
}

// OutcomeForError maps a Metrics error to its terminal outcome.
func OutcomeForError(req Request, err error) Outcome {
	return failedOutcome(req, models.MetricsSummary{BinID: req.BinID, Window: req.Window}, err)
}

func failedOutcome(req Request, metrics models.MetricsSummary, err error) Outcome {
	state := StateFailed
	if errors.Is(err, ErrEmptyWindow) {
		state = StateEmptyWindow
	}
	return Outcome{
		Request:   req,
		State:     state,
		Err:       err,
		Narrative: models.NarrativeResult{Metrics: metrics},
	}
}
