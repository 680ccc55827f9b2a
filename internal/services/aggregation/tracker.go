package aggregation

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/j-veylop/binwatch-tui/internal/models"
)

// Request identifies one aggregation run. Results are only presented while
// their generation is still the tracker's current one.
type Request struct {
	ID         string
	Window     models.TimeWindow
	BinID      int64
	Generation uint64
}

// Tracker implements last-request-wins for aggregation runs. Each Begin
// supersedes the previous request and cancels its context.
type Tracker struct {
	cancel     context.CancelFunc
	current    Request
	generation uint64
	mu         sync.Mutex
}

// NewTracker creates a tracker with no request in flight.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin starts a new request for a bin and window and returns a context that
// is cancelled as soon as a newer request begins.
func (t *Tracker) Begin(parent context.Context, binID int64, window models.TimeWindow) (context.Context, Request) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	t.generation++
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.current = Request{
		ID:         uuid.NewString(),
		Window:     window.Normalize(),
		BinID:      binID,
		Generation: t.generation,
	}
	return ctx, t.current
}

// IsCurrent reports whether results for generation may still be presented.
func (t *Tracker) IsCurrent(generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return generation != 0 && generation == t.generation
}

// Current returns the latest request.
func (t *Tracker) Current() Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Finish releases the context of generation once its result has been
// delivered. Finishing a stale generation is a no-op.
func (t *Tracker) Finish(generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if generation == t.generation && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Stop cancels any request in flight.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
