// Package summarizer provides the narrative backends used by the aggregation
// engine: the bin backend's AI analysis endpoint and a local Ollama model.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sony/gobreaker/v2"

	"github.com/j-veylop/binwatch-tui/internal/config"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/aggregation"
)

// ErrDisabled is returned by the summarizer used when narratives are off.
var ErrDisabled = errors.New("summarizer disabled")

// AnalysisClient is the part of the backend client the Backend summarizer
// needs.
type AnalysisClient interface {
	AIAnalysis(ctx context.Context, binID int64, window models.TimeWindow) (string, error)
}

// Backend asks the bin backend to analyze a bin. Repeated failures open a
// breaker so later requests fall back immediately.
type Backend struct {
	client  AnalysisClient
	breaker *gobreaker.CircuitBreaker[string]
	timeout time.Duration
}

// NewBackend creates a backend summarizer with a per-call timeout.
func NewBackend(client AnalysisClient, timeout time.Duration) *Backend {
	return &Backend{
		client:  client,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "ai-analysis",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				// A superseded request is not the backend's fault.
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Summarize implements aggregation.Summarizer.
func (b *Backend) Summarize(ctx context.Context, metrics models.MetricsSummary, window models.TimeWindow) (string, error) {
	if metrics.BinID <= 0 {
		return "", errors.New("metrics are not tied to a bin")
	}

	return b.breaker.Execute(func() (string, error) {
		ctx, cancel := withTimeout(ctx, b.timeout)
		defer cancel()
		return b.client.AIAnalysis(ctx, metrics.BinID, window)
	})
}

// Ollama generates narratives with a local Ollama model.
type Ollama struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewOllama creates an Ollama summarizer for the server at rawURL.
func NewOllama(rawURL, model string, timeout time.Duration) (*Ollama, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", rawURL, err)
	}
	if model == "" {
		return nil, errors.New("ollama model is required")
	}

	return &Ollama{
		client:  api.NewClient(base, &http.Client{}),
		model:   model,
		timeout: timeout,
	}, nil
}

const systemPrompt = "You are a sustainability assistant for a school cafeteria. " +
	"Given waste statistics from a smart food-waste bin, write two or three short " +
	"sentences for staff: what is wasted most, how the food score looks, and one " +
	"concrete suggestion. Do not repeat the raw numbers as a list."

// Summarize implements aggregation.Summarizer.
func (o *Ollama) Summarize(ctx context.Context, metrics models.MetricsSummary, window models.TimeWindow) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		System: systemPrompt,
		Prompt: BuildPrompt(metrics, window),
		Stream: &stream,
	}

	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Model returns the configured model name.
func (o *Ollama) Model() string {
	return o.model
}

// BuildPrompt renders metrics as the user prompt for a language model.
func BuildPrompt(metrics models.MetricsSummary, window models.TimeWindow) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Time range: %s (%d snapshots)\n", window.Label(), metrics.SnapshotCount)
	fmt.Fprintf(&sb, "Average food score: %.2f on a scale of 0 (clean) to %d (heavy waste)\n",
		metrics.Averages.FoodScore, models.MaxFoodScore)
	fmt.Fprintf(&sb, "Average surface area at 100%%: %.1f\n", metrics.Averages.PercentHundredSurfaceArea)
	sb.WriteString("Average items per snapshot and share of waste:\n")
	for _, c := range models.WasteCategories {
		fmt.Fprintf(&sb, "- %s: %.2f (%.1f%%)\n", c, metrics.Averages.Mean(c), metrics.Breakdown.Share(c))
	}
	return sb.String()
}

// Disabled always fails, so every narrative is the local fallback.
type Disabled struct{}

// Summarize implements aggregation.Summarizer.
func (Disabled) Summarize(context.Context, models.MetricsSummary, models.TimeWindow) (string, error) {
	return "", ErrDisabled
}

// New builds the summarizer selected by cfg.
func New(cfg *config.Config, client AnalysisClient) (aggregation.Summarizer, error) {
	switch cfg.Summarizer {
	case config.SummarizerBackend:
		return NewBackend(client, cfg.SummaryTimeout), nil
	case config.SummarizerOllama:
		o, err := NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.SummaryTimeout)
		if err != nil {
			return nil, err
		}
		return o, nil
	case config.SummarizerOff:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown summarizer %q", cfg.Summarizer)
	}
}

// Describe returns a short label for the info tab.
func Describe(cfg *config.Config) string {
	switch cfg.Summarizer {
	case config.SummarizerBackend:
		return "bin backend (" + cfg.APIURL + ")"
	case config.SummarizerOllama:
		return "ollama " + cfg.OllamaModel + " (" + cfg.OllamaURL + ")"
	default:
		return "off (local fallback text)"
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
