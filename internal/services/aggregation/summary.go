package aggregation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
)

// Summarizer describes reduced metrics in prose. Implementations may fail for
// any reason; GenerateSummary absorbs the failure.
type Summarizer interface {
	Summarize(ctx context.Context, metrics models.MetricsSummary, window models.TimeWindow) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, metrics models.MetricsSummary, window models.TimeWindow) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, metrics models.MetricsSummary, window models.TimeWindow) (string, error) {
	return f(ctx, metrics, window)
}

var errNoSummarizer = errors.New("no summarizer configured")

// fallbackWastedItems is the category claim made by the fallback narrative.
// TODO: derive the claim from the breakdown once product confirms the
// fallback should name the actual top categories.
const fallbackWastedItems = "fruits and vegetables"

// GenerateSummary asks the summarizer to describe metrics. It never returns an
// error: any failure, a blank response, or a nil summarizer yields the local
// fallback narrative instead.
func GenerateSummary(ctx context.Context, metrics models.MetricsSummary, window models.TimeWindow, summarizer Summarizer) models.NarrativeResult {
	window = window.Normalize()

	text, err := callSummarizer(ctx, metrics, window, summarizer)
	if err != nil {
		logger.Warn("summarizer unavailable, using fallback narrative",
			"bin_id", metrics.BinID, "window", window.String(), "error", err)
		return models.NarrativeResult{
			Metrics:    metrics,
			Text:       FallbackNarrative(metrics, window),
			Provenance: models.ProvenanceFallback,
		}
	}

	return models.NarrativeResult{
		Metrics:    metrics,
		Text:       text,
		Provenance: models.ProvenanceGenerated,
	}
}

func callSummarizer(ctx context.Context, metrics models.MetricsSummary, window models.TimeWindow, summarizer Summarizer) (text string, err error) {
	if summarizer == nil {
		return "", errNoSummarizer
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("summarizer panicked: %v", r)
		}
	}()

	text, err = summarizer.Summarize(ctx, metrics, window)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("summarizer returned an empty response")
	}
	return text, nil
}

// FallbackNarrative builds the deterministic degraded-mode description.
func FallbackNarrative(metrics models.MetricsSummary, window models.TimeWindow) string {
	return fmt.Sprintf("Over %s, this bin averaged a food score of %.1f. The most wasted items are %s.",
		strings.ToLower(window.Label()), metrics.Averages.FoodScore, fallbackWastedItems)
}
