package aggregation

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/j-veylop/binwatch-tui/internal/models"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func snap(id int64, age time.Duration, trays, score int) models.Snapshot {
	return models.Snapshot{
		ID:        id,
		BinID:     7,
		Timestamp: testNow.Add(-age),
		FoodTrays: trays,
		FoodScore: score,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFilterByWindow(t *testing.T) {
	series := []models.Snapshot{
		snap(1, 400*24*time.Hour, 0, 0),
		snap(2, 20*24*time.Hour, 0, 0),
		snap(3, 10*24*time.Hour, 0, 0),
		snap(4, 3*24*time.Hour, 0, 0),
		snap(5, 2*time.Hour, 0, 0),
	}

	tests := []struct {
		window models.TimeWindow
		want   []int64
	}{
		{models.Window1Day, []int64{5}},
		{models.Window1Week, []int64{4, 5}},
		{models.Window2Weeks, []int64{3, 4, 5}},
		{models.Window1Month, []int64{2, 3, 4, 5}},
		{models.Window1Year, []int64{2, 3, 4, 5}},
		{models.WindowAllTime, []int64{1, 2, 3, 4, 5}},
		{models.TimeWindow("bogus"), []int64{4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.window.String(), func(t *testing.T) {
			got := FilterByWindow(series, tt.window, testNow)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterByWindow(%s) returned %d snapshots, want %d", tt.window, len(got), len(tt.want))
			}
			for i, s := range got {
				if s.ID != tt.want[i] {
					t.Errorf("snapshot %d has ID %d, want %d", i, s.ID, tt.want[i])
				}
			}
		})
	}
}

func TestFilterByWindow_CutoffInclusive(t *testing.T) {
	series := []models.Snapshot{
		{ID: 1, Timestamp: testNow.AddDate(0, 0, -7)},
		{ID: 2, Timestamp: testNow.AddDate(0, 0, -7).Add(-time.Nanosecond)},
	}

	got := FilterByWindow(series, models.Window1Week, testNow)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Expected only the snapshot at the cutoff, got %+v", got)
	}
}

func TestFilterByWindow_MonthEnd(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	// AddDate normalizes Feb 31 to Mar 2.
	series := []models.Snapshot{
		{ID: 1, Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{ID: 2, Timestamp: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)},
	}

	got := FilterByWindow(series, models.Window1Month, now)
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("Expected calendar month cutoff at Mar 2, got %+v", got)
	}
}

func TestFilterByWindow_DoesNotAlias(t *testing.T) {
	series := []models.Snapshot{snap(1, time.Hour, 1, 0)}

	for _, w := range []models.TimeWindow{models.Window1Day, models.WindowAllTime} {
		got := FilterByWindow(series, w, testNow)
		got[0].FoodTrays = 99
		if series[0].FoodTrays != 1 {
			t.Fatalf("FilterByWindow(%s) shares the input backing array", w)
		}
	}
}

func TestFilterByWindow_Subset(t *testing.T) {
	series := []models.Snapshot{
		snap(1, 30*24*time.Hour, 1, 0),
		snap(2, 5*time.Hour, 2, 1),
		snap(3, time.Hour, 3, 2),
	}

	for _, w := range models.TimeWindows {
		got := FilterByWindow(series, w, testNow)
		if len(got) > len(series) {
			t.Errorf("FilterByWindow(%s) grew the series", w)
		}
		if cutoff, ok := w.Cutoff(testNow); ok {
			for _, s := range got {
				if s.Timestamp.Before(cutoff) {
					t.Errorf("FilterByWindow(%s) kept snapshot %d before cutoff", w, s.ID)
				}
			}
		}
	}
}

func TestFilterByWindow_ZeroNowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for zero now")
		}
	}()
	FilterByWindow(nil, models.Window1Day, time.Time{})
}

func TestReduce(t *testing.T) {
	var series []models.Snapshot
	for i, score := range []int{0, 0, 1, 1, 2} {
		series = append(series, snap(int64(i+1), time.Hour, i+1, score))
	}

	got, err := Reduce(series)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if !approxEqual(got.Averages.FoodTrays, 3) {
		t.Errorf("Expected mean food trays 3, got %v", got.Averages.FoodTrays)
	}
	if !approxEqual(got.Averages.FoodScore, 0.8) {
		t.Errorf("Expected mean food score 0.8, got %v", got.Averages.FoodScore)
	}
	if !approxEqual(got.Breakdown.FoodTrays, 100) {
		t.Errorf("Expected food trays share 100, got %v", got.Breakdown.FoodTrays)
	}
	if got.Breakdown.FruitPortions != 0 || got.Breakdown.MilkCartons != 0 {
		t.Errorf("Expected zero share for absent categories, got %+v", got.Breakdown)
	}
	if got.SnapshotCount != 5 {
		t.Errorf("Expected snapshot count 5, got %d", got.SnapshotCount)
	}
}

func TestReduce_MixedBreakdownSumsTo100(t *testing.T) {
	series := []models.Snapshot{
		{ID: 1, FoodTrays: 3, UnfinishedBurgers: 1, MilkCartons: 2, VegetablePortions: 0, FruitPortions: 4},
		{ID: 2, FoodTrays: 1, UnfinishedBurgers: 2, MilkCartons: 5, VegetablePortions: 7, FruitPortions: 0},
		{ID: 3, FoodTrays: 0, UnfinishedBurgers: 0, MilkCartons: 1, VegetablePortions: 1, FruitPortions: 1},
	}

	got, err := Reduce(series)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if !approxEqual(got.Breakdown.Total(), 100) {
		t.Errorf("Expected shares to sum to 100, got %v", got.Breakdown.Total())
	}
	for _, c := range models.WasteCategories {
		share := got.Breakdown.Share(c)
		if share < 0 || share > 100 {
			t.Errorf("Share of %s out of range: %v", c, share)
		}
	}
	if !approxEqual(got.Averages.MilkCartons, 8.0/3.0) {
		t.Errorf("Expected unrounded mean milk cartons, got %v", got.Averages.MilkCartons)
	}
}

func TestReduce_AllZeroCategories(t *testing.T) {
	series := []models.Snapshot{
		{ID: 1, FoodScore: 2, IsEmpty: true},
		{ID: 2, FoodScore: 0, IsEmpty: true},
	}

	got, err := Reduce(series)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if got.Breakdown != (models.Breakdown{}) {
		t.Errorf("Expected all-zero breakdown, got %+v", got.Breakdown)
	}
	for _, c := range models.WasteCategories {
		if math.IsNaN(got.Breakdown.Share(c)) {
			t.Errorf("Share of %s is NaN", c)
		}
	}
	if !approxEqual(got.Averages.FoodScore, 1) {
		t.Errorf("Expected mean food score 1, got %v", got.Averages.FoodScore)
	}
}

func TestReduce_Empty(t *testing.T) {
	if _, err := Reduce(nil); !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("Expected ErrEmptyWindow, got %v", err)
	}
}

func TestReduce_OrderIndependent(t *testing.T) {
	a := []models.Snapshot{
		{ID: 1, FoodTrays: 1, FruitPortions: 3, FoodScore: 1},
		{ID: 2, FoodTrays: 4, FruitPortions: 0, FoodScore: 3},
		{ID: 3, FoodTrays: 2, FruitPortions: 2, FoodScore: 0},
	}
	b := []models.Snapshot{a[2], a[0], a[1]}

	ra, _ := Reduce(a)
	rb, _ := Reduce(b)
	if !approxEqual(ra.Averages.FoodTrays, rb.Averages.FoodTrays) ||
		!approxEqual(ra.Breakdown.FruitPortions, rb.Breakdown.FruitPortions) {
		t.Errorf("Reduce depends on input order: %+v vs %+v", ra, rb)
	}
}

func TestGenerateSummary_Generated(t *testing.T) {
	var gotWindow models.TimeWindow
	summarizer := SummarizerFunc(func(_ context.Context, _ models.MetricsSummary, w models.TimeWindow) (string, error) {
		gotWindow = w
		return "Waste is trending down.", nil
	})

	metrics := models.MetricsSummary{BinID: 7, Window: models.Window2Weeks}
	got := GenerateSummary(context.Background(), metrics, models.Window2Weeks, summarizer)

	if got.Provenance != models.ProvenanceGenerated {
		t.Errorf("Expected generated provenance, got %s", got.Provenance)
	}
	if got.Text != "Waste is trending down." {
		t.Errorf("Unexpected text %q", got.Text)
	}
	if gotWindow != models.Window2Weeks {
		t.Errorf("Summarizer received window %s", gotWindow)
	}
	if got.Metrics.BinID != 7 {
		t.Errorf("Expected metrics to be carried through")
	}
}

func TestGenerateSummary_Fallback(t *testing.T) {
	metrics := models.MetricsSummary{Averages: models.Averages{FoodScore: 0.8}}
	want := "Over last week, this bin averaged a food score of 0.8. The most wasted items are fruits and vegetables."

	tests := []struct {
		summarizer Summarizer
		name       string
	}{
		{name: "nil summarizer"},
		{
			name: "error",
			summarizer: SummarizerFunc(func(context.Context, models.MetricsSummary, models.TimeWindow) (string, error) {
				return "", errors.New("backend down")
			}),
		},
		{
			name: "blank response",
			summarizer: SummarizerFunc(func(context.Context, models.MetricsSummary, models.TimeWindow) (string, error) {
				return "   \n", nil
			}),
		},
		{
			name: "panic",
			summarizer: SummarizerFunc(func(context.Context, models.MetricsSummary, models.TimeWindow) (string, error) {
				panic("boom")
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSummary(context.Background(), metrics, models.Window1Week, tt.summarizer)
			if !got.IsFallback() {
				t.Fatalf("Expected fallback provenance, got %s", got.Provenance)
			}
			if got.Text != want {
				t.Errorf("Fallback text = %q, want %q", got.Text, want)
			}
		})
	}
}

func TestGenerateSummary_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	summarizer := SummarizerFunc(func(context.Context, models.MetricsSummary, models.TimeWindow) (string, error) {
		called = true
		return "text", nil
	})

	got := GenerateSummary(ctx, models.MetricsSummary{}, models.Window1Day, summarizer)
	if called {
		t.Error("Summarizer should not be called with a cancelled context")
	}
	if !got.IsFallback() {
		t.Error("Expected fallback for cancelled context")
	}
}

func TestFallbackNarrative_Labels(t *testing.T) {
	metrics := models.MetricsSummary{Averages: models.Averages{FoodScore: 2.26}}

	tests := []struct {
		window models.TimeWindow
		prefix string
	}{
		{models.Window1Day, "Over last 24 hours,"},
		{models.Window1Month, "Over last month,"},
		{models.WindowAllTime, "Over all time,"},
		{models.TimeWindow("nope"), "Over last week,"},
	}

	for _, tt := range tests {
		got := FallbackNarrative(metrics, tt.window.Normalize())
		if !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("FallbackNarrative(%s) = %q, want prefix %q", tt.window, got, tt.prefix)
		}
		if !strings.Contains(got, "food score of 2.3") {
			t.Errorf("Expected one decimal food score in %q", got)
		}
	}
}

type stubSource struct {
	err       error
	snapshots []models.Snapshot
	calls     atomic.Int32
}

func (s *stubSource) ListSnapshots(context.Context, int64) ([]models.Snapshot, error) {
	s.calls.Add(1)
	return s.snapshots, s.err
}

func TestEngineRun(t *testing.T) {
	source := &stubSource{snapshots: []models.Snapshot{
		snap(1, time.Hour, 2, 1),
		snap(2, 3*time.Hour, 4, 3),
		snap(3, 40*24*time.Hour, 100, 3),
	}}
	summarizer := SummarizerFunc(func(_ context.Context, m models.MetricsSummary, _ models.TimeWindow) (string, error) {
		return "ok", nil
	})

	engine := NewEngine(source, summarizer, WithClock(func() time.Time { return testNow }))
	tracker := NewTracker()
	ctx, req := tracker.Begin(context.Background(), 7, models.Window1Day)

	out := engine.Run(ctx, req)
	if out.State != StateGenerated {
		t.Fatalf("Expected generated state, got %s (err %v)", out.State, out.Err)
	}
	m := out.Metrics()
	if m.SnapshotCount != 2 || !approxEqual(m.Averages.FoodTrays, 3) {
		t.Errorf("Unexpected metrics %+v", m)
	}
	if m.BinID != 7 || m.Window != models.Window1Day {
		t.Errorf("Expected metrics tagged with bin 7 and 1_day, got %d %s", m.BinID, m.Window)
	}
}

func TestEngineRun_EmptyWindowSkipsSummarizer(t *testing.T) {
	source := &stubSource{snapshots: []models.Snapshot{snap(1, 90*24*time.Hour, 1, 1)}}
	called := false
	summarizer := SummarizerFunc(func(context.Context, models.MetricsSummary, models.TimeWindow) (string, error) {
		called = true
		return "text", nil
	})

	engine := NewEngine(source, summarizer, WithClock(func() time.Time { return testNow }))
	out := engine.Run(context.Background(), Request{BinID: 7, Window: models.Window1Week, Generation: 1})

	if out.State != StateEmptyWindow {
		t.Errorf("Expected empty window state, got %s", out.State)
	}
	if !errors.Is(out.Err, ErrEmptyWindow) {
		t.Errorf("Expected ErrEmptyWindow, got %v", out.Err)
	}
	if called {
		t.Error("Summarizer must not be called for an empty window")
	}
}

func TestEngineRun_SourceError(t *testing.T) {
	source := &stubSource{err: errors.New("disk on fire")}
	engine := NewEngine(source, nil, WithClock(func() time.Time { return testNow }))

	out := engine.Run(context.Background(), Request{BinID: 7, Window: models.Window1Week})
	if out.State != StateFailed {
		t.Errorf("Expected failed state, got %s", out.State)
	}
	if out.Err == nil || !strings.Contains(out.Err.Error(), "disk on fire") {
		t.Errorf("Expected wrapped source error, got %v", out.Err)
	}
}

func TestEngineRun_Fallback(t *testing.T) {
	source := &stubSource{snapshots: []models.Snapshot{snap(1, time.Hour, 1, 3)}}
	summarizer := SummarizerFunc(func(context.Context, models.MetricsSummary, models.TimeWindow) (string, error) {
		return "", errors.New("timeout")
	})

	engine := NewEngine(source, summarizer, WithClock(func() time.Time { return testNow }))
	out := engine.Run(context.Background(), Request{BinID: 7, Window: models.WindowAllTime})

	if out.State != StateFallback {
		t.Fatalf("Expected fallback state, got %s", out.State)
	}
	if !strings.HasPrefix(out.Narrative.Text, "Over all time, this bin averaged a food score of 3.0.") {
		t.Errorf("Unexpected fallback text %q", out.Narrative.Text)
	}
}

func TestAggregate(t *testing.T) {
	series := []models.Snapshot{snap(1, time.Hour, 5, 2)}
	out := Aggregate(context.Background(), series, Request{BinID: 7, Window: models.Window1Day}, testNow, nil)

	if out.State != StateFallback {
		t.Errorf("Expected fallback with nil summarizer, got %s", out.State)
	}
	if out.Metrics().SnapshotCount != 1 {
		t.Errorf("Expected one snapshot, got %d", out.Metrics().SnapshotCount)
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateIdle:        false,
		StateFiltering:   false,
		StateReducing:    false,
		StateSummarizing: false,
		StateGenerated:   true,
		StateFallback:    true,
		StateEmptyWindow: true,
		StateFailed:      true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestTracker_LastRequestWins(t *testing.T) {
	tracker := NewTracker()

	ctxA, reqA := tracker.Begin(context.Background(), 7, models.Window1Day)
	ctxB, reqB := tracker.Begin(context.Background(), 7, models.Window1Month)

	if reqB.Generation <= reqA.Generation {
		t.Fatalf("Expected increasing generations, got %d then %d", reqA.Generation, reqB.Generation)
	}
	if tracker.IsCurrent(reqA.Generation) {
		t.Error("Superseded request must not be current")
	}
	if !tracker.IsCurrent(reqB.Generation) {
		t.Error("Latest request must be current")
	}
	if ctxA.Err() == nil {
		t.Error("Superseded request context should be cancelled")
	}
	if ctxB.Err() != nil {
		t.Error("Current request context should be live")
	}
	if reqA.ID == reqB.ID || reqA.ID == "" {
		t.Errorf("Expected distinct request IDs, got %q and %q", reqA.ID, reqB.ID)
	}
	if tracker.Current().Window != models.Window1Month {
		t.Errorf("Expected current window 1_month, got %s", tracker.Current().Window)
	}
}

func TestTracker_FinishStaleIsNoop(t *testing.T) {
	tracker := NewTracker()

	_, reqA := tracker.Begin(context.Background(), 1, models.Window1Day)
	ctxB, _ := tracker.Begin(context.Background(), 1, models.Window1Week)

	tracker.Finish(reqA.Generation)
	if ctxB.Err() != nil {
		t.Error("Finishing a stale generation must not cancel the current one")
	}

	tracker.Stop()
	if ctxB.Err() == nil {
		t.Error("Stop should cancel the request in flight")
	}
}

func TestTracker_NormalizesWindow(t *testing.T) {
	tracker := NewTracker()
	_, req := tracker.Begin(context.Background(), 1, models.TimeWindow("decade"))
	if req.Window != models.DefaultWindow {
		t.Errorf("Expected default window, got %s", req.Window)
	}
	if tracker.IsCurrent(0) {
		t.Error("Generation zero is never current")
	}
}

// Simulates a slow 1_day summary completing after a 1_month request began.
func TestTracker_DiscardsLateResult(t *testing.T) {
	tracker := NewTracker()
	release := make(chan struct{})
	results := make(chan Outcome, 2)

	slow := SummarizerFunc(func(ctx context.Context, _ models.MetricsSummary, _ models.TimeWindow) (string, error) {
		<-release
		return "late text", nil
	})
	series := []models.Snapshot{snap(1, time.Hour, 1, 1)}

	ctxA, reqA := tracker.Begin(context.Background(), 7, models.Window1Day)
	go func() {
		results <- Aggregate(ctxA, series, reqA, testNow, slow)
	}()

	ctxB, reqB := tracker.Begin(context.Background(), 7, models.Window1Month)
	results <- Aggregate(ctxB, series, reqB, testNow, nil)
	close(release)

	var presented []Outcome
	for range 2 {
		out := <-results
		if tracker.IsCurrent(out.Request.Generation) {
			presented = append(presented, out)
		}
	}

	if len(presented) != 1 {
		t.Fatalf("Expected exactly one presented outcome, got %d", len(presented))
	}
	if presented[0].Request.Window != models.Window1Month {
		t.Errorf("Expected the 1_month outcome to win, got %s", presented[0].Request.Window)
	}
}
