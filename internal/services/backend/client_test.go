package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/j-veylop/binwatch-tui/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/"), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListBins(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/schools/3/bins" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("missing request ID header")
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "binwatch-tui/") {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = io.WriteString(w, `[
			{"id": 1, "ip_address": "10.0.0.5", "name": "North", "current_score": 2,
			 "latest_snapshot": {"id": 9, "bin_id": 1, "food_trays": 3, "food_score": 2,
			   "timestamp": "2024-03-15T11:59:00.123456"}},
			{"id": 2, "ip_address": "10.0.0.6", "name": "", "current_score": 0}
		]`)
	})

	bins, err := client.ListBins(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListBins failed: %v", err)
	}
	if len(bins) != 2 {
		t.Fatalf("Expected 2 bins, got %d", len(bins))
	}
	if bins[0].SchoolID != 3 || bins[1].SchoolID != 3 {
		t.Error("Expected school ID to be stamped on every bin")
	}
	latest := bins[0].LatestSnapshot
	if latest == nil || latest.FoodTrays != 3 {
		t.Fatalf("Expected latest snapshot to decode, got %+v", latest)
	}
	want := time.Date(2024, 3, 15, 11, 59, 0, 123456000, time.UTC)
	if !latest.Timestamp.Equal(want) {
		t.Errorf("Expected UTC timestamp %v, got %v", want, latest.Timestamp)
	}
	if bins[1].DisplayName() != "Bin #2" {
		t.Errorf("Unexpected display name %q", bins[1].DisplayName())
	}
}

func TestListBins_InvalidScore(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 1, "current_score": 7}]`)
	})

	_, err := client.ListBins(context.Background(), 1)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("Expected ErrInvalidResponse, got %v", err)
	}
}

func TestListSnapshots(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "12" {
			t.Errorf("Expected limit=12, got %q", got)
		}
		_, _ = io.WriteString(w, `[
			{"id": 1, "bin_id": 4, "food_trays": 1, "food_score": 0, "image_data": "aGVsbG8=",
			 "timestamp": "2024-03-15T10:00:00"},
			{"id": 2, "bin_id": 4, "food_trays": -1, "food_score": 0,
			 "timestamp": "2024-03-15T10:05:00"},
			{"id": 3, "bin_id": 4, "food_score": 3, "is_empty": false,
			 "timestamp": "2024-03-15T10:10:00+02:00"}
		]`)
	})

	snapshots, err := client.ListSnapshots(context.Background(), 4, 12)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("Expected invalid snapshot to be dropped, got %d", len(snapshots))
	}
	if snapshots[0].ImageData != "" {
		t.Error("Expected image data to be stripped from list results")
	}
	if snapshots[1].Timestamp.Hour() != 8 {
		t.Errorf("Expected offset timestamp converted to UTC, got %v", snapshots[1].Timestamp)
	}
}

func TestGetSnapshot(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bins/4/snapshots/9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id": 9, "bin_id": 4, "image_data": "aGVsbG8=", "timestamp": "2024-03-15T10:00:00"}`)
	})

	snapshot, err := client.GetSnapshot(context.Background(), 4, 9)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snapshot.ImageData != "aGVsbG8=" {
		t.Error("Expected image data on single snapshot fetch")
	}
}

func TestAIAnalysis(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bins/5/ai-analysis" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if body["time_range"] != "2_weeks" {
			t.Errorf("Expected time_range 2_weeks, got %v", body["time_range"])
		}
		if v, ok := body["sister_school_data"]; !ok || v != nil {
			t.Errorf("Expected null sister_school_data, got %v", v)
		}
		if r.Header.Get(RequestIDHeader) != "req-123" {
			t.Errorf("Expected propagated request ID, got %q", r.Header.Get(RequestIDHeader))
		}
		writeJSON(w, http.StatusOK, map[string]string{"analysis": "Fruit waste is high."})
	})

	ctx := WithRequestID(context.Background(), "req-123")
	text, err := client.AIAnalysis(ctx, 5, models.Window2Weeks)
	if err != nil {
		t.Fatalf("AIAnalysis failed: %v", err)
	}
	if text != "Fruit waste is high." {
		t.Errorf("Unexpected analysis %q", text)
	}
}

func TestAPIError_Detail(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{
			name:   "string detail",
			status: http.StatusBadRequest,
			body:   `{"detail": "Username already registered"}`,
			want:   "Username already registered",
		},
		{
			name:   "validation list",
			status: http.StatusUnprocessableEntity,
			body:   `{"detail": [{"loc": ["body", "name"], "msg": "field required"}]}`,
			want:   "name: field required",
		},
		{
			name:   "plain text",
			status: http.StatusNotFound,
			body:   "Not Found",
			want:   "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.GetBinHistory(context.Background(), 1)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Detail != tt.want {
				t.Errorf("Detail = %q, want %q", apiErr.Detail, tt.want)
			}
		})
	}
}

func TestGetBinHistory(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"current_score": 2, "name": "North",
			"historical_scores": {"1_day_ago": 1, "2_days_ago": null, "4_days_ago": 3,
			"7_days_ago": null, "1_month_ago": 0}}`)
	})

	history, err := client.GetBinHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetBinHistory failed: %v", err)
	}
	hs := history.HistoricalScores
	if hs.OneDayAgo == nil || *hs.OneDayAgo != 1 {
		t.Errorf("Unexpected 1_day_ago %v", hs.OneDayAgo)
	}
	if hs.TwoDaysAgo != nil {
		t.Error("Expected null 2_days_ago to decode as nil")
	}
	if hs.MonthAgo == nil || *hs.MonthAgo != 0 {
		t.Errorf("Expected zero score to survive decoding, got %v", hs.MonthAgo)
	}
}

func TestUpdateBin(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Expected PATCH, got %s", r.Method)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["ip_address"]; ok {
			t.Error("Unset fields must be omitted from the patch")
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 5, "name": body["name"], "current_score": 1})
	})

	if _, err := client.UpdateBin(context.Background(), 5, models.BinPatch{}); err == nil {
		t.Error("Expected error for empty patch")
	}

	name := "Library"
	bin, err := client.UpdateBin(context.Background(), 5, models.BinPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateBin failed: %v", err)
	}
	if bin.Name != "Library" {
		t.Errorf("Expected renamed bin, got %q", bin.Name)
	}
}

func TestRegisterSchool(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, models.School{ID: 11, Username: "maple"})
	})

	_, err := client.RegisterSchool(context.Background(), models.SchoolCredentials{
		Username: "maple", Password: "secret1", ConfirmPassword: "secret2",
	})
	if err == nil {
		t.Error("Expected mismatched passwords to be rejected locally")
	}
	if calls.Load() != 0 {
		t.Error("Invalid credentials must not reach the backend")
	}

	school, err := client.RegisterSchool(context.Background(), models.SchoolCredentials{
		Username: "maple", Password: "secret1", ConfirmPassword: "secret1",
	})
	if err != nil {
		t.Fatalf("RegisterSchool failed: %v", err)
	}
	if school.ID != 11 {
		t.Errorf("Unexpected school %+v", school)
	}
}

func TestFindSchool(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "username": "oak", "hashed_password": "x"},
			{"id": 2, "username": "pine", "hashed_password": "y"},
		})
	})

	school, err := client.FindSchool(context.Background(), "pine")
	if err != nil {
		t.Fatalf("FindSchool failed: %v", err)
	}
	if school.ID != 2 {
		t.Errorf("Expected school 2, got %d", school.ID)
	}

	if _, err := client.FindSchool(context.Background(), "birch"); !IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestAddBin(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 8, "ip_address": "10.0.0.8", "name": "Annex", "current_score": 0})
	})

	if _, err := client.AddBin(context.Background(), models.BinCreate{Name: "Annex", SchoolID: 1}); err == nil {
		t.Error("Expected missing address to be rejected")
	}

	bin, err := client.AddBin(context.Background(), models.BinCreate{IPAddress: "10.0.0.8", Name: "Annex", SchoolID: 1})
	if err != nil {
		t.Fatalf("AddBin failed: %v", err)
	}
	if bin.ID != 8 {
		t.Errorf("Unexpected bin %+v", bin)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	settings := DefaultBreakerSettings()
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 2
	}
	settings.Timeout = time.Minute
	client := NewClient(srv.URL, WithBreakerSettings(settings))

	for range 2 {
		var apiErr *APIError
		if _, err := client.ListBins(context.Background(), 1); !errors.As(err, &apiErr) {
			t.Fatalf("Expected APIError while closed, got %v", err)
		}
	}

	_, err := client.ListBins(context.Background(), 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable once open, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected breaker to stop traffic after 2 calls, got %d", calls.Load())
	}
	if client.BreakerState() != gobreaker.StateOpen {
		t.Errorf("Expected open breaker, got %s", client.BreakerState())
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for range 10 {
		if _, err := client.GetBinHistory(context.Background(), 1); !IsNotFound(err) {
			t.Fatalf("Expected not found, got %v", err)
		}
	}
	if client.BreakerState() != gobreaker.StateClosed {
		t.Errorf("Expected closed breaker, got %s", client.BreakerState())
	}
}

func TestCancelledRequestsDoNotTripBreaker(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/schools" {
			writeJSON(w, http.StatusOK, []models.School{})
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	for range 5 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		if _, err := client.AIAnalysis(ctx, 1, models.Window1Week); !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
		cancel()
	}

	if client.BreakerState() != gobreaker.StateClosed {
		t.Errorf("Expected closed breaker after superseded requests, got %s", client.BreakerState())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping after superseded requests failed: %v", err)
	}
}

func TestLatestImageURL(t *testing.T) {
	client := NewClient("http://bins.local:8000/")
	if got := client.LatestImageURL(3); got != "http://bins.local:8000/bins/3/latest-image" {
		t.Errorf("LatestImageURL = %q", got)
	}
}
