package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseSnapshotTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "offset-less is UTC",
			input: "2024-05-01T08:30:00",
			want:  time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			name:  "fractional seconds",
			input: "2024-05-01T08:30:00.250000",
			want:  time.Date(2024, time.May, 1, 8, 30, 0, 250000000, time.UTC),
		},
		{
			name:  "space separated",
			input: "2024-05-01 08:30:00",
			want:  time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			name:  "explicit offset is honoured",
			input: "2024-05-01T10:30:00+02:00",
			want:  time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			name:  "zulu",
			input: "2024-05-01T08:30:00Z",
			want:  time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC),
		},
		{name: "empty", input: "  ", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSnapshotTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("expected UTC location, got %v", got.Location())
			}
		})
	}
}

func TestSnapshot_UnmarshalJSON(t *testing.T) {
	payload := `{
		"id": 7,
		"bin_id": 2,
		"image_data": "",
		"food_trays": 3,
		"unfinished_burgers": 1,
		"milk_cartons": 0,
		"vegetable_portions": 2,
		"fruit_portions": 4,
		"percent_hundred_surface_area": 42.5,
		"food_score": 2,
		"is_empty": false,
		"timestamp": "2024-05-01T08:30:00"
	}`

	var s Snapshot
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if s.ID != 7 || s.BinID != 2 {
		t.Errorf("unexpected ids: %d/%d", s.ID, s.BinID)
	}
	if s.FoodTrays != 3 || s.FruitPortions != 4 || s.FoodScore != 2 {
		t.Errorf("unexpected counts: %+v", s)
	}
	want := time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC)
	if !s.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", s.Timestamp, want)
	}
	if s.TotalItems() != 10 {
		t.Errorf("TotalItems() = %v, want 10", s.TotalItems())
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if raw["timestamp"] != "2024-05-01T08:30:00.000000" {
		t.Errorf("timestamp wire form = %v", raw["timestamp"])
	}
}

func TestSnapshot_JSONKeepsMicroseconds(t *testing.T) {
	cutoff := time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC)
	in := Snapshot{ID: 1, BinID: 1, Timestamp: cutoff.Add(-250 * time.Microsecond)}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	if !out.Timestamp.Before(cutoff) {
		t.Error("round trip moved the snapshot across the cutoff")
	}
}

func TestSnapshot_UnmarshalJSON_BadTimestamp(t *testing.T) {
	var s Snapshot
	err := json.Unmarshal([]byte(`{"id":1,"bin_id":1,"timestamp":"soon"}`), &s)
	if err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}

func TestWasteCategory_Labels(t *testing.T) {
	keys := map[string]bool{}
	for _, c := range WasteCategories {
		if c.String() == "Unknown" || c.Key() == "unknown" {
			t.Errorf("category %d has no label", c)
		}
		keys[c.Key()] = true
	}
	if len(keys) != 5 {
		t.Errorf("expected 5 distinct keys, got %d", len(keys))
	}
}

func TestBinPatch_Apply(t *testing.T) {
	name := "Cafeteria"
	bin := Bin{ID: 4, Name: "old", IPAddress: "10.0.0.2"}

	if !(BinPatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}

	got := BinPatch{Name: &name}.Apply(bin)
	if got.Name != "Cafeteria" || got.IPAddress != "10.0.0.2" {
		t.Errorf("unexpected patched bin: %+v", got)
	}
	if bin.Name != "old" {
		t.Error("Apply must not modify the original")
	}

	unnamed := Bin{ID: 12}
	if unnamed.DisplayName() != "Bin #12" {
		t.Errorf("DisplayName() = %q", unnamed.DisplayName())
	}
}
