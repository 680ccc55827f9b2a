package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SnapshotTimeLayout is the offset-less layout the bin backend uses for
// snapshot timestamps. Values in this layout are UTC by convention.
const SnapshotTimeLayout = "2006-01-02T15:04:05.999999999"

// MaxFoodScore is the worst score on the ordinal food score scale.
const MaxFoodScore = 3

// ParseSnapshotTime parses a backend timestamp as a UTC instant. Timestamps
// without an offset are read as UTC rather than local time; timestamps that
// carry an explicit offset keep it and are converted to UTC.
func ParseSnapshotTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty snapshot timestamp")
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range []string{SnapshotTimeLayout, "2006-01-02 15:04:05.999999999"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid snapshot timestamp %q", value)
}

// FormatSnapshotTime renders t in the backend's offset-less UTC layout with
// microsecond precision, matching what the local mirror stores.
func FormatSnapshotTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}

// Snapshot is one timestamped observation of a bin's contents. Snapshots are
// never modified after capture.
type Snapshot struct {
	Timestamp                 time.Time `json:"-"`
	ImageData                 string    `json:"image_data,omitempty"`
	ID                        int64     `json:"id" validate:"gt=0"`
	BinID                     int64     `json:"bin_id" validate:"gt=0"`
	FoodTrays                 int       `json:"food_trays" validate:"gte=0"`
	UnfinishedBurgers         int       `json:"unfinished_burgers" validate:"gte=0"`
	MilkCartons               int       `json:"milk_cartons" validate:"gte=0"`
	VegetablePortions         int       `json:"vegetable_portions" validate:"gte=0"`
	FruitPortions             int       `json:"fruit_portions" validate:"gte=0"`
	PercentHundredSurfaceArea float64   `json:"percent_hundred_surface_area"`
	FoodScore                 int       `json:"food_score" validate:"gte=0,lte=3"`
	IsEmpty                   bool      `json:"is_empty"`
}

type snapshotAlias Snapshot

// UnmarshalJSON decodes a backend snapshot, reading its offset-less
// timestamp through ParseSnapshotTime.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	aux := struct {
		*snapshotAlias
		Timestamp string `json:"timestamp"`
	}{snapshotAlias: (*snapshotAlias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts, err := ParseSnapshotTime(aux.Timestamp)
	if err != nil {
		return err
	}
	s.Timestamp = ts
	return nil
}

// MarshalJSON encodes the snapshot in the backend's wire format.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		snapshotAlias
		Timestamp string `json:"timestamp"`
	}{snapshotAlias: snapshotAlias(s), Timestamp: FormatSnapshotTime(s.Timestamp)})
}

// Count returns the snapshot's count for a waste category.
func (s *Snapshot) Count(c WasteCategory) float64 {
	switch c {
	case CategoryFoodTrays:
		return float64(s.FoodTrays)
	case CategoryUnfinishedBurgers:
		return float64(s.UnfinishedBurgers)
	case CategoryMilkCartons:
		return float64(s.MilkCartons)
	case CategoryVegetablePortions:
		return float64(s.VegetablePortions)
	case CategoryFruitPortions:
		return float64(s.FruitPortions)
	default:
		return 0
	}
}

// TotalItems returns the combined count of all waste categories.
func (s *Snapshot) TotalItems() float64 {
	total := 0.0
	for _, c := range WasteCategories {
		total += s.Count(c)
	}
	return total
}

// LocalTime returns the capture time in the local timezone for display.
func (s *Snapshot) LocalTime() time.Time {
	return s.Timestamp.Local()
}

// WasteCategory identifies one of the counted waste item kinds.
type WasteCategory int

const (
	// CategoryFoodTrays counts discarded food trays.
	CategoryFoodTrays WasteCategory = iota
	// CategoryUnfinishedBurgers counts unfinished burgers.
	CategoryUnfinishedBurgers
	// CategoryMilkCartons counts milk cartons.
	CategoryMilkCartons
	// CategoryVegetablePortions counts vegetable portions.
	CategoryVegetablePortions
	// CategoryFruitPortions counts fruit portions.
	CategoryFruitPortions
)

// WasteCategories lists every category in display order.
var WasteCategories = []WasteCategory{
	CategoryFoodTrays,
	CategoryUnfinishedBurgers,
	CategoryMilkCartons,
	CategoryVegetablePortions,
	CategoryFruitPortions,
}

// Key returns the backend field name of the category.
func (c WasteCategory) Key() string {
	switch c {
	case CategoryFoodTrays:
		return "food_trays"
	case CategoryUnfinishedBurgers:
		return "unfinished_burgers"
	case CategoryMilkCartons:
		return "milk_cartons"
	case CategoryVegetablePortions:
		return "vegetable_portions"
	case CategoryFruitPortions:
		return "fruit_portions"
	default:
		return "unknown"
	}
}

// String returns the short display label of the category.
func (c WasteCategory) String() string {
	switch c {
	case CategoryFoodTrays:
		return "Food Trays"
	case CategoryUnfinishedBurgers:
		return "Burgers"
	case CategoryMilkCartons:
		return "Milk"
	case CategoryVegetablePortions:
		return "Vegetables"
	case CategoryFruitPortions:
		return "Fruits"
	default:
		return "Unknown"
	}
}
