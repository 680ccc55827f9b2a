package models

// Breakdown is the relative share, in percent, of each waste category among
// the combined waste of a window. Shares sum to 100 when any category is
// non-zero and are all zero otherwise.
type Breakdown struct {
	FoodTrays         float64 `json:"food_trays"`
	UnfinishedBurgers float64 `json:"unfinished_burgers"`
	MilkCartons       float64 `json:"milk_cartons"`
	VegetablePortions float64 `json:"vegetable_portions"`
	FruitPortions     float64 `json:"fruit_portions"`
}

// Share returns the share of a category.
func (b Breakdown) Share(c WasteCategory) float64 {
	switch c {
	case CategoryFoodTrays:
		return b.FoodTrays
	case CategoryUnfinishedBurgers:
		return b.UnfinishedBurgers
	case CategoryMilkCartons:
		return b.MilkCartons
	case CategoryVegetablePortions:
		return b.VegetablePortions
	case CategoryFruitPortions:
		return b.FruitPortions
	default:
		return 0
	}
}

// Total returns the sum of all shares.
func (b Breakdown) Total() float64 {
	return b.FoodTrays + b.UnfinishedBurgers + b.MilkCartons + b.VegetablePortions + b.FruitPortions
}

// Averages holds the per-snapshot means of a window. Counts are averaged as
// real numbers and are never rounded here.
type Averages struct {
	FoodTrays                 float64 `json:"food_trays"`
	UnfinishedBurgers         float64 `json:"unfinished_burgers"`
	MilkCartons               float64 `json:"milk_cartons"`
	VegetablePortions         float64 `json:"vegetable_portions"`
	FruitPortions             float64 `json:"fruit_portions"`
	PercentHundredSurfaceArea float64 `json:"percent_hundred_surface_area"`
	FoodScore                 float64 `json:"food_score"`
}

// Mean returns the mean count of a category.
func (a Averages) Mean(c WasteCategory) float64 {
	switch c {
	case CategoryFoodTrays:
		return a.FoodTrays
	case CategoryUnfinishedBurgers:
		return a.UnfinishedBurgers
	case CategoryMilkCartons:
		return a.MilkCartons
	case CategoryVegetablePortions:
		return a.VegetablePortions
	case CategoryFruitPortions:
		return a.FruitPortions
	default:
		return 0
	}
}

// MetricsSummary is the reduction of a window of snapshots. It is recomputed
// wholesale for every request and never patched.
type MetricsSummary struct {
	Window        TimeWindow `json:"time_range"`
	Averages      Averages   `json:"averages"`
	Breakdown     Breakdown  `json:"waste_percentages"`
	BinID         int64      `json:"bin_id"`
	SnapshotCount int        `json:"snapshot_count"`
}

// Provenance tells where a narrative came from.
type Provenance string

const (
	// ProvenanceGenerated marks text produced by the external summarizer.
	ProvenanceGenerated Provenance = "generated"
	// ProvenanceFallback marks the locally built degraded-mode text.
	ProvenanceFallback Provenance = "fallback"
)

// NarrativeResult is a metrics summary with its human-readable description.
type NarrativeResult struct {
	Text       string         `json:"text"`
	Provenance Provenance     `json:"provenance"`
	Metrics    MetricsSummary `json:"metrics"`
}

// IsFallback reports whether the text was built locally.
func (n NarrativeResult) IsFallback() bool {
	return n.Provenance == ProvenanceFallback
}
