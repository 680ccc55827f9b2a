package aggregation

import (
	"errors"

	"github.com/j-veylop/binwatch-tui/internal/models"
)

// ErrEmptyWindow is returned when there are no snapshots to average.
var ErrEmptyWindow = errors.New("no snapshots available for the selected time range")

// Reduce folds snapshots into unweighted means and a relative waste
// breakdown. It fails with ErrEmptyWindow on empty input.
func Reduce(snapshots []models.Snapshot) (models.MetricsSummary, error) {
	if len(snapshots) == 0 {
		return models.MetricsSummary{}, ErrEmptyWindow
	}

	var sum models.Averages
	for i := range snapshots {
		s := &snapshots[i]
		sum.FoodTrays += float64(s.FoodTrays)
		sum.UnfinishedBurgers += float64(s.UnfinishedBurgers)
		sum.MilkCartons += float64(s.MilkCartons)
		sum.VegetablePortions += float64(s.VegetablePortions)
		sum.FruitPortions += float64(s.FruitPortions)
		sum.PercentHundredSurfaceArea += s.PercentHundredSurfaceArea
		sum.FoodScore += float64(s.FoodScore)
	}

	n := float64(len(snapshots))
	avg := models.Averages{
		FoodTrays:                 sum.FoodTrays / n,
		UnfinishedBurgers:         sum.UnfinishedBurgers / n,
		MilkCartons:               sum.MilkCartons / n,
		VegetablePortions:         sum.VegetablePortions / n,
		FruitPortions:             sum.FruitPortions / n,
		PercentHundredSurfaceArea: sum.PercentHundredSurfaceArea / n,
		FoodScore:                 sum.FoodScore / n,
	}

	return models.MetricsSummary{
		Averages:      avg,
		Breakdown:     breakdown(avg),
		SnapshotCount: len(snapshots),
	}, nil
}

// breakdown expresses each category mean as a percentage of the summed means.
func breakdown(avg models.Averages) models.Breakdown {
	total := 0.0
	for _, c := range models.WasteCategories {
		total += avg.Mean(c)
	}

	// All categories empty, e.g. a bin that is always empty.
	if total <= 0 {
		return models.Breakdown{}
	}

	return models.Breakdown{
		FoodTrays:         100 * avg.FoodTrays / total,
		UnfinishedBurgers: 100 * avg.UnfinishedBurgers / total,
		MilkCartons:       100 * avg.MilkCartons / total,
		VegetablePortions: 100 * avg.VegetablePortions / total,
		FruitPortions:     100 * avg.FruitPortions / total,
	}
}
