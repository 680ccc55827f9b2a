// Package aggregation reduces a bin's snapshot series into windowed waste
// statistics and a narrative summary.
package aggregation

import (
	"time"

	"github.com/j-veylop/binwatch-tui/internal/models"
)

// FilterByWindow returns the snapshots captured at or after the window's
// cutoff relative to now, in input order. WindowAllTime returns a copy of the
// whole input. Unrecognized windows use the one week policy. The result never
// shares its backing array with the input.
//
// A zero now is a programming error and panics.
func FilterByWindow(snapshots []models.Snapshot, window models.TimeWindow, now time.Time) []models.Snapshot {
	if now.IsZero() {
		panic("aggregation: FilterByWindow called with zero now")
	}

	cutoff, bounded := window.Normalize().Cutoff(now)
	if !bounded {
		out := make([]models.Snapshot, len(snapshots))
		copy(out, snapshots)
		return out
	}

	out := make([]models.Snapshot, 0, len(snapshots))
	for i := range snapshots {
		if !snapshots[i].Timestamp.Before(cutoff) {
			out = append(out, snapshots[i])
		}
	}
	return out
}
