package db

import (
	"time"

	"github.com/j-veylop/binwatch-tui/internal/models"
)

// dbTimeLayout stores instants as fixed-width UTC text so lexical order is
// chronological order.
const dbTimeLayout = "2006-01-02 15:04:05.000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	return models.ParseSnapshotTime(value)
}
