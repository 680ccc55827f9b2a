package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/binwatch-tui/internal/models"
)

// scoreAt returns the food score of the last snapshot captured at or before
// at, or nil when the bin has no snapshot that old.
func (db *DB) scoreAt(ctx context.Context, binID int64, at time.Time) (*int, error) {
	var score int
	err := db.QueryRowContext(ctx, `
		SELECT food_score FROM snapshots
		WHERE bin_id = ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, binID, formatTime(at)).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query score of bin %d at %s: %w", binID, at.Format(time.RFC3339), err)
	}
	return &score, nil
}

// HistoricalScores reconstructs a bin's past food scores from the local
// mirror. It is used when the backend history endpoint is unreachable.
func (db *DB) HistoricalScores(ctx context.Context, binID int64, now time.Time) (models.HistoricalScores, error) {
	var hs models.HistoricalScores

	offsets := []struct {
		dst **int
		at  time.Time
	}{
		{&hs.OneDayAgo, now.AddDate(0, 0, -1)},
		{&hs.TwoDaysAgo, now.AddDate(0, 0, -2)},
		{&hs.FourDaysAgo, now.AddDate(0, 0, -4)},
		{&hs.WeekAgo, now.AddDate(0, 0, -7)},
		{&hs.MonthAgo, now.AddDate(0, -1, 0)},
	}

	for _, o := range offsets {
		score, err := db.scoreAt(ctx, binID, o.at)
		if err != nil {
			return models.HistoricalScores{}, err
		}
		*o.dst = score
	}

	return hs, nil
}

// BinHistory combines a stored bin with its reconstructed historical scores.
func (db *DB) BinHistory(ctx context.Context, binID int64, now time.Time) (*models.BinHistory, error) {
	bin, err := db.GetBin(ctx, binID)
	if err != nil {
		return nil, err
	}

	hs, err := db.HistoricalScores(ctx, binID, now)
	if err != nil {
		return nil, err
	}

	return &models.BinHistory{
		HistoricalScores: hs,
		Name:             bin.Name,
		IPAddress:        bin.IPAddress,
		CurrentScore:     bin.CurrentScore,
	}, nil
}
