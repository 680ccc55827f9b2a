package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
)

// UpsertSchool records the logged-in school.
func (db *DB) UpsertSchool(ctx context.Context, school models.School) error {
	query := `
		INSERT INTO schools (id, username, synced_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			synced_at = excluded.synced_at
	`
	if _, err := db.ExecContext(ctx, query, school.ID, school.Username, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to upsert school %d: %w", school.ID, err)
	}
	return nil
}

// GetSchool returns a school by ID.
func (db *DB) GetSchool(ctx context.Context, id int64) (*models.School, error) {
	var school models.School
	err := db.QueryRowContext(ctx, `SELECT id, username FROM schools WHERE id = ?`, id).
		Scan(&school.ID, &school.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("school %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query school %d: %w", id, err)
	}
	return &school, nil
}

// ReplaceBins stores the full bin list of a school. Bins no longer reported by
// the backend are removed together with their snapshots.
func (db *DB) ReplaceBins(ctx context.Context, schoolID int64, bins []models.Bin) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	upsert := `
		INSERT INTO bins (id, school_id, ip_address, name, current_score, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			school_id = excluded.school_id,
			ip_address = excluded.ip_address,
			name = excluded.name,
			current_score = excluded.current_score,
			synced_at = excluded.synced_at
	`
	for _, bin := range bins {
		if _, err := tx.ExecContext(ctx, upsert,
			bin.ID, schoolID, bin.IPAddress, bin.Name, bin.CurrentScore, now,
		); err != nil {
			return fmt.Errorf("failed to upsert bin %d: %w", bin.ID, err)
		}
	}

	// Rows not touched in this pass were not reported.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bins WHERE school_id = ? AND synced_at <> ?`, schoolID, now,
	); err != nil {
		return fmt.Errorf("failed to prune bins: %w", err)
	}

	return tx.Commit()
}

// ListBins returns the bins of a school ordered by ID, each with its most
// recent snapshot when one is stored.
func (db *DB) ListBins(ctx context.Context, schoolID int64) ([]models.Bin, error) {
	query := `
		SELECT id, school_id, ip_address, name, current_score, synced_at
		FROM bins
		WHERE school_id = ?
		ORDER BY id
	`

	rows, err := db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bins []models.Bin
	for rows.Next() {
		bin, err := scanBin(rows)
		if err != nil {
			return nil, err
		}
		bins = append(bins, *bin)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range bins {
		latest, err := db.LatestSnapshot(ctx, bins[i].ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		bins[i].LatestSnapshot = latest
	}

	return bins, nil
}

// GetBin returns a single bin.
func (db *DB) GetBin(ctx context.Context, id int64) (*models.Bin, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, school_id, ip_address, name, current_score, synced_at
		FROM bins WHERE id = ?`, id)

	bin, err := scanBin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bin %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return bin, nil
}

// UpdateBin applies a patch to a stored bin, mirroring a successful backend
// update.
func (db *DB) UpdateBin(ctx context.Context, id int64, patch models.BinPatch) error {
	bin, err := db.GetBin(ctx, id)
	if err != nil {
		return err
	}
	updated := patch.Apply(*bin)

	if _, err := db.ExecContext(ctx,
		`UPDATE bins SET ip_address = ?, name = ? WHERE id = ?`,
		updated.IPAddress, updated.Name, id,
	); err != nil {
		return fmt.Errorf("failed to update bin %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBin(row rowScanner) (*models.Bin, error) {
	var bin models.Bin
	var syncedAt string
	if err := row.Scan(&bin.ID, &bin.SchoolID, &bin.IPAddress, &bin.Name, &bin.CurrentScore, &syncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bin: %w", err)
	}
	if t, err := parseTime(syncedAt); err == nil {
		bin.LastSynced = t
	}
	return &bin, nil
}

// UpsertSnapshots stores snapshots and returns how many were new. Existing
// rows are left untouched since snapshots are immutable.
func (db *DB) UpsertSnapshots(ctx context.Context, snapshots []models.Snapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (
			id, bin_id, timestamp, food_trays, unfinished_burgers, milk_cartons,
			vegetable_portions, fruit_portions, percent_hundred_surface_area,
			food_score, is_empty
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			logger.Error("failed to close statement", "error", err)
		}
	}()

	inserted := 0
	for i := range snapshots {
		s := &snapshots[i]
		result, err := stmt.ExecContext(ctx,
			s.ID, s.BinID, formatTime(s.Timestamp),
			s.FoodTrays, s.UnfinishedBurgers, s.MilkCartons,
			s.VegetablePortions, s.FruitPortions, s.PercentHundredSurfaceArea,
			s.FoodScore, s.IsEmpty,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot %d: %w", s.ID, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return inserted, nil
}

const snapshotColumns = `
	id, bin_id, timestamp, food_trays, unfinished_burgers, milk_cartons,
	vegetable_portions, fruit_portions, percent_hundred_surface_area,
	food_score, is_empty
`

// ListSnapshots returns every stored snapshot of a bin, oldest first.
func (db *DB) ListSnapshots(ctx context.Context, binID int64) ([]models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE bin_id = ? ORDER BY timestamp ASC, id ASC`
	return db.querySnapshots(ctx, query, binID)
}

// ListSnapshotsPage returns one page of a bin's snapshots, newest first.
func (db *DB) ListSnapshotsPage(ctx context.Context, binID int64, limit, offset int) ([]models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM snapshots WHERE bin_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`
	return db.querySnapshots(ctx, query, binID, limit, offset)
}

// CountSnapshots returns the number of stored snapshots of a bin.
func (db *DB) CountSnapshots(ctx context.Context, binID int64) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE bin_id = ?`, binID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// LatestSnapshot returns the most recent snapshot of a bin.
func (db *DB) LatestSnapshot(ctx context.Context, binID int64) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM snapshots WHERE bin_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1`

	snapshots, err := db.querySnapshots(ctx, query, binID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("latest snapshot of bin %d: %w", binID, ErrNotFound)
	}
	return &snapshots[0], nil
}

func (db *DB) querySnapshots(ctx context.Context, query string, args ...any) ([]models.Snapshot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var snapshots []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		var ts string

		err := rows.Scan(
			&s.ID,
			&s.BinID,
			&ts,
			&s.FoodTrays,
			&s.UnfinishedBurgers,
			&s.MilkCartons,
			&s.VegetablePortions,
			&s.FruitPortions,
			&s.PercentHundredSurfaceArea,
			&s.FoodScore,
			&s.IsEmpty,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.Timestamp, err = parseTime(ts)
		if err != nil {
			logger.Warn("skipping snapshot with unreadable timestamp", "id", s.ID, "timestamp", ts)
			continue
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// DeleteSchoolData removes a school and everything stored for it.
func (db *DB) DeleteSchoolData(ctx context.Context, schoolID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM schools WHERE id = ?`, schoolID); err != nil {
		return fmt.Errorf("failed to delete school %d: %w", schoolID, err)
	}
	return nil
}
