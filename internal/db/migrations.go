package db

import (
	"context"
	"fmt"
)

// FixLegacyTimeFormats rewrites snapshot timestamps that are not in
// dbTimeLayout, such as hand-imported rows, into it. Such rows may use the
// backend's "T" separator, Go's default time.Time string with a " +0000 UTC"
// suffix, or whole-second precision, all of which break ordering on the text
// column. New opens it once.
func (db *DB) FixLegacyTimeFormats() error {
	queries := []string{
		// "2024-03-15 12:00:00 +0000 UTC" -> "2024-03-15 12:00:00"
		`UPDATE snapshots
		 SET timestamp = SUBSTR(timestamp, 1, 19)
		 WHERE length(timestamp) > 19 AND timestamp LIKE '% UTC'`,

		// "2024-03-15T12:00:00" -> "2024-03-15 12:00:00"
		`UPDATE snapshots
		 SET timestamp = REPLACE(timestamp, 'T', ' ')
		 WHERE timestamp LIKE '____-__-__T%'`,

		// Pad second precision to the fixed-width layout.
		`UPDATE snapshots
		 SET timestamp = timestamp || '.000000'
		 WHERE length(timestamp) = 19`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to fix legacy time formats: %w", err)
		}
	}

	return nil
}
