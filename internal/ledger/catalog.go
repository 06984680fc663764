package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"strata/internal/catalog"
)

const metaDataDir = "data_dir"
const metaFrozenAt = "frozen_at"

// LoadCatalog returns the frozen catalog, or ok=false when none is stored.
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.Catalog, bool, error) {
	var dataDir string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM catalog_meta WHERE key = ?", metaDataDir).Scan(&dataDir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read catalog meta: %w", err)
	}

	cat := &catalog.Catalog{DataDir: dataDir}
	rows, err := s.db.QueryContext(ctx, "SELECT position, label, date FROM days ORDER BY position")
	if err != nil {
		return nil, false, fmt.Errorf("query days: %w", err)
	}
	positions := map[int]int{}
	for rows.Next() {
		var pos int
		var day catalog.DaySeries
		if err := rows.Scan(&pos, &day.Label, &day.Date); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scan day: %w", err)
		}
		positions[pos] = len(cat.Days)
		cat.Days = append(cat.Days, day)
	}
	if err := rows.Close(); err != nil {
		return nil, false, err
	}

	recRows, err := s.db.QueryContext(ctx,
		"SELECT day_position, name, timestamp, processed FROM recordings ORDER BY day_position, position")
	if err != nil {
		return nil, false, fmt.Errorf("query recordings: %w", err)
	}
	defer recRows.Close()
	for recRows.Next() {
		var dayPos, processed int
		var rec catalog.Recording
		if err := recRows.Scan(&dayPos, &rec.Name, &rec.Timestamp, &processed); err != nil {
			return nil, false, fmt.Errorf("scan recording: %w", err)
		}
		idx, ok := positions[dayPos]
		if !ok {
			return nil, false, fmt.Errorf("recording %s references unknown day %d", rec.Name, dayPos)
		}
		rec.Processed = processed != 0
		if len(rec.Timestamp) >= 10 {
			rec.Date = rec.Timestamp[:10]
		}
		cat.Days[idx].Recordings = append(cat.Days[idx].Recordings, rec)
	}
	if err := recRows.Err(); err != nil {
		return nil, false, err
	}
	if len(cat.Days) == 0 {
		return nil, false, nil
	}
	return cat, true, nil
}

// SaveCatalog replaces the stored catalog and clears derived file sets.
func (s *Store) SaveCatalog(ctx context.Context, cat *catalog.Catalog) error {
	if cat == nil || len(cat.Days) == 0 {
		return errors.New("save catalog: catalog is empty")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearCatalog(ctx, tx); err != nil {
			return err
		}
		meta := map[string]string{
			metaDataDir:  cat.DataDir,
			metaFrozenAt: time.Now().UTC().Format(time.RFC3339),
		}
		for key, value := range meta {
			if _, err := tx.ExecContext(ctx, "INSERT INTO catalog_meta (key, value) VALUES (?, ?)", key, value); err != nil {
				return fmt.Errorf("insert catalog meta: %w", err)
			}
		}
		for dayPos, day := range cat.Days {
			if _, err := tx.ExecContext(ctx, "INSERT INTO days (position, label, date) VALUES (?, ?, ?)",
				dayPos, day.Label, day.Date); err != nil {
				return fmt.Errorf("insert day %s: %w", day.Label, err)
			}
			for pos, rec := range day.Recordings {
				processed := 0
				if rec.Processed {
					processed = 1
				}
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO recordings (day_position, position, name, timestamp, processed) VALUES (?, ?, ?, ?, ?)",
					dayPos, pos, rec.Name, rec.Timestamp, processed); err != nil {
					return fmt.Errorf("insert recording %s: %w", rec.Name, err)
				}
			}
		}
		return nil
	})
}

// ResolveCatalog returns the frozen catalog when present. Otherwise it calls
// build, stores the result, and returns it with frozen=false.
func (s *Store) ResolveCatalog(ctx context.Context, build func() (*catalog.Catalog, error)) (*catalog.Catalog, bool, error) {
	cat, ok, err := s.LoadCatalog(ctx)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return cat, true, nil
	}
	cat, err = build()
	if err != nil {
		return nil, false, err
	}
	if err := s.SaveCatalog(ctx, cat); err != nil {
		return nil, false, err
	}
	return cat, false, nil
}

// FrozenAt reports when the stored catalog was written.
func (s *Store) FrozenAt(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM catalog_meta WHERE key = ?", metaFrozenAt).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read frozen_at: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse frozen_at: %w", err)
	}
	return ts, true, nil
}

// DropCatalog removes the frozen catalog and every derived file set so the
// next run re-derives them from the data directory. Stage run history is kept.
func (s *Store) DropCatalog(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return clearCatalog(ctx, tx)
	})
}

func clearCatalog(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		"DELETE FROM file_sets",
		"DELETE FROM recordings",
		"DELETE FROM days",
		"DELETE FROM catalog_meta",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear catalog (%s): %w", stmt, err)
		}
	}
	return nil
}
