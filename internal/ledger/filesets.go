package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"strata/internal/catalog"
)

// LoadFileSet returns the stored file set with the given name.
func (s *Store) LoadFileSet(ctx context.Context, name string) (catalog.FileSet, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT suffix, dir, day_position, path FROM file_sets WHERE name = ? ORDER BY day_position, position", name)
	if err != nil {
		return catalog.FileSet{}, false, fmt.Errorf("query file set %s: %w", name, err)
	}
	defer rows.Close()

	fs := catalog.FileSet{Name: name}
	found := false
	for rows.Next() {
		var dayPos int
		var path string
		if err := rows.Scan(&fs.Suffix, &fs.Dir, &dayPos, &path); err != nil {
			return catalog.FileSet{}, false, fmt.Errorf("scan file set %s: %w", name, err)
		}
		for len(fs.Days) <= dayPos {
			fs.Days = append(fs.Days, nil)
		}
		fs.Days[dayPos] = append(fs.Days[dayPos], path)
		found = true
	}
	if err := rows.Err(); err != nil {
		return catalog.FileSet{}, false, err
	}
	return fs, found, nil
}

// SaveFileSet replaces the stored rows for fs.Name.
func (s *Store) SaveFileSet(ctx context.Context, fs catalog.FileSet) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM file_sets WHERE name = ?", fs.Name); err != nil {
			return fmt.Errorf("clear file set %s: %w", fs.Name, err)
		}
		for dayPos, paths := range fs.Days {
			for pos, path := range paths {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO file_sets (name, suffix, dir, day_position, position, path) VALUES (?, ?, ?, ?, ?, ?)",
					fs.Name, fs.Suffix, fs.Dir, dayPos, pos, path); err != nil {
					return fmt.Errorf("insert file set %s: %w", fs.Name, err)
				}
			}
		}
		return nil
	})
}

// ResolveFileSet returns the stored file set or derives, stores, and returns it.
func (s *Store) ResolveFileSet(ctx context.Context, name string, derive func() catalog.FileSet) (catalog.FileSet, error) {
	fs, ok, err := s.LoadFileSet(ctx, name)
	if err != nil {
		return catalog.FileSet{}, err
	}
	if ok {
		return fs, nil
	}
	fs = derive()
	fs.Name = name
	if err := s.SaveFileSet(ctx, fs); err != nil {
		return catalog.FileSet{}, err
	}
	return fs, nil
}

// FileSetNames lists stored file set names.
func (s *Store) FileSetNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT name FROM file_sets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query file set names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
