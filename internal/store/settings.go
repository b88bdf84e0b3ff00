package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Settings keys used by the admin dashboard branding.
const (
	SettingSiteName = "site_name"
	SettingAccent   = "accent"
)

// GetSetting returns the value for a settings key, or the fallback when the
// key has never been written.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", err
	}
	defer s.pool.Put(conn)

	value := fallback
	err = sqlitex.Execute(conn,
		"SELECT value FROM settings WHERE key = ?",
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("store: reading setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting writes a settings key, inserting or overwriting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO settings(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{key, value}})
	if err != nil {
		return fmt.Errorf("store: writing setting %q: %w", key, err)
	}
	return nil
}
