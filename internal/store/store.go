// Package store provides the durable License Store: SQLite-backed records
// of licenses, their machine activations, and branding settings. It is the
// single authority validation decisions are made against; the activation
// engine and the admin service both operate through it.
//
// Uniqueness is enforced at the schema level — licenses.license_key and the
// (license_id, machine_id) activation pair both carry UNIQUE constraints —
// so constraint violations surface as typed sentinel errors rather than
// assumptions. Mutations run inside IMMEDIATE transactions so every exit
// path commits or rolls back.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	apierrors "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/errors"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/license"
)

const schema = `
CREATE TABLE IF NOT EXISTS licenses (
	id TEXT PRIMARY KEY,
	license_key TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	expires_at TEXT,
	max_activations INTEGER NOT NULL DEFAULT 1 CHECK (max_activations >= 1),
	revoked INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS activations (
	id TEXT PRIMARY KEY,
	license_id TEXT NOT NULL,
	machine_id TEXT NOT NULL,
	activated_at TEXT NOT NULL,
	last_seen TEXT NOT NULL,
	UNIQUE (license_id, machine_id)
);

CREATE INDEX IF NOT EXISTS idx_activations_license ON activations(license_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

INSERT OR IGNORE INTO settings(key, value) VALUES ('site_name', 'Flux Licensing');
INSERT OR IGNORE INTO settings(key, value) VALUES ('accent', 'fuchsia');
`

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	Path string

	// PoolSize is the connection pool size. Defaults to 4 if zero.
	PoolSize int

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Store is the SQLite-backed license store. Safe for concurrent use.
type Store struct {
	pool   *pool
	logger *slog.Logger
}

// Open creates the store, applying the schema on every new connection. The
// database file is created if it does not exist.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p, err := openPool(poolConfig{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, err
	}

	return &Store{
		pool:   p,
		logger: logger.With(slog.String("component", "store")),
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping verifies the database is reachable. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return sqlitex.ExecuteTransient(conn, "SELECT 1", nil)
}

// CreateLicenseParams carries the admin-supplied fields for a new license.
// The key must already be generated; the store normalizes it to upper case.
type CreateLicenseParams struct {
	Key            string
	ExpiresAt      *time.Time
	MaxActivations int
	Notes          string
}

// CreateLicense inserts a new license. Returns ErrDuplicateKey if the key
// already exists so the caller can regenerate and retry.
func (s *Store) CreateLicense(ctx context.Context, params CreateLicenseParams) (*license.License, error) {
	key := license.NormalizeKey(params.Key)
	if key == "" {
		return nil, fmt.Errorf("store: license key is required")
	}
	if params.MaxActivations < 1 {
		return nil, fmt.Errorf("store: max_activations must be >= 1, got %d", params.MaxActivations)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	lic := &license.License{
		ID:             uuid.New().String(),
		Key:            key,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
		MaxActivations: params.MaxActivations,
		Notes:          params.Notes,
	}
	if params.ExpiresAt != nil {
		lic.ExpiresRaw = params.ExpiresAt.UTC().Format(time.RFC3339)
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO licenses (id, license_key, created_at, expires_at, max_activations, revoked, notes)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				lic.ID, lic.Key, formatTime(lic.CreatedAt),
				nullableText(lic.ExpiresRaw), lic.MaxActivations, lic.Notes,
			},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			return nil, apierrors.ErrDuplicateKey
		}
		return nil, fmt.Errorf("store: inserting license: %w", err)
	}

	s.logger.InfoContext(ctx, "license created",
		slog.String("license_id", lic.ID),
		slog.Int("max_activations", lic.MaxActivations))
	return lic, nil
}

// GetLicenseByKey looks up a license by key, case-insensitively. Returns
// ErrLicenseNotFound if no such key exists.
func (s *Store) GetLicenseByKey(ctx context.Context, key string) (*license.License, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	return s.selectLicense(conn, "license_key = ?", license.NormalizeKey(key))
}

// GetLicenseByID looks up a license by surrogate id. Returns
// ErrLicenseNotFound if it does not exist.
func (s *Store) GetLicenseByID(ctx context.Context, id string) (*license.License, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	return s.selectLicense(conn, "id = ?", id)
}

func (s *Store) selectLicense(conn *sqlite.Conn, where string, arg string) (*license.License, error) {
	var lic *license.License
	err := sqlitex.Execute(conn,
		`SELECT id, license_key, created_at, expires_at, max_activations, revoked, notes
		 FROM licenses WHERE `+where,
		&sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				l, err := scanLicense(stmt)
				if err != nil {
					return err
				}
				lic = l
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: selecting license: %w", err)
	}
	if lic == nil {
		return nil, apierrors.ErrLicenseNotFound
	}
	return lic, nil
}

// RevokeLicense sets revoked=true. Idempotent: revoking an already-revoked
// license succeeds. Returns ErrLicenseNotFound for an unknown id.
func (s *Store) RevokeLicense(ctx context.Context, id string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE licenses SET revoked = 1 WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("store: revoking license: %w", err)
	}
	if conn.Changes() == 0 {
		return apierrors.ErrLicenseNotFound
	}

	s.logger.InfoContext(ctx, "license revoked", slog.String("license_id", id))
	return nil
}

// DeleteLicense removes a license and all of its activations in a single
// transaction. The license exclusively owns its activations, so the
// cascade is unconditional. Returns ErrLicenseNotFound for an unknown id.
func (s *Store) DeleteLicense(ctx context.Context, id string) (err error) {
	conn, takeErr := s.pool.Take(ctx)
	if takeErr != nil {
		return takeErr
	}
	defer s.pool.Put(conn)

	endTransaction, txErr := sqlitex.ImmediateTransaction(conn)
	if txErr != nil {
		return fmt.Errorf("store: begin delete transaction: %w", txErr)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"DELETE FROM activations WHERE license_id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("store: deleting activations: %w", err)
	}

	err = sqlitex.Execute(conn,
		"DELETE FROM licenses WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("store: deleting license: %w", err)
	}
	if conn.Changes() == 0 {
		return apierrors.ErrLicenseNotFound
	}

	s.logger.InfoContext(ctx, "license deleted", slog.String("license_id", id))
	return nil
}

// ListLicenses returns all licenses with their activation counts, newest
// created first.
func (s *Store) ListLicenses(ctx context.Context) ([]license.ListEntry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	entries := []license.ListEntry{}
	err = sqlitex.Execute(conn,
		`SELECT l.id, l.license_key, l.created_at, l.expires_at, l.max_activations, l.revoked, l.notes,
		        (SELECT COUNT(*) FROM activations a WHERE a.license_id = l.id) AS activation_count
		 FROM licenses l
		 ORDER BY l.created_at DESC, l.rowid DESC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				lic, err := scanLicense(stmt)
				if err != nil {
					return err
				}
				entries = append(entries, license.ListEntry{
					License:         *lic,
					ActivationCount: int(stmt.ColumnInt64(7)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: listing licenses: %w", err)
	}
	return entries, nil
}

// CountActivations returns the number of activation rows for a license.
func (s *Store) CountActivations(ctx context.Context, licenseID string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn,
		"SELECT COUNT(*) FROM activations WHERE license_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{licenseID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = int(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: counting activations: %w", err)
	}
	return count, nil
}

// GetActivation returns the activation for a (license, machine) pair, or
// ErrActivationNotFound.
func (s *Store) GetActivation(ctx context.Context, licenseID, machineID string) (*license.Activation, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var act *license.Activation
	err = sqlitex.Execute(conn,
		`SELECT id, license_id, machine_id, activated_at, last_seen
		 FROM activations WHERE license_id = ? AND machine_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{licenseID, machineID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				a, err := scanActivation(stmt)
				if err != nil {
					return err
				}
				act = a
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: selecting activation: %w", err)
	}
	if act == nil {
		return nil, apierrors.ErrActivationNotFound
	}
	return act, nil
}

// RecordActivation inserts a new activation row with activated_at and
// last_seen both set to now. Returns ErrDuplicateActivation if the pair
// already exists — the race-protection contract the engine relies on.
func (s *Store) RecordActivation(ctx context.Context, licenseID, machineID string, now time.Time) (*license.Activation, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	act := &license.Activation{
		ID:          uuid.New().String(),
		LicenseID:   licenseID,
		MachineID:   machineID,
		ActivatedAt: now.UTC().Truncate(time.Second),
		LastSeen:    now.UTC().Truncate(time.Second),
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO activations (id, license_id, machine_id, activated_at, last_seen)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				act.ID, act.LicenseID, act.MachineID,
				formatTime(act.ActivatedAt), formatTime(act.LastSeen),
			},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			return nil, apierrors.ErrDuplicateActivation
		}
		return nil, fmt.Errorf("store: inserting activation: %w", err)
	}

	s.logger.InfoContext(ctx, "activation recorded",
		slog.String("license_id", licenseID))
	return act, nil
}

// TouchActivation updates last_seen on an existing activation.
func (s *Store) TouchActivation(ctx context.Context, activationID string, now time.Time) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE activations SET last_seen = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{formatTime(now.UTC()), activationID}})
	if err != nil {
		return fmt.Errorf("store: touching activation: %w", err)
	}
	if conn.Changes() == 0 {
		return apierrors.ErrActivationNotFound
	}
	return nil
}

func scanLicense(stmt *sqlite.Stmt) (*license.License, error) {
	createdAt, err := time.Parse(time.RFC3339, stmt.ColumnText(2))
	if err != nil {
		return nil, fmt.Errorf("store: parsing created_at: %w", err)
	}
	return &license.License{
		ID:             stmt.ColumnText(0),
		Key:            stmt.ColumnText(1),
		CreatedAt:      createdAt,
		ExpiresRaw:     stmt.ColumnText(3),
		MaxActivations: int(stmt.ColumnInt64(4)),
		Revoked:        stmt.ColumnInt64(5) != 0,
		Notes:          stmt.ColumnText(6),
	}, nil
}

func scanActivation(stmt *sqlite.Stmt) (*license.Activation, error) {
	activatedAt, err := time.Parse(time.RFC3339, stmt.ColumnText(3))
	if err != nil {
		return nil, fmt.Errorf("store: parsing activated_at: %w", err)
	}
	lastSeen, err := time.Parse(time.RFC3339, stmt.ColumnText(4))
	if err != nil {
		return nil, fmt.Errorf("store: parsing last_seen: %w", err)
	}
	return &license.Activation{
		ID:          stmt.ColumnText(0),
		LicenseID:   stmt.ColumnText(1),
		MachineID:   stmt.ColumnText(2),
		ActivatedAt: activatedAt,
		LastSeen:    lastSeen,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// nullableText maps an empty string to SQL NULL so an absent expiry is
// stored as NULL, matching "never expires".
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
