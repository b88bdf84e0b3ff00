package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// poolConfig holds the parameters for opening the SQLite connection pool.
type poolConfig struct {
	// Path is the filesystem path to the SQLite database file. The parent
	// directory must exist; the file is created if it does not. ":memory:"
	// gives an in-memory database (pool size must be 1 since each
	// in-memory connection is independent).
	Path string

	// PoolSize is the number of connections. If zero or negative, defaults
	// to max(runtime.NumCPU(), 4). SQLite serializes writes regardless of
	// pool size; extra connections only help concurrent reads.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is used.
	Logger *slog.Logger

	// OnConnect runs once per connection after standard pragmas are
	// applied. Used for schema creation.
	OnConnect func(conn *sqlite.Conn) error
}

// pool is a fixed-size set of SQLite connections with standard pragmas
// applied. The pool is safe for concurrent use; individual connections are
// not — each goroutine must take its own connection and put it back.
type pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// openPool creates the connection pool. Connections are initialized lazily
// on first take, each with WAL journaling, NORMAL synchronous, a busy
// timeout for write contention, and foreign keys OFF — referential
// integrity between licenses and activations is managed explicitly inside
// delete transactions.
func openPool(cfg poolConfig) (*pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: database path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite pool opened",
		"path", cfg.Path,
		"pool_size", poolSize,
	)

	return &pool{
		inner:  inner,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// Take borrows a connection. Blocks until one is available or ctx is
// cancelled. The caller must Put the connection back, typically via defer.
func (p *pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: take connection: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil.
func (p *pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes all connections. Blocks until borrowed connections are
// returned.
func (p *pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error",
			"path", p.path,
			"error", err,
		)
		return fmt.Errorf("store: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("store: preparing connection: %w", err)
		}
	}

	return nil
}
