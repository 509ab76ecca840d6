// CLAUDE:SUMMARY Opens the rfpwatch SQLite database with per-connection pragmas in the DSN, optional schema, test helper.
// Package dbopen opens the rfpwatch SQLite database.
//
// Pragmas travel in the DSN (`_pragma=`), so every pooled connection gets
// them, not only the first:
//
//	foreign_keys = 1
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Transactions start with BEGIN IMMEDIATE (`_txlock=immediate`).
//
// In tests:
//
//	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

type config struct {
	busyTimeout  int
	synchronous  string
	mkdirAll     bool
	maxOpenConns int
	schemas      []string
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets the synchronous pragma. Default: NORMAL.
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates the parent directories of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithMaxOpenConns caps the connection pool. 0 leaves database/sql's default.
func WithMaxOpenConns(n int) Option { return func(c *config) { c.maxOpenConns = n } }

// WithSchema runs s once the database is open. Statements must be idempotent.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// DSN returns the modernc.org/sqlite data source name for path.
func DSN(path string, opts ...Option) string {
	return buildDSN(path, apply(opts))
}

func apply(opts []Option) config {
	cfg := config{busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func buildDSN(path string, cfg config) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	if path != memoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout))
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", cfg.synchronous))
	q.Set("_txlock", "immediate")

	if path == memoryPath {
		return "file::memory:?" + q.Encode()
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens the SQLite database at path, or an in-memory one for ":memory:".
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := apply(opts)

	if cfg.mkdirAll && path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", buildDSN(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	for i, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	return db, nil
}

// OpenMemory opens a private in-memory database for a test and closes it
// on cleanup. The pool holds one connection: each connection to
// ":memory:" is its own database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memoryPath, append(opts, WithMaxOpenConns(1))...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
