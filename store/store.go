// Package store persists rfpwatch listings, extracted text, fit results
// and run records in SQLite.
//
// Tiers are never stored: a result keeps its percentage and the tier is
// recomputed on read from the caller's thresholds.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/rfpwatch/dbopen"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the rfpwatch database.
type Store struct {
	DB *sql.DB
}

// New wraps an already-opened database. The schema must be applied.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return New(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

const dateLayout = "2006-01-02"

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
