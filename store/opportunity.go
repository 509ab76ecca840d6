// CLAUDE:SUMMARY Opportunity upsert and lookup, known-id sets, age-based listing and deletion.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/rfpwatch/dbopen"
	"github.com/hazyhaar/rfpwatch/rfp"
)

const listingColumns = `id, title, agency, posted_date, due_date, detail_url, download_url, source, first_seen_at`

// UpsertListing inserts l or refreshes its mutable fields. first_seen_at is
// kept from the first insert; an empty DownloadURL never erases a known one.
func (s *Store) UpsertListing(ctx context.Context, l rfp.Listing) error {
	now := time.Now().UnixMilli()
	source := l.Source
	if source == "" {
		source = rfp.SourceListing
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO opportunities (id, title, agency, posted_date, due_date, detail_url,
		download_url, source, first_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			agency = excluded.agency,
			posted_date = COALESCE(excluded.posted_date, opportunities.posted_date),
			due_date = COALESCE(excluded.due_date, opportunities.due_date),
			detail_url = excluded.detail_url,
			download_url = CASE WHEN excluded.download_url != '' THEN excluded.download_url ELSE opportunities.download_url END,
			updated_at = excluded.updated_at`,
		l.ID, l.Title, l.Agency, nullDate(l.PostedDate), nullDate(l.DueDate), l.DetailURL,
		l.DownloadURL, source, now, now,
	)
	if err != nil {
		return fmt.Errorf("store: upsert listing %s: %w", l.ID, err)
	}
	return nil
}

// Opportunity is a stored listing with its bookkeeping timestamps.
type Opportunity struct {
	rfp.Listing
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// GetListing returns the stored listing by id, or ErrNotFound.
func (s *Store) GetListing(ctx context.Context, id string) (*Opportunity, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM opportunities WHERE id = ?`, id)
	o, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(sc scanner) (*Opportunity, error) {
	var (
		o           Opportunity
		posted, due sql.NullString
		firstSeenAt int64
	)
	err := sc.Scan(&o.ID, &o.Title, &o.Agency, &posted, &due, &o.DetailURL,
		&o.DownloadURL, &o.Source, &firstSeenAt)
	if err != nil {
		return nil, err
	}
	o.PostedDate = parseDate(posted)
	o.DueDate = parseDate(due)
	o.FirstSeenAt = fromMillis(firstSeenAt)
	return &o, nil
}

// Exists reports whether an opportunity row is present.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// KnownIDs returns the ids of every stored opportunity.
func (s *Store) KnownIDs(ctx context.Context) (map[string]bool, error) {
	return s.idSet(ctx, `SELECT id FROM opportunities`)
}

// ListOlderThan returns the ids of opportunities first seen before cutoff.
func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM opportunities WHERE first_seen_at < ? ORDER BY first_seen_at`, cutoff.UnixMilli())
}

// DeleteOpportunity removes an opportunity with its documents and result.
// It reports whether a row was deleted.
func (s *Store) DeleteOpportunity(ctx context.Context, id string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM opportunities WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) idSet(ctx context.Context, query string, args ...any) (map[string]bool, error) {
	ids, err := s.ids(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
