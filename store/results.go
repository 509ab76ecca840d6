// CLAUDE:SUMMARY Fit result persistence: percentage stored, tier recomputed from thresholds on every read.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/rfpwatch/dbopen"
	"github.com/hazyhaar/rfpwatch/rfp"
)

// Record is a stored opportunity joined with its latest fit result.
type Record struct {
	Opportunity Opportunity   `json:"opportunity"`
	Result      rfp.FitResult `json:"result"`
	RunID       string        `json:"run_id,omitempty"`
	ScoredAt    time.Time     `json:"scored_at"`
}

// SaveResult stores res as the latest result of its opportunity.
func (s *Store) SaveResult(ctx context.Context, runID string, res rfp.FitResult) error {
	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		return err
	}
	advantages, err := json.Marshal(nonNil(res.Advantages))
	if err != nil {
		return err
	}
	redFlags, err := json.Marshal(nonNil(res.RedFlags))
	if err != nil {
		return err
	}
	if res.Breakdown == nil {
		breakdown = []byte("[]")
	}

	_, err = dbopen.Exec(ctx, s.DB,
		`INSERT INTO fit_results (opportunity_id, run_id, total_score, max_score, percentage,
		failed, failure_reason, error, breakdown_json, advantages_json, red_flags_json,
		institution_type, budget, state, reasoning, narrative, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(opportunity_id) DO UPDATE SET
			run_id = excluded.run_id,
			total_score = excluded.total_score,
			max_score = excluded.max_score,
			percentage = excluded.percentage,
			failed = excluded.failed,
			failure_reason = excluded.failure_reason,
			error = excluded.error,
			breakdown_json = excluded.breakdown_json,
			advantages_json = excluded.advantages_json,
			red_flags_json = excluded.red_flags_json,
			institution_type = excluded.institution_type,
			budget = excluded.budget,
			state = excluded.state,
			reasoning = excluded.reasoning,
			narrative = excluded.narrative,
			scored_at = excluded.scored_at`,
		res.OpportunityID, runID, res.TotalScore, res.MaxScore, res.Percentage,
		res.Failed, res.FailureReason, res.Error, string(breakdown), string(advantages), string(redFlags),
		res.InstitutionType, res.Budget, res.State, res.Reasoning, res.Narrative, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: save result %s: %w", res.OpportunityID, err)
	}
	return nil
}

const recordQuery = `SELECT o.id, o.title, o.agency, o.posted_date, o.due_date, o.detail_url,
	o.download_url, o.source, o.first_seen_at,
	r.run_id, r.total_score, r.max_score, r.percentage, r.failed, r.failure_reason, r.error,
	r.breakdown_json, r.advantages_json, r.red_flags_json, r.institution_type, r.budget,
	r.state, r.reasoning, r.narrative, r.scored_at
	FROM fit_results r JOIN opportunities o ON o.id = r.opportunity_id`

// GetResult returns the latest result of opportunity id with its tier
// derived from th, or ErrNotFound.
func (s *Store) GetResult(ctx context.Context, id string, th rfp.Thresholds) (*Record, error) {
	row := s.DB.QueryRowContext(ctx, recordQuery+` WHERE o.id = ?`, id)
	rec, err := scanRecord(row, th)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListResults returns stored results, best first. When since is non-zero
// only opportunities posted on or after since, or undated, are returned.
func (s *Store) ListResults(ctx context.Context, since time.Time, th rfp.Thresholds) ([]Record, error) {
	query := recordQuery
	var args []any
	if !since.IsZero() {
		query += ` WHERE o.posted_date IS NULL OR o.posted_date >= ?`
		args = append(args, since.UTC().Format(dateLayout))
	}
	query += ` ORDER BY r.failed, r.percentage DESC, o.id`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows, th)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ScoredIDs returns the ids of opportunities with a successful result.
// Failed results are not included so those opportunities are retried.
func (s *Store) ScoredIDs(ctx context.Context) (map[string]bool, error) {
	return s.idSet(ctx, `SELECT opportunity_id FROM fit_results WHERE failed = 0`)
}

// ListBelow returns the ids of opportunities whose latest percentage is
// strictly below pct. Failed results count as 0.
func (s *Store) ListBelow(ctx context.Context, pct int) ([]string, error) {
	return s.ids(ctx,
		`SELECT opportunity_id FROM fit_results
		WHERE (CASE WHEN failed = 1 THEN 0 ELSE percentage END) < ?
		ORDER BY opportunity_id`, pct)
}

func scanRecord(sc scanner, th rfp.Thresholds) (*Record, error) {
	var (
		rec                             Record
		posted, due                     sql.NullString
		firstSeenAt, scoredAt           int64
		breakdown, advantages, redFlags string
	)
	o := &rec.Opportunity
	r := &rec.Result
	err := sc.Scan(&o.ID, &o.Title, &o.Agency, &posted, &due, &o.DetailURL,
		&o.DownloadURL, &o.Source, &firstSeenAt,
		&rec.RunID, &r.TotalScore, &r.MaxScore, &r.Percentage, &r.Failed, &r.FailureReason, &r.Error,
		&breakdown, &advantages, &redFlags, &r.InstitutionType, &r.Budget,
		&r.State, &r.Reasoning, &r.Narrative, &scoredAt)
	if err != nil {
		return nil, err
	}
	o.PostedDate = parseDate(posted)
	o.DueDate = parseDate(due)
	o.FirstSeenAt = fromMillis(firstSeenAt)
	rec.ScoredAt = fromMillis(scoredAt)
	r.OpportunityID = o.ID

	for _, f := range []struct {
		raw string
		dst any
	}{{breakdown, &r.Breakdown}, {advantages, &r.Advantages}, {redFlags, &r.RedFlags}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("store: decode result %s: %w", o.ID, err)
		}
	}

	r.Tier = th.Tier(r.Percentage)
	if r.Failed {
		r.Tier = rfp.TierSkip
	}
	return &rec, nil
}
