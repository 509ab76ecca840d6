// CLAUDE:SUMMARY Run bookkeeping: start, finish with counters, last successful run time.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/rfpwatch/dbopen"
	"github.com/hazyhaar/rfpwatch/idgen"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunStats are the counters recorded when a run finishes.
type RunStats struct {
	Discovered int
	Processed  int
	Failed     int
	Err        error
}

// StartRun records a new run in mode and returns its id.
func (s *Store) StartRun(ctx context.Context, mode string) (string, error) {
	id := idgen.RunID()
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO runs (id, mode, started_at, status) VALUES (?, ?, ?, ?)`,
		id, mode, time.Now().UnixMilli(), RunRunning)
	if err != nil {
		return "", fmt.Errorf("store: start run: %w", err)
	}
	return id, nil
}

// FinishRun closes run id. A non-nil stats.Err marks the run failed.
func (s *Store) FinishRun(ctx context.Context, id string, stats RunStats) error {
	status, msg := RunSucceeded, ""
	if stats.Err != nil {
		status, msg = RunFailed, stats.Err.Error()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE runs SET finished_at = ?, status = ?, discovered = ?, processed = ?, failed = ?, error = ?
		WHERE id = ?`,
		time.Now().UnixMilli(), status, stats.Discovered, stats.Processed, stats.Failed, msg, id)
	if err != nil {
		return fmt.Errorf("store: finish run %s: %w", id, err)
	}
	return nil
}

// LastRunAt returns the start time of the most recent successful run in
// mode, or in any mode when mode is empty. ok is false when none succeeded.
func (s *Store) LastRunAt(ctx context.Context, mode string) (t time.Time, ok bool, err error) {
	var ms int64
	err = s.DB.QueryRowContext(ctx,
		`SELECT started_at FROM runs WHERE status = ? AND (? = '' OR mode = ?)
		ORDER BY started_at DESC LIMIT 1`,
		RunSucceeded, mode, mode).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return fromMillis(ms), true, nil
}
