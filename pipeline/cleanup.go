// CLAUDE:SUMMARY Retention cleanup: select by age or low score, re-check existence, then delete artifacts and rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"
)

// Policy selects opportunities for removal. An opportunity matching either
// rule is removed.
type Policy struct {
	// MaxAge removes opportunities first seen longer ago than this.
	MaxAge time.Duration `yaml:"max_age"`
	// BelowPercentage removes opportunities scored strictly below it.
	BelowPercentage int `yaml:"below_percentage"`
	// DryRun reports what would be removed without removing it.
	DryRun bool `yaml:"-"`
}

// CleanupReport lists what a cleanup removed.
type CleanupReport struct {
	Candidates int      `json:"candidates"`
	Deleted    []string `json:"deleted"`
	// Vanished counts candidates already gone when their turn came.
	Vanished int      `json:"vanished"`
	Errors   []string `json:"errors,omitempty"`
}

// Cleanup removes stored opportunities and their on-disk artifacts per p.
// Candidates are read first; each one is re-checked right before removal
// so a concurrent delete is not an error.
func (c *Coordinator) Cleanup(ctx context.Context, p Policy) (*CleanupReport, error) {
	if p.MaxAge <= 0 && p.BelowPercentage <= 0 {
		return nil, fmt.Errorf("pipeline: cleanup needs max age or a percentage floor")
	}
	candidates, err := c.cleanupCandidates(ctx, p)
	if err != nil {
		return nil, err
	}
	rep := &CleanupReport{Candidates: len(candidates), Deleted: []string{}}

	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		ok, err := c.deps.Store.Exists(ctx, id)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		if !ok {
			rep.Vanished++
			continue
		}
		if p.DryRun {
			rep.Deleted = append(rep.Deleted, id)
			continue
		}
		if err := c.removeArtifacts(id); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		deleted, err := c.deps.Store.DeleteOpportunity(ctx, id)
		switch {
		case err != nil:
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", id, err))
		case !deleted:
			rep.Vanished++
		default:
			rep.Deleted = append(rep.Deleted, id)
		}
	}

	c.logger.Info("pipeline: cleanup finished",
		"candidates", rep.Candidates, "deleted", len(rep.Deleted), "vanished", rep.Vanished,
		"errors", len(rep.Errors), "dry_run", p.DryRun)
	return rep, nil
}

func (c *Coordinator) cleanupCandidates(ctx context.Context, p Policy) ([]string, error) {
	set := make(map[string]bool)
	if p.MaxAge > 0 {
		ids, err := c.deps.Store.ListOlderThan(ctx, c.now().Add(-p.MaxAge))
		if err != nil {
			return nil, fmt.Errorf("pipeline: list old: %w", err)
		}
		for _, id := range ids {
			set[id] = true
		}
	}
	if p.BelowPercentage > 0 {
		ids, err := c.deps.Store.ListBelow(ctx, p.BelowPercentage)
		if err != nil {
			return nil, fmt.Errorf("pipeline: list below: %w", err)
		}
		for _, id := range ids {
			set[id] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Coordinator) removeArtifacts(id string) error {
	if c.deps.Acquirer == nil {
		return nil
	}
	dir := c.deps.Acquirer.ArtifactDir(id)
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return os.RemoveAll(dir)
}
