// Package idgen generates run identifiers. Opportunity ids are derived from
// listing content (see listing.DeriveID); runs have no natural key and get
// a prefixed UUID v7, so that their ids sort by start time.
package idgen

import "github.com/google/uuid"

const runPrefix = "run_"

// RunID returns a new run identifier such as "run_01960c57-...".
func RunID() string {
	return runPrefix + uuid.Must(uuid.NewV7()).String()
}
