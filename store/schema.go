// CLAUDE:SUMMARY Applies the rfpwatch SQL schema: opportunities, documents, fit_results, runs.
package store

import "database/sql"

// Schema is the complete rfpwatch schema.
const Schema = `
-- Discovered opportunities, keyed by the content-derived listing id
CREATE TABLE IF NOT EXISTS opportunities (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    agency         TEXT NOT NULL DEFAULT '',
    posted_date    TEXT,
    due_date       TEXT,
    detail_url     TEXT NOT NULL,
    download_url   TEXT NOT NULL DEFAULT '',
    source         TEXT NOT NULL DEFAULT 'listing',
    first_seen_at  INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opportunities_posted ON opportunities(posted_date);
CREATE INDEX IF NOT EXISTS idx_opportunities_seen ON opportunities(first_seen_at);

-- Normalised text of each acquired document
CREATE TABLE IF NOT EXISTS documents (
    opportunity_id TEXT NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    filename       TEXT NOT NULL,
    format         TEXT NOT NULL,
    text           TEXT NOT NULL,
    word_count     INTEGER NOT NULL,
    char_count     INTEGER NOT NULL,
    page_count     INTEGER NOT NULL DEFAULT 0,
    warnings_json  TEXT NOT NULL DEFAULT '[]',
    extracted_at   INTEGER NOT NULL,
    PRIMARY KEY (opportunity_id, position)
);

-- Latest fit result per opportunity; the tier is derived on read
CREATE TABLE IF NOT EXISTS fit_results (
    opportunity_id   TEXT PRIMARY KEY REFERENCES opportunities(id) ON DELETE CASCADE,
    run_id           TEXT NOT NULL DEFAULT '',
    total_score      INTEGER NOT NULL,
    max_score        INTEGER NOT NULL,
    percentage       INTEGER NOT NULL,
    failed           INTEGER NOT NULL DEFAULT 0,
    failure_reason   TEXT NOT NULL DEFAULT '',
    error            TEXT NOT NULL DEFAULT '',
    breakdown_json   TEXT NOT NULL DEFAULT '[]',
    advantages_json  TEXT NOT NULL DEFAULT '[]',
    red_flags_json   TEXT NOT NULL DEFAULT '[]',
    institution_type TEXT NOT NULL DEFAULT '',
    budget           REAL NOT NULL DEFAULT 0,
    state            TEXT NOT NULL DEFAULT '',
    reasoning        TEXT NOT NULL DEFAULT '',
    narrative        TEXT NOT NULL DEFAULT '',
    scored_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fit_results_pct ON fit_results(percentage DESC);

-- Run history
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    mode         TEXT NOT NULL DEFAULT 'run',
    started_at   INTEGER NOT NULL,
    finished_at  INTEGER,
    status       TEXT NOT NULL DEFAULT 'running',
    discovered   INTEGER NOT NULL DEFAULT 0,
    processed    INTEGER NOT NULL DEFAULT 0,
    failed       INTEGER NOT NULL DEFAULT 0,
    error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
