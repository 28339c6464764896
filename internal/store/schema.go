package store

// schemaVersionV1 is the current schema.
const schemaVersionV1 = 1

// schemaV1 is the trial log DDL. Signal columns are nullable: a trial whose
// extraction failed persists with no signals, which is distinct from signals
// measuring zero.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS trials (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id      TEXT NOT NULL,
	timestamp       TEXT NOT NULL,
	prompt          TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	attempt_index   INTEGER NOT NULL DEFAULT 0,
	ui_state        TEXT NOT NULL,
	detail          TEXT,
	blur_ratio      REAL,
	avg_blur_score  REAL,
	has_mosaic      INTEGER,
	has_dark_bars   INTEGER,
	frames_total    INTEGER,
	frames_censored INTEGER,
	content_match   TEXT,
	confidence      REAL,
	classification  TEXT NOT NULL,
	log_odds_after  REAL NOT NULL,
	evidence_state  TEXT NOT NULL,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	artifact_ref    TEXT,
	screenshot_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_trials_subject ON trials(subject_id);
CREATE INDEX IF NOT EXISTS idx_trials_classification ON trials(classification);
CREATE INDEX IF NOT EXISTS idx_trials_timestamp ON trials(timestamp);
`
