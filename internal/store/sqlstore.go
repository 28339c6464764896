package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gauntlet/internal/evidence"
	"gauntlet/internal/trial"

	_ "modernc.org/sqlite"
)

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .gauntlet) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		// Fresh database.
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d (this build targets %d)", v, currentSchemaVersion)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// Put appends one record and returns the assigned trial ID.
func (s *SqlStore) Put(rec *Record) (int64, error) {
	if rec == nil {
		return 0, errors.New("record is nil")
	}
	var blurRatio, avgScore, confidence sql.NullFloat64
	var hasMosaic, hasBars, framesTotal, framesCensored sql.NullInt64
	var match sql.NullString
	if sig := rec.Signals; sig != nil {
		blurRatio = sql.NullFloat64{Float64: sig.BlurRatio, Valid: true}
		avgScore = sql.NullFloat64{Float64: sig.AvgBlurScore, Valid: true}
		confidence = sql.NullFloat64{Float64: sig.Confidence, Valid: true}
		hasMosaic = sql.NullInt64{Int64: boolInt(sig.HasMosaic), Valid: true}
		hasBars = sql.NullInt64{Int64: boolInt(sig.HasDarkBars), Valid: true}
		framesTotal = sql.NullInt64{Int64: int64(sig.FramesTotal), Valid: true}
		framesCensored = sql.NullInt64{Int64: int64(sig.FramesCensored), Valid: true}
		match = sql.NullString{String: string(sig.ContentMatch), Valid: true}
	}
	res, err := s.db.Exec(
		`INSERT INTO trials(subject_id, timestamp, prompt, category, attempt_index, ui_state, detail,
		                    blur_ratio, avg_blur_score, has_mosaic, has_dark_bars,
		                    frames_total, frames_censored, content_match, confidence,
		                    classification, log_odds_after, evidence_state, duration_ms,
		                    artifact_ref, screenshot_path)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SubjectID, rec.Timestamp.UTC().Format(time.RFC3339), rec.Prompt, rec.Category, rec.AttemptIndex,
		string(rec.UIState), rec.Detail,
		blurRatio, avgScore, hasMosaic, hasBars, framesTotal, framesCensored, match, confidence,
		string(rec.Classification), rec.LogOddsAfter, string(rec.EvidenceState), rec.DurationMS,
		rec.ArtifactRef, rec.ScreenshotPath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert trial: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	rec.TrialID = id
	return id, nil
}

const trialColumns = `id, subject_id, timestamp, prompt, category, attempt_index, ui_state, detail,
	blur_ratio, avg_blur_score, has_mosaic, has_dark_bars,
	frames_total, frames_censored, content_match, confidence,
	classification, log_odds_after, evidence_state, duration_ms,
	artifact_ref, screenshot_path`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	var ts string
	var detail, match, artifactRef, screenshot sql.NullString
	var blurRatio, avgScore, confidence sql.NullFloat64
	var hasMosaic, hasBars, framesTotal, framesCensored sql.NullInt64
	var uiState, classification, evState string
	err := row.Scan(&rec.TrialID, &rec.SubjectID, &ts, &rec.Prompt, &rec.Category, &rec.AttemptIndex,
		&uiState, &detail,
		&blurRatio, &avgScore, &hasMosaic, &hasBars,
		&framesTotal, &framesCensored, &match, &confidence,
		&classification, &rec.LogOddsAfter, &evState, &rec.DurationMS,
		&artifactRef, &screenshot)
	if err != nil {
		return nil, err
	}
	rec.Timestamp, err = time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, fmt.Errorf("parse trial timestamp: %w", err)
	}
	rec.UIState = trial.UIState(uiState)
	rec.Classification = trial.Classification(classification)
	rec.EvidenceState = evidence.State(evState)
	rec.Detail = nullStr(detail)
	rec.ArtifactRef = nullStr(artifactRef)
	rec.ScreenshotPath = nullStr(screenshot)
	if blurRatio.Valid {
		rec.Signals = &trial.Signals{
			BlurRatio:      blurRatio.Float64,
			AvgBlurScore:   avgScore.Float64,
			HasMosaic:      hasMosaic.Int64 == 1,
			HasDarkBars:    hasBars.Int64 == 1,
			FramesTotal:    int(framesTotal.Int64),
			FramesCensored: int(framesCensored.Int64),
			ContentMatch:   trial.ContentMatch(match.String),
			Confidence:     confidence.Float64,
		}
	}
	return &rec, nil
}

// Get returns the record by trial ID, or nil if absent.
func (s *SqlStore) Get(trialID int64) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRow(
		"SELECT "+trialColumns+" FROM trials WHERE id = ?", trialID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trial: %w", err)
	}
	return rec, nil
}

// List returns records matching q, ordered by trial ID.
func (s *SqlStore) List(q Query) ([]*Record, error) {
	var where []string
	var args []any
	if q.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, q.SubjectID)
	}
	if q.Classification != "" {
		where = append(where, "classification = ?")
		args = append(args, string(q.Classification))
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.UTC().Format(time.RFC3339))
	}
	sqlq := "SELECT " + trialColumns + " FROM trials"
	if len(where) > 0 {
		sqlq += " WHERE " + strings.Join(where, " AND ")
	}
	sqlq += " ORDER BY id"
	if q.Limit > 0 {
		sqlq += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.Query(sqlq, args...)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()
	var list []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	return list, nil
}

// Stats aggregates the whole log.
func (s *SqlStore) Stats() (*Stats, error) {
	st := &Stats{
		ByClassification: make(map[trial.Classification]int),
		ByUIState:        make(map[trial.UIState]int),
		ByCategory:       make(map[string]int),
	}

	rows, err := s.db.Query("SELECT classification, COUNT(*) FROM trials GROUP BY classification")
	if err != nil {
		return nil, fmt.Errorf("stats by classification: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("scan classification stat: %w", err)
		}
		st.ByClassification[trial.Classification(c)] = n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats by classification: %w", err)
	}

	uiRows, err := s.db.Query("SELECT ui_state, COUNT(*) FROM trials GROUP BY ui_state")
	if err != nil {
		return nil, fmt.Errorf("stats by ui state: %w", err)
	}
	defer uiRows.Close()
	for uiRows.Next() {
		var u string
		var n int
		if err := uiRows.Scan(&u, &n); err != nil {
			return nil, fmt.Errorf("scan ui stat: %w", err)
		}
		st.ByUIState[trial.UIState(u)] = n
	}
	if err := uiRows.Err(); err != nil {
		return nil, fmt.Errorf("stats by ui state: %w", err)
	}

	catRows, err := s.db.Query("SELECT category, COUNT(*) FROM trials GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("stats by category: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var c string
		var n int
		if err := catRows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("scan category stat: %w", err)
		}
		st.ByCategory[c] = n
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("stats by category: %w", err)
	}

	// AVG skips null blur_ratio rows, i.e. trials without signals.
	if err := s.db.QueryRow(
		"SELECT COALESCE(AVG(blur_ratio), 0) FROM trials",
	).Scan(&st.AvgBlurRatio); err != nil {
		return nil, fmt.Errorf("stats avg blur: %w", err)
	}

	// Last row per subject carries its current evidence position.
	subjRows, err := s.db.Query(
		`SELECT t.subject_id, COUNT(*), last.log_odds_after, last.evidence_state, last.timestamp
		 FROM trials t
		 JOIN trials last ON last.id = (SELECT MAX(id) FROM trials WHERE subject_id = t.subject_id)
		 GROUP BY t.subject_id
		 ORDER BY t.subject_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("stats by subject: %w", err)
	}
	defer subjRows.Close()
	for subjRows.Next() {
		var ss SubjectStats
		var state, ts string
		if err := subjRows.Scan(&ss.SubjectID, &ss.Trials, &ss.LastLogOdds, &state, &ts); err != nil {
			return nil, fmt.Errorf("scan subject stat: %w", err)
		}
		ss.LastState = evidence.State(state)
		ss.LastTimestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse subject timestamp: %w", err)
		}
		st.Subjects = append(st.Subjects, ss)
	}
	if err := subjRows.Err(); err != nil {
		return nil, fmt.Errorf("stats by subject: %w", err)
	}
	return st, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
