package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"gauntlet/internal/evidence"
	"gauntlet/internal/trial"
)

// csvHeader is the column contract of the CSV projection. Order is fixed;
// external tooling indexes by position.
var csvHeader = []string{
	"trial_id", "subject_id", "timestamp", "ui_state", "blur_ratio",
	"content_match", "classification", "log_odds_after", "evidence_state",
	"duration_ms",
}

// ExportCSV writes the records as the flat CSV projection. Signal columns
// are empty for trials with no signals; that is distinct from measuring
// zero.
func ExportCSV(w io.Writer, recs []*Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range recs {
		blurRatio, match := "", ""
		if rec.Signals != nil {
			blurRatio = strconv.FormatFloat(rec.Signals.BlurRatio, 'f', -1, 64)
			match = string(rec.Signals.ContentMatch)
		}
		row := []string{
			strconv.FormatInt(rec.TrialID, 10),
			rec.SubjectID,
			rec.Timestamp.UTC().Format(time.RFC3339),
			string(rec.UIState),
			blurRatio,
			match,
			string(rec.Classification),
			strconv.FormatFloat(rec.LogOddsAfter, 'f', -1, 64),
			string(rec.EvidenceState),
			strconv.FormatInt(rec.DurationMS, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV reads a CSV projection back into records. The header must match
// the column contract exactly.
func ImportCSV(r io.Reader) ([]*Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("csv header has %d columns, want %d", len(header), len(csvHeader))
	}
	for i, col := range csvHeader {
		if header[i] != col {
			return nil, fmt.Errorf("csv column %d is %q, want %q", i, header[i], col)
		}
	}

	var recs []*Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func recordFromRow(row []string) (*Record, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad trial_id %q: %w", row[0], err)
	}
	ts, err := time.Parse(time.RFC3339, row[2])
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", row[2], err)
	}
	logOdds, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return nil, fmt.Errorf("bad log_odds_after %q: %w", row[7], err)
	}
	durationMS, err := strconv.ParseInt(row[9], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad duration_ms %q: %w", row[9], err)
	}
	rec := &Record{
		TrialID:        id,
		SubjectID:      row[1],
		Timestamp:      ts,
		UIState:        trial.UIState(row[3]),
		Classification: trial.Classification(row[6]),
		LogOddsAfter:   logOdds,
		EvidenceState:  evidence.State(row[8]),
		DurationMS:     durationMS,
	}
	if row[4] != "" {
		blurRatio, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("bad blur_ratio %q: %w", row[4], err)
		}
		rec.Signals = &trial.Signals{
			BlurRatio:    blurRatio,
			ContentMatch: trial.ContentMatch(row[5]),
		}
	}
	return rec, nil
}
