package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/forest.report/internal/monitoring"
	"github.com/banshee-data/forest.report/internal/report"
)

// Store wraps the run database.
type Store struct {
	db *sql.DB
}

// StepRecord is the persisted form of one pipeline step's outcome.
type StepRecord struct {
	Name      string `json:"name"`
	StartedAt int64  `json:"started_at"` // unix nanos
	ElapsedNs int64  `json:"elapsed_ns"`
	Error     string `json:"error,omitempty"`
}

// StepRecords converts observer timings to their persisted form.
func StepRecords(steps []monitoring.StepTiming) []StepRecord {
	out := make([]StepRecord, len(steps))
	for i, s := range steps {
		out[i] = StepRecord{
			Name:      s.Name,
			StartedAt: s.Started.UnixNano(),
			ElapsedNs: s.Elapsed.Nanoseconds(),
		}
		if s.Err != nil {
			out[i].Error = s.Err.Error()
		}
	}
	return out
}

// Run is one stored analysis run.
type Run struct {
	Row        report.ResultsRow `json:"row"`
	ConfigJSON json.RawMessage   `json:"config_json,omitempty"`
	Version    string            `json:"version"`
	CreatedAt  int64             `json:"created_at"` // unix nanos
	Steps      []StepRecord      `json:"steps,omitempty"`
}

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path and migrates it
// to the latest schema.
func Open(path string) (*Store, error) {
	s, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB opens (creating if needed) the database at path without touching
// the schema; callers manage it through the Migrate methods.
func OpenDB(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var logf = monitoring.Prefixed("[sqlite] ")

// retryOnBusy retries fn while SQLite reports the database locked.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	backoff := 20 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		logf("database busy, retrying in %v (attempt %d/%d)", backoff, i+1, attempts)
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

const runColumns = `run_id, aoi, start_date, end_date, years_between,
	annual_rate, total_deforested, total_gain, hotspot_pixels, hotspot_regions,
	total_carbon, mean_carbon, std_carbon, min_carbon, max_carbon, carbon_emissions,
	original_forest_area, fragmented_forest_area, impact_zone_area, fragment_count,
	config_json, version, created_at`

// InsertRun stores run and its steps in one transaction. An empty RunID
// is replaced with a fresh UUID, a zero CreatedAt with the current time.
// Returns the run ID.
func (s *Store) InsertRun(ctx context.Context, run *Run) (string, error) {
	if run.Row.RunID == "" {
		run.Row.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	var cfg sql.NullString
	if len(run.ConfigJSON) > 0 {
		cfg = sql.NullString{String: string(run.ConfigJSON), Valid: true}
	}
	r := run.Row

	err := retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `INSERT INTO forest_runs (`+runColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.AOI, formatDate(r.StartDate), formatDate(r.EndDate), r.YearsBetween,
			r.AnnualRate, r.TotalDeforested, r.TotalGain, r.HotspotPixels, r.HotspotRegions,
			r.TotalCarbon, r.MeanCarbon, r.StdCarbon, r.MinCarbon, r.MaxCarbon, r.CarbonEmissions,
			r.OriginalForestArea, r.FragmentedForestArea, r.ImpactZoneArea, r.FragmentCount,
			cfg, run.Version, run.CreatedAt,
		)
		if err != nil {
			return err
		}
		for i, st := range run.Steps {
			var msg sql.NullString
			if st.Error != "" {
				msg = sql.NullString{String: st.Error, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO forest_run_steps
				(run_id, seq, name, started_at, elapsed_ns, error) VALUES (?, ?, ?, ?, ?, ?)`,
				r.RunID, i, st.Name, st.StartedAt, st.ElapsedNs, msg); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return r.RunID, nil
}

// GetRun loads one run with its steps.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM forest_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.Steps, err = s.steps(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first. A non-empty aoi restricts the list
// to that area of interest. Steps are not loaded.
func (s *Store) ListRuns(ctx context.Context, aoi string) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM forest_runs`
	var args []interface{}
	if aoi != "" {
		query += ` WHERE aoi = ?`
		args = append(args, aoi)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, by cascade, its steps.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	var affected int64
	err := retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM forest_runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (s *Store) steps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, started_at, elapsed_ns, error
		FROM forest_run_steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var st StepRecord
		var msg sql.NullString
		if err := rows.Scan(&st.Name, &st.StartedAt, &st.ElapsedNs, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Error = msg.String
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var start, end string
	var cfg sql.NullString
	r := &run.Row
	err := sc.Scan(
		&r.RunID, &r.AOI, &start, &end, &r.YearsBetween,
		&r.AnnualRate, &r.TotalDeforested, &r.TotalGain, &r.HotspotPixels, &r.HotspotRegions,
		&r.TotalCarbon, &r.MeanCarbon, &r.StdCarbon, &r.MinCarbon, &r.MaxCarbon, &r.CarbonEmissions,
		&r.OriginalForestArea, &r.FragmentedForestArea, &r.ImpactZoneArea, &r.FragmentCount,
		&cfg, &run.Version, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if r.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if r.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	if cfg.Valid {
		run.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &run, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(report.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(report.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored date %q: %w", s, err)
	}
	return t, nil
}
