package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
)

// FileName is the name of the database file inside the data directory.
const FileName = "reviewharvest.db"

// ErrNotFound is returned by Open when the database does not exist and
// CreateIfNotExists is false.
var ErrNotFound = errors.New("database not found")

// HarvestDB provides SQLite-based storage for run history and cross-run
// fingerprints. It is safe for concurrent use.
type HarvestDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HarvestDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so history queries can run
	// while a harvest is writing.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HarvestDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HarvestDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (run a harvest first)", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HarvestDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HarvestDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HarvestDB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (h *HarvestDB) createTables() error {
	schema := `
	-- Runs store one invocation of the harvest command
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		sources INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		ratings TEXT,
		events TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Jobs store the terminal state of each source of a run
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		source TEXT NOT NULL,
		title TEXT,
		state TEXT NOT NULL,
		records INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		ratings TEXT,
		events TEXT,
		error TEXT,
		started_at TEXT,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_run ON jobs(run_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs(source);

	-- Fingerprints of written records, for cross-run dedup
	CREATE TABLE IF NOT EXISTS fingerprints (
		source TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (source, fingerprint)
	);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     time.Time
	Sources        int
	Total          int
	Succeeded      int
	Failed         int
	RecordsWritten int
	Ratings        [model.MaxRating + 1]int
	Events         model.EventCounts
}

// Finished reports whether FinishRun was called for the run.
func (r RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// JobRecord is the stored terminal state of a job.
type JobRecord struct {
	ID             int64
	RunID          int64
	Source         model.Source
	Title          string
	State          string
	RecordsWritten int
	Processed      int
	Ratings        [model.MaxRating + 1]int
	Events         model.EventCounts
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Summary rebuilds the summary of the run from its stored jobs.
func (r RunRecord) Summary(jobs []JobRecord) *model.Summary {
	restored := make([]*model.Job, len(jobs))
	for i, jr := range jobs {
		restored[i] = jr.Job()
	}
	summary := model.NewSummary(restored)
	summary.StartedAt = r.StartedAt
	summary.FinishedAt = r.FinishedAt
	return summary
}

// Job rebuilds the model job from its stored form. An unknown state is
// reported as failed.
func (j JobRecord) Job() *model.Job {
	state, ok := model.ParseJobState(j.State)
	if !ok {
		state = model.JobFailed
	}
	job := &model.Job{
		Source:         j.Source,
		Title:          j.Title,
		State:          state,
		RecordsWritten: j.RecordsWritten,
		Ratings:        j.Ratings,
		Processed:      j.Processed,
		Events:         j.Events,
		StartedAt:      j.StartedAt,
		FinishedAt:     j.FinishedAt,
	}
	if job.Events == nil {
		job.Events = model.NewEventCounts()
	}
	if j.Error != "" {
		job.Err = errors.New(j.Error)
	}
	return job
}

// BeginRun inserts a run row and returns its ID.
func (h *HarvestDB) BeginRun(ctx context.Context, startedAt time.Time, sources int) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, sources) VALUES (?, ?)`,
		formatTimestamp(startedAt),
		sources,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to begin run: %w", err)
	}
	return result.LastInsertId()
}

// SaveJob stores the terminal state of job under runID.
func (h *HarvestDB) SaveJob(ctx context.Context, runID int64, job *model.Job) error {
	ratings, events, err := marshalCounters(job.Ratings, job.Events)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO jobs (run_id, source, title, state, records, processed, ratings, events, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = h.db.ExecContext(ctx, query,
		runID,
		string(job.Source),
		job.Title,
		job.State.String(),
		job.RecordsWritten,
		job.Processed,
		ratings,
		events,
		job.ErrorMessage(),
		formatTimestamp(job.StartedAt),
		formatTimestamp(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// FinishRun stores the aggregate summary of runID.
func (h *HarvestDB) FinishRun(ctx context.Context, runID int64, summary *model.Summary) error {
	ratings, events, err := marshalCounters(summary.Ratings, summary.Events)
	if err != nil {
		return err
	}

	finishedAt := summary.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	query := `
	UPDATE runs SET finished_at = ?, total = ?, succeeded = ?, failed = ?, records = ?, ratings = ?, events = ?
	WHERE id = ?
	`

	result, err := h.db.ExecContext(ctx, query,
		formatTimestamp(finishedAt),
		summary.Total,
		summary.Succeeded,
		summary.Failed,
		summary.RecordsWritten,
		ratings,
		events,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run: run %d not found", runID)
	}
	return nil
}

// Remember stores the fingerprint of a record written for src.
// Storing a known fingerprint again is not an error.
func (h *HarvestDB) Remember(ctx context.Context, src model.Source, fp quota.Fingerprint) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fingerprints (source, fingerprint, created_at) VALUES (?, ?, ?)`,
		string(src),
		fp.String(),
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to remember fingerprint: %w", err)
	}
	return nil
}

// Fingerprints returns every fingerprint stored for src.
func (h *HarvestDB) Fingerprints(ctx context.Context, src model.Source) ([]quota.Fingerprint, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT fingerprint FROM fingerprints WHERE source = ?`,
		string(src),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var fps []quota.Fingerprint
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fp, err := quota.ParseFingerprint(s)
		if err != nil {
			continue // Skip malformed rows
		}
		fps = append(fps, fp)
	}

	return fps, rows.Err()
}

// ForgetSource deletes the fingerprints stored for src and returns how many
// were removed. The next --skip-seen run harvests the source from scratch.
func (h *HarvestDB) ForgetSource(ctx context.Context, src model.Source) (int64, error) {
	result, err := h.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE source = ?`, string(src))
	if err != nil {
		return 0, fmt.Errorf("failed to forget source: %w", err)
	}
	return result.RowsAffected()
}

const runColumns = `id, started_at, finished_at, sources, total, succeeded, failed, records, ratings, events`

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (h *HarvestDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or nil if it does not exist.
func (h *HarvestDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListJobs returns the jobs of runID in the order they finished.
func (h *HarvestDB) ListJobs(ctx context.Context, runID int64) ([]JobRecord, error) {
	query := `
	SELECT id, run_id, source, title, state, records, processed, ratings, events, error, started_at, finished_at
	FROM jobs
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := h.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var (
			job                   JobRecord
			source                string
			title, errMsg         sql.NullString
			ratings, events       sql.NullString
			startedAt, finishedAt sql.NullString
		)
		if err := rows.Scan(
			&job.ID,
			&job.RunID,
			&source,
			&title,
			&job.State,
			&job.RecordsWritten,
			&job.Processed,
			&ratings,
			&events,
			&errMsg,
			&startedAt,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Source = model.Source(source)
		job.Title = title.String
		job.Error = errMsg.String
		job.StartedAt = parseTimestamp(startedAt.String)
		job.FinishedAt = parseTimestamp(finishedAt.String)
		job.Ratings, job.Events = unmarshalCounters(ratings, events)
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		run                   RunRecord
		startedAt, finishedAt sql.NullString
		ratings, events       sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&startedAt,
		&finishedAt,
		&run.Sources,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.RecordsWritten,
		&ratings,
		&events,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = parseTimestamp(startedAt.String)
	run.FinishedAt = parseTimestamp(finishedAt.String)
	run.Ratings, run.Events = unmarshalCounters(ratings, events)
	return run, nil
}

func marshalCounters(ratings [model.MaxRating + 1]int, events model.EventCounts) (string, string, error) {
	r, err := json.Marshal(ratings)
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize ratings: %w", err)
	}
	if events == nil {
		events = model.NewEventCounts()
	}
	e, err := json.Marshal(events)
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize events: %w", err)
	}
	return string(r), string(e), nil
}

// unmarshalCounters decodes stored counters. Malformed values decode as
// empty counters rather than hiding the rest of the row.
func unmarshalCounters(ratings, events sql.NullString) ([model.MaxRating + 1]int, model.EventCounts) {
	var r [model.MaxRating + 1]int
	if ratings.Valid && ratings.String != "" {
		if err := json.Unmarshal([]byte(ratings.String), &r); err != nil {
			r = [model.MaxRating + 1]int{}
		}
	}
	e := model.NewEventCounts()
	if events.Valid && events.String != "" {
		if err := json.Unmarshal([]byte(events.String), &e); err != nil {
			e = model.NewEventCounts()
		}
	}
	return r, e
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
