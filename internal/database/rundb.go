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

	"github.com/nao1215/probekit/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "probekit.db"

// ErrRunNotFound is returned when no run matches the query.
var ErrRunNotFound = errors.New("run not found")

// RunDB provides SQLite-based storage for harness runs.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- Runs store one harness execution over a catalogue
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		catalogue TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ns INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		confirmed INTEGER NOT NULL DEFAULT 0,
		mismatch INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_catalogue ON runs(catalogue);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Observations store every boundary execution of a run
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		probe TEXT NOT NULL,
		digest TEXT NOT NULL,
		directive TEXT NOT NULL,
		buffer TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		input_len INTEGER NOT NULL,
		written INTEGER NOT NULL,
		overflow INTEGER NOT NULL,
		after_first_byte INTEGER NOT NULL,
		after_intact INTEGER NOT NULL,
		expected INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_obs_run ON observations(run_id);
	CREATE INDEX IF NOT EXISTS idx_obs_digest ON observations(digest);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a harness report and its observations in one transaction
// and sets report.ID.
func (rdb *RunDB) SaveRun(ctx context.Context, report *model.HarnessReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (catalogue, started_at, duration_ns, cancelled, confirmed, mismatch, skipped, failed, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Catalogue,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		int64(report.Duration),
		report.Cancelled,
		report.CountVerdict(model.VerdictConfirmed),
		report.CountVerdict(model.VerdictMismatch),
		report.CountVerdict(model.VerdictSkipped),
		report.CountVerdict(model.VerdictFailed),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO observations (run_id, probe, digest, directive, buffer, capacity, input_len, written, overflow, after_first_byte, after_intact, expected)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for _, run := range report.Runs {
		for _, obs := range run.Observations {
			if _, err := stmt.ExecContext(ctx,
				id, run.Probe, run.Digest, obs.Directive, obs.Buffer,
				obs.Capacity, obs.InputLen, obs.Written, obs.Overflow,
				int(obs.AfterFirstByte), obs.AfterIntact, obs.Expected,
			); err != nil {
				return 0, fmt.Errorf("failed to save observation of %s: %w", run.Probe, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	report.ID = id
	return id, nil
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64 `json:"id"`

	// Catalogue is the catalogue the run executed.
	Catalogue string `json:"catalogue"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// Cancelled is true when the run was interrupted.
	Cancelled bool `json:"cancelled"`

	// Verdicts counts runs per verdict.
	Verdicts map[model.Verdict]int `json:"verdicts"`
}

// ListRuns returns run metadata, newest first. An empty catalogue matches
// every run; a non-positive limit returns all of them.
func (rdb *RunDB) ListRuns(ctx context.Context, catalogue string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, catalogue, started_at, duration_ns, cancelled, confirmed, mismatch, skipped, failed
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if catalogue != "" {
		query += " AND catalogue = ?"
		args = append(args, catalogue)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var duration int64
		var confirmed, mismatch, skipped, failed int

		if err := rows.Scan(&meta.ID, &meta.Catalogue, &startedAt, &duration, &meta.Cancelled,
			&confirmed, &mismatch, &skipped, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.Duration = time.Duration(duration)
		meta.Verdicts = map[model.Verdict]int{
			model.VerdictConfirmed: confirmed,
			model.VerdictMismatch:  mismatch,
			model.VerdictSkipped:   skipped,
			model.VerdictFailed:    failed,
		}
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun retrieves a run by its database ID.
func (rdb *RunDB) GetRun(ctx context.Context, id int64) (*model.HarnessReport, error) {
	return rdb.queryReport(ctx, `SELECT id, report_json FROM runs WHERE id = ?`, id)
}

// LatestRun retrieves the most recent run of a catalogue. An empty catalogue
// matches any run.
func (rdb *RunDB) LatestRun(ctx context.Context, catalogue string) (*model.HarnessReport, error) {
	if catalogue == "" {
		return rdb.queryReport(ctx, `SELECT id, report_json FROM runs ORDER BY id DESC LIMIT 1`)
	}
	return rdb.queryReport(ctx, `
	SELECT id, report_json FROM runs
	WHERE catalogue = ?
	ORDER BY id DESC
	LIMIT 1
	`, catalogue)
}

// queryReport decodes the report of the single row selected by query.
func (rdb *RunDB) queryReport(ctx context.Context, query string, args ...any) (*model.HarnessReport, error) {
	var id int64
	var reportJSON string

	err := rdb.db.QueryRowContext(ctx, query, args...).Scan(&id, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.HarnessReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse run %d: %w", id, err)
	}
	report.ID = id

	return &report, nil
}

// Overflows returns the observations of a probe digest that wrote past their
// buffer, newest run first. Digests identify probes across renames.
func (rdb *RunDB) Overflows(ctx context.Context, digest string) ([]model.Observation, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT directive, buffer, capacity, input_len, written, overflow, after_first_byte, after_intact, expected
	FROM observations
	WHERE digest = ? AND overflow > 0
	ORDER BY run_id DESC, id
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var results []model.Observation
	for rows.Next() {
		var obs model.Observation
		var after int

		if err := rows.Scan(&obs.Directive, &obs.Buffer, &obs.Capacity, &obs.InputLen,
			&obs.Written, &obs.Overflow, &after, &obs.AfterIntact, &obs.Expected); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.AfterFirstByte = byte(after) //nolint:gosec // stored from a byte
		results = append(results, obs)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
