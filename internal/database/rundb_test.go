package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/probekit/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *RunDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newReport creates a harness report with one confirmed off-by-one run and
// one skipped run.
func newReport(catalogue string, started time.Time) *model.HarnessReport {
	return &model.HarnessReport{
		Catalogue: catalogue,
		StartedAt: started,
		Duration:  250 * time.Millisecond,
		Runs: []model.ProbeRun{
			{
				Probe:          "off_by_one_demo",
				Digest:         "0123456789abcdef",
				Function:       model.FunctionScanf,
				Format:         "%8s",
				Classification: model.Vulnerable,
				Verdict:        model.VerdictConfirmed,
				Observations: []model.Observation{
					{Directive: "%8s", Buffer: "buf", Capacity: 8, InputLen: 7, Written: 8, AfterFirstByte: 'B', AfterIntact: true, Expected: true},
					{Directive: "%8s", Buffer: "buf", Capacity: 8, InputLen: 8, Written: 9, Overflow: 1, AfterIntact: true, Expected: true},
					{Directive: "%8s", Buffer: "buf", Capacity: 8, InputLen: 9, Written: 9, Overflow: 1, AfterIntact: true, Expected: true},
				},
			},
			{
				Probe:          "param",
				Digest:         "fedcba9876543210",
				Function:       model.FunctionScanf,
				Format:         "%64s",
				Classification: model.Indeterminate,
				Verdict:        model.VerdictSkipped,
			},
		},
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := db.SaveRun(context.Background(), newReport("c", time.Now())); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}

		db, err = Open(dir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), "", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run after reopening, got %d", len(runs))
		}
	})
}

// TestSaveAndGetRun tests the run round trip.
func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	report := newReport("scanf-fscanf", started)

	id, err := db.SaveRun(ctx, report)
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if id == 0 || report.ID != id {
		t.Fatalf("expected report.ID to be set, got id=%d report.ID=%d", id, report.ID)
	}

	got, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
	if got.Catalogue != "scanf-fscanf" || !got.StartedAt.Equal(started) {
		t.Errorf("unexpected run header: %+v", got)
	}
	if len(got.Runs) != 2 || len(got.Runs[0].Observations) != 3 {
		t.Fatalf("unexpected runs: %+v", got.Runs)
	}
	if got.Runs[0].Observations[1].AfterFirstByte != 0 {
		t.Errorf("expected the zeroed neighbour byte to survive the round trip")
	}

	if _, err := db.GetRun(ctx, id+100); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// TestListRuns tests history listing, filtering and limits.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "a"} {
		report := newReport(name, base.Add(time.Duration(i)*time.Hour))
		if i == 2 {
			report.Cancelled = true
		}
		if _, err := db.SaveRun(ctx, report); err != nil {
			t.Fatalf("failed to save run %d: %v", i, err)
		}
	}

	tests := []struct {
		name      string
		catalogue string
		limit     int
		want      int
	}{
		{"all runs", "", 0, 3},
		{"filtered by catalogue", "a", 0, 2},
		{"limited", "", 1, 1},
		{"unknown catalogue", "zzz", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runs, err := db.ListRuns(ctx, tt.catalogue, tt.limit)
			if err != nil {
				t.Fatalf("failed to list runs: %v", err)
			}
			if len(runs) != tt.want {
				t.Errorf("expected %d runs, got %d", tt.want, len(runs))
			}
		})
	}

	t.Run("newest first with counts", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "a", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if runs[0].ID <= runs[1].ID {
			t.Errorf("expected newest first, got ids %d, %d", runs[0].ID, runs[1].ID)
		}
		if !runs[0].Cancelled || runs[1].Cancelled {
			t.Error("expected only the newest run to be cancelled")
		}
		if runs[0].Verdicts[model.VerdictConfirmed] != 1 || runs[0].Verdicts[model.VerdictSkipped] != 1 {
			t.Errorf("unexpected verdict counts: %v", runs[0].Verdicts)
		}
		if runs[0].Duration != 250*time.Millisecond {
			t.Errorf("duration = %s", runs[0].Duration)
		}
		if !runs[1].StartedAt.Equal(base) {
			t.Errorf("started_at = %s, want %s", runs[1].StartedAt, base)
		}
	})
}

// TestLatestRun tests retrieval of the newest run per catalogue.
func TestLatestRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.LatestRun(ctx, ""); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on empty database, got %v", err)
	}

	first := newReport("a", time.Now())
	second := newReport("b", time.Now())
	for _, r := range []*model.HarnessReport{first, second} {
		if _, err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	got, err := db.LatestRun(ctx, "a")
	if err != nil {
		t.Fatalf("failed to get latest run: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("latest run of a = %d, want %d", got.ID, first.ID)
	}

	got, err = db.LatestRun(ctx, "")
	if err != nil {
		t.Fatalf("failed to get latest run: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("latest run = %d, want %d", got.ID, second.ID)
	}
}

// TestOverflows tests observation queries by digest.
func TestOverflows(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.SaveRun(ctx, newReport("a", time.Now())); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	got, err := db.Overflows(ctx, "0123456789abcdef")
	if err != nil {
		t.Fatalf("failed to query overflows: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 overflowing observations, got %d", len(got))
	}
	for _, obs := range got {
		if obs.Overflow != 1 || obs.AfterFirstByte != 0 || !obs.AfterIntact {
			t.Errorf("unexpected observation: %+v", obs)
		}
	}

	none, err := db.Overflows(ctx, "fedcba9876543210")
	if err != nil {
		t.Fatalf("failed to query overflows: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no overflows for a skipped probe, got %d", len(none))
	}
}

// TestParseTimestamp tests the timestamp fallbacks.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		zero bool
	}{
		{"2026-01-02T03:04:05.123456789Z", false},
		{"2026-01-02T03:04:05Z", false},
		{"2026-01-02 03:04:05", false},
		{"not a time", true},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.in); got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v, zero want %v", tt.in, got, tt.zero)
		}
	}
}
