package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"deal_scout/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := models.NewSearchRun("condos in Austin", "api")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	run.Type = models.CategorySearch
	run.Phrases = 6
	run.URLsFound = 4
	run.ListingsFound = 12
	run.Analyzed = 10
	run.Results = 2
	run.Degrade(models.ScrapeSkipped)
	run.Finish(models.RunStatusCompleted, nil)
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	got := runs[0]
	if got.ID != run.ID || got.Query != "condos in Austin" || got.Trigger != "api" {
		t.Fatalf("unexpected run identity %+v", got)
	}
	if got.Status != models.RunStatusCompleted || got.Type != models.CategorySearch {
		t.Fatalf("unexpected status/type %s/%s", got.Status, got.Type)
	}
	if got.ListingsFound != 12 || got.Analyzed != 10 || got.Results != 2 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatalf("expected finished_at")
	}
	if len(got.Degradations) != 1 || got.Degradations[0] != models.ScrapeSkipped {
		t.Fatalf("unexpected degradations %v", got.Degradations)
	}
}

func TestSQLiteStore_FailedRunKeepsError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := models.NewSearchRun("q", "cli")
	store.CreateRun(ctx, run)
	run.Finish(models.RunStatusFailed, errors.New("classification failed"))
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if runs[0].Error != "classification failed" || runs[0].Status != models.RunStatusFailed {
		t.Fatalf("unexpected failed run %+v", runs[0])
	}
	if len(runs[0].Degradations) != 0 {
		t.Fatalf("expected no degradations, got %v", runs[0].Degradations)
	}
}

func TestSQLiteStore_RecentRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, q := range []string{"first", "second", "third"} {
		run := models.NewSearchRun(q, "api")
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("create run: %v", err)
		}
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 || runs[0].Query != "third" || runs[1].Query != "second" {
		t.Fatalf("unexpected order %+v", runs)
	}
}

func TestSQLiteStore_LogsAndResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := models.NewSearchRun("houses in Miami", "api")
	store.CreateRun(ctx, run)

	for _, stage := range []string{"intent", "discover"} {
		if err := store.Log(ctx, &models.RunLog{RunID: run.ID, Level: models.LogLevelInfo, Stage: stage, Message: "ok"}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}
	logs, err := store.RunLogs(ctx, run.ID)
	if err != nil {
		t.Fatalf("run logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Stage != "intent" || logs[1].Stage != "discover" {
		t.Fatalf("unexpected logs %+v", logs)
	}

	props := []models.AnalyzedProperty{
		{ListingCandidate: models.ListingCandidate{Title: "A", ResolvedURL: "https://a"}, Profit: 50000},
		{ListingCandidate: models.ListingCandidate{Title: "B", ResolvedURL: "https://b"}, Profit: 20000, Estimated: true},
	}
	if err := store.SaveResults(ctx, run.ID, props); err != nil {
		t.Fatalf("save results: %v", err)
	}
	got, err := store.RunResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("run results: %v", err)
	}
	if len(got) != 2 || got[0].Title != "A" || got[1].Title != "B" || !got[1].Estimated {
		t.Fatalf("unexpected results %+v", got)
	}
}
