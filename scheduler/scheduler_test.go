package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deal_scout/config"
	"deal_scout/models"
)

type fakeRunner struct {
	mu      sync.Mutex
	queries []string
	fail    map[string]bool
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, query, trigger string) (*models.AgentResponse, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query+"|"+trigger)
	if f.fail[query] {
		return nil, errors.New("boom")
	}
	return &models.AgentResponse{Type: models.CategorySearch}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func TestTriggerNow_RunsWatchlistInOrder(t *testing.T) {
	cfg := &config.Config{Watchlist: []config.WatchEntry{
		{Name: "a", Query: "condos in Austin"},
		{Name: "b", Query: "houses in Miami"},
		{Name: "c", Query: "lofts in Denver"},
	}}
	runner := &fakeRunner{fail: map[string]bool{"houses in Miami": true}}

	New(cfg, runner).TriggerNow(context.Background())

	want := []string{"condos in Austin|watchlist", "houses in Miami|watchlist", "lofts in Denver|watchlist"}
	if len(runner.queries) != len(want) {
		t.Fatalf("expected %d runs, got %v", len(want), runner.queries)
	}
	for i := range want {
		if runner.queries[i] != want[i] {
			t.Fatalf("run %d: expected %s, got %s", i, want[i], runner.queries[i])
		}
	}
}

func TestStart_InvalidCron(t *testing.T) {
	cfg := &config.Config{Watchlist: []config.WatchEntry{{Name: "bad", Query: "q", Cron: "not a cron"}}}
	s := New(cfg, &fakeRunner{})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error for invalid cron")
	}
}

func TestStart_IntervalRunsUnscheduledEntries(t *testing.T) {
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{Interval: 10 * time.Millisecond},
		Watchlist: []config.WatchEntry{{Name: "a", Query: "condos in Austin"}},
	}
	runner := &fakeRunner{}
	s := New(cfg, runner)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runner.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("interval run never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStart_EmptyWatchlistIdles(t *testing.T) {
	s := New(&config.Config{}, &fakeRunner{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
	s.Stop()
}

func TestRunEntries_SkipsOverlap(t *testing.T) {
	cfg := &config.Config{Watchlist: []config.WatchEntry{{Name: "a", Query: "q"}}}
	runner := &fakeRunner{entered: make(chan struct{}, 1), block: make(chan struct{})}
	s := New(cfg, runner)

	done := make(chan struct{})
	go func() {
		s.TriggerNow(context.Background())
		close(done)
	}()

	<-runner.entered
	s.TriggerNow(context.Background())
	close(runner.block)
	<-done

	if runner.count() != 1 {
		t.Fatalf("expected overlapping trigger to be dropped, got %d runs", runner.count())
	}
}
