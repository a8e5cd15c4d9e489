package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"deal_scout/config"
	"deal_scout/models"
)

const TriggerWatchlist = "watchlist"

// Runner executes one query through the deal pipeline.
type Runner interface {
	Run(ctx context.Context, query, trigger string) (*models.AgentResponse, error)
}

// Scheduler replays saved searches from the watchlist. Each entry runs on its
// own cron expression, or on WATCH_CRON / WATCH_INTERVAL when it has none.
// Runs never overlap; a tick that arrives mid-run is dropped.
type Scheduler struct {
	cfg    *config.Config
	runner Runner
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once

	running sync.Mutex
}

func New(cfg *config.Config, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.cfg.Watchlist) == 0 {
		log.Println("No saved searches configured, scheduler idle")
		return nil
	}

	var unscheduled []config.WatchEntry
	cronJobs := 0
	for _, entry := range s.cfg.Watchlist {
		spec := entry.Cron
		if spec == "" {
			spec = s.cfg.Scheduler.Cron
		}
		if spec == "" {
			unscheduled = append(unscheduled, entry)
			continue
		}

		if _, err := s.cron.AddFunc(spec, func() { s.runEntries(ctx, entry) }); err != nil {
			return fmt.Errorf("invalid cron expression for %q: %w", entry.Name, err)
		}
		log.Printf("Scheduled %q with cron: %s", entry.Name, spec)
		cronJobs++
	}
	if cronJobs > 0 {
		s.cron.Start()
	}

	if len(unscheduled) == 0 {
		return nil
	}
	if s.cfg.Scheduler.Interval <= 0 {
		log.Printf("%d saved searches have no schedule, set WATCH_CRON or WATCH_INTERVAL", len(unscheduled))
		return nil
	}

	log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
	s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.runEntries(ctx, unscheduled...)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.cron.Stop()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs every saved search once, in watchlist order.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.runEntries(ctx, s.cfg.Watchlist...)
}

func (s *Scheduler) runEntries(ctx context.Context, entries ...config.WatchEntry) {
	if !s.running.TryLock() {
		log.Println("Previous saved-search run still in progress, skipping")
		return
	}
	defer s.running.Unlock()

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		resp, err := s.runner.Run(ctx, entry.Query, TriggerWatchlist)
		if err != nil {
			log.Printf("Saved search %q failed: %v", entry.Name, err)
			continue
		}
		log.Printf("Saved search %q: %d deals", entry.Name, len(resp.Properties))
	}
}
