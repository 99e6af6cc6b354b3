package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the publish pipelines sequentially, either once or on a
// cron schedule, and keeps the last result of each platform.
type Scheduler struct {
	fetcher   Fetcher
	pipelines []*PublishJobsTask
	schedule  string
	loc       *time.Location
	parser    cron.Parser

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	last      map[string]Result
	runs      int
	lastRunAt time.Time
}

// NewScheduler builds a scheduler. When fetcher is set the feed is fetched
// once per run and shared by all pipelines; otherwise each pipeline fetches.
func NewScheduler(fetcher Fetcher, pipelines []*PublishJobsTask, schedule string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		fetcher:   fetcher,
		pipelines: pipelines,
		schedule:  schedule,
		loc:       loc,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		last:      make(map[string]Result),
	}

	if schedule != "" {
		if _, err := s.parser.Parse(schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
	}

	return s, nil
}

// RunOnce executes every pipeline in order. A store error on one platform
// does not stop the others; all such errors are returned joined.
func (s *Scheduler) RunOnce(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(s.pipelines))
	var errs []error

	execute := func(p *PublishJobsTask) (Result, error) { return p.Execute(ctx) }
	if s.fetcher != nil && len(s.pipelines) > 0 && ctx.Err() == nil {
		entries, fetchErr := s.fetcher.Fetch(ctx)
		execute = func(p *PublishJobsTask) (Result, error) { return p.Publish(ctx, entries, fetchErr) }
	}

	for _, p := range s.pipelines {
		if ctx.Err() != nil {
			break
		}

		result, err := execute(p)
		if err != nil {
			slog.Error("Pipeline failed", "platform", p.GetPlatform(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.GetPlatform(), err))
			continue
		}
		results = append(results, result)
	}

	s.mu.Lock()
	for _, r := range results {
		s.last[r.Platform] = r
	}
	s.runs++
	s.lastRunAt = time.Now()
	s.mu.Unlock()

	return results, errors.Join(errs...)
}

// Start registers the cron job and returns immediately. Overlapping ticks
// are skipped while a run is still in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule == "" {
		return fmt.Errorf("no schedule configured")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	logger := cronLogger{}

	s.cron = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := s.cron.AddFunc(s.schedule, func() {
		slog.Info("Scheduled run started", "schedule", s.schedule)
		if _, err := s.RunOnce(s.ctx); err != nil {
			slog.Error("Scheduled run failed", "error", err)
		}
	}); err != nil {
		s.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	slog.Info("Scheduler started", "schedule", s.schedule, "timezone", s.loc.String(), "pipelines", len(s.pipelines))
	return nil
}

// Stop cancels a running pipeline and waits for it to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

// NextRun reports the next scheduled activation, zero when not started.
func (s *Scheduler) NextRun() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) LastResults() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0, len(s.last))
	for _, r := range s.last {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Platform < results[j].Platform })
	return results
}

func (s *Scheduler) Runs() (int, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs, s.lastRunAt
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
