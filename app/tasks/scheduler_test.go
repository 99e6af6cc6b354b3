package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/job-poster/app/feed"
)

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	if _, err := NewScheduler(nil, nil, "every tuesday", time.UTC); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}

func TestNewScheduler_ValidSchedules(t *testing.T) {
	for _, schedule := range []string{"", "*/30 * * * *", "@hourly", "0 9 * * 1-5"} {
		if _, err := NewScheduler(nil, nil, schedule, nil); err != nil {
			t.Errorf("Expected %q to be accepted, got: %v", schedule, err)
		}
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{entry("1", "Backend Engineer - Acme", todayTS)}}

	ok, _ := newTestTask(fetcher, newFakeStore(), &fakePoster{}, nil, nil)

	broken := newFakeStore()
	broken.loadErr = errors.New("locked")
	failing, _ := newTestTask(fetcher, broken, &fakePoster{}, nil, nil)
	failing.Platform = "broken"

	s, err := NewScheduler(nil, []*PublishJobsTask{failing, ok}, "", time.UTC)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	results, err := s.RunOnce(context.Background())
	if err == nil {
		t.Error("Expected store error to be returned")
	}
	if len(results) != 1 || results[0].Posted != 1 {
		t.Errorf("Expected the healthy pipeline to run, got %+v", results)
	}

	last := s.LastResults()
	if len(last) != 1 || last[0].Platform != "fake" {
		t.Errorf("Expected last result for 'fake', got %+v", last)
	}
	if runs, at := s.Runs(); runs != 1 || at.IsZero() {
		t.Errorf("Expected one run recorded, got %d at %v", runs, at)
	}
}

func TestScheduler_RunOnceFetchesOnce(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{entry("1", "Backend Engineer - Acme", todayTS)}}

	xPoster, linkedinPoster := &fakePoster{}, &fakePoster{}
	x, _ := newTestTask(fetcher, newFakeStore(), xPoster, nil, nil)
	x.Platform = "x"
	linkedin, _ := newTestTask(fetcher, newFakeStore(), linkedinPoster, nil, nil)
	linkedin.Platform = "linkedin"

	s, err := NewScheduler(fetcher, []*PublishJobsTask{x, linkedin}, "", time.UTC)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	results, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected the feed to be fetched once, got %d", fetcher.calls)
	}
	if len(results) != 2 || results[0].Posted != 1 || results[1].Posted != 1 {
		t.Errorf("Expected both platforms to post the job, got %+v", results)
	}
}

func TestScheduler_RunOnceSharedFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("feed down")}

	x, _ := newTestTask(fetcher, newFakeStore(), &fakePoster{}, nil, nil)
	x.Platform = "x"
	linkedin, _ := newTestTask(fetcher, newFakeStore(), &fakePoster{}, nil, nil)
	linkedin.Platform = "linkedin"

	s, _ := NewScheduler(fetcher, []*PublishJobsTask{x, linkedin}, "", time.UTC)
	results, _ := s.RunOnce(context.Background())

	if fetcher.calls != 1 {
		t.Errorf("Expected the feed to be fetched once, got %d", fetcher.calls)
	}
	if len(results) != 2 {
		t.Fatalf("Expected both platforms to report, got %+v", results)
	}
	for _, r := range results {
		if !r.FetchFailed {
			t.Errorf("Expected %s to report the fetch failure, got %+v", r.Platform, r)
		}
	}
}

func TestScheduler_StartRequiresSchedule(t *testing.T) {
	s, _ := NewScheduler(nil, nil, "", time.UTC)
	if err := s.Start(context.Background()); err == nil {
		t.Error("Expected error when no schedule is configured")
	}
	s.Stop()
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler(nil, nil, "@every 1h", time.UTC)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if s.NextRun().IsZero() {
		t.Error("Expected next run to be scheduled")
	}
	s.Stop()
}
