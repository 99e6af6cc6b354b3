package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lysyi3m/job-poster/app/feed"
	"github.com/lysyi3m/job-poster/app/social"
)

const DefaultPostDelay = 5 * time.Minute

// Result summarizes one pipeline run for a single platform.
type Result struct {
	Platform    string        `json:"platform"`
	Fetched     int           `json:"fetched"`
	Today       int           `json:"today"`
	Skipped     int           `json:"skipped"`
	Filtered    int           `json:"filtered"`
	Posted      int           `json:"posted"`
	Failed      int           `json:"failed"`
	FetchFailed bool          `json:"fetch_failed"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// PublishJobsTask posts today's unseen jobs to one platform, pacing
// consecutive posts by a fixed delay.
type PublishJobsTask struct {
	Task
	fetcher  Fetcher
	store    Store
	poster   social.Poster
	today    *feed.TodayFilter
	filterer *feed.Filterer
	logos    LogoFetcher
	delay    time.Duration

	sleep social.Sleeper
	now   func() time.Time
}

// NewPublishJobsTask builds a pipeline. filterer and logos may be nil.
func NewPublishJobsTask(fetcher Fetcher, store Store, poster social.Poster, today *feed.TodayFilter,
	filterer *feed.Filterer, logos LogoFetcher, delay time.Duration) *PublishJobsTask {
	if filterer == nil {
		filterer = feed.NewFilterer(nil)
	}
	if delay < 0 {
		delay = 0
	}
	return &PublishJobsTask{
		Task:     NewTask(TaskTypePublishJobs, poster.Name()),
		fetcher:  fetcher,
		store:    store,
		poster:   poster,
		today:    today,
		filterer: filterer,
		logos:    logos,
		delay:    delay,
		sleep:    social.SleepContext,
		now:      time.Now,
	}
}

// Execute fetches the feed itself and publishes today's jobs.
func (t *PublishJobsTask) Execute(ctx context.Context) (Result, error) {
	return t.execute(ctx, t.fetcher)
}

// Publish works on entries fetched once for the whole run, so every platform
// sees the same list. fetchErr is the error of that fetch, if any.
func (t *PublishJobsTask) Publish(ctx context.Context, entries []feed.RawEntry, fetchErr error) (Result, error) {
	return t.execute(ctx, fetched{entries: entries, err: fetchErr})
}

func (t *PublishJobsTask) execute(ctx context.Context, fetcher Fetcher) (Result, error) {
	t.Start()
	result := Result{Platform: t.Platform, StartedAt: t.now()}

	posted, err := t.store.Load()
	if err != nil {
		return result, fmt.Errorf("failed to load posted jobs: %w", err)
	}

	entries, err := fetcher.Fetch(ctx)
	if err != nil {
		slog.Error("Failed to fetch feed", "platform", t.Platform, "error", err)
		result.FetchFailed = true
		result.Duration = t.GetDuration()
		return result, nil
	}
	result.Fetched = len(entries)

	var jobs []feed.Job
	for _, job := range feed.Jobs(entries, t.today) {
		result.Today++
		if filtered, reason := t.filterer.Run(job); filtered {
			slog.Debug("Job filtered", "platform", t.Platform, "job_id", job.ID, "reason", reason)
			result.Filtered++
			continue
		}
		jobs = append(jobs, job)
	}

	postedAny := false
	for _, job := range jobs {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		if _, ok := posted[job.ID]; ok {
			slog.Debug("Job already posted, skipping", "platform", t.Platform, "job_id", job.ID)
			result.Skipped++
			continue
		}

		if postedAny && t.delay > 0 {
			slog.Info("Waiting before next post", "platform", t.Platform, "delay", t.delay)
			if err := t.sleep(ctx, t.delay); err != nil {
				result.Interrupted = true
				break
			}
		}

		postID, err := t.publish(ctx, job)
		if err != nil {
			slog.Error("Failed to post job", "platform", t.Platform, "job_id", job.ID, "title", job.Title, "error", err)
			result.Failed++
			continue
		}
		postedAny = true

		if err := t.store.Record(job.ID); err != nil {
			slog.Error("Failed to record posted job, it may be posted again", "platform", t.Platform, "job_id", job.ID, "post_id", postID, "error", err)
			result.Failed++
			continue
		}
		posted[job.ID] = struct{}{}
		result.Posted++

		slog.Info("Job posted", "platform", t.Platform, "job_id", job.ID, "post_id", postID, "company", job.CompanyName)
	}

	result.Duration = t.GetDuration()

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"id", t.GetID(),
		"platform", t.Platform,
		"duration", result.Duration,
		"fetched", result.Fetched,
		"today", result.Today,
		"skipped", result.Skipped,
		"filtered", result.Filtered,
		"posted", result.Posted,
		"failed", result.Failed,
		"interrupted", result.Interrupted)

	return result, nil
}

func (t *PublishJobsTask) publish(ctx context.Context, job feed.Job) (string, error) {
	caption := feed.FormatCaption(job)

	imagePath := ""
	if t.logos != nil && job.CompanyLogo != "" {
		path, err := t.logos.Fetch(ctx, job.CompanyLogo)
		if err != nil {
			slog.Warn("Failed to fetch company logo, posting text only", "platform", t.Platform, "job_id", job.ID, "error", err)
		} else {
			imagePath = path
			defer os.Remove(path)
		}
	}

	postID, err := t.poster.Post(ctx, caption, imagePath)
	if err != nil {
		return "", err
	}
	if postID == "" {
		return "", fmt.Errorf("%s returned no post id", t.poster.Name())
	}
	return postID, nil
}

// fetched replays the result of an earlier fetch.
type fetched struct {
	entries []feed.RawEntry
	err     error
}

func (f fetched) Fetch(context.Context) ([]feed.RawEntry, error) {
	return f.entries, f.err
}
