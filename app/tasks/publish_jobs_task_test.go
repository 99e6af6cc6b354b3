package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/job-poster/app/feed"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type fakeFetcher struct {
	entries []feed.RawEntry
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]feed.RawEntry, error) {
	f.calls++
	return f.entries, f.err
}

type fakeStore struct {
	ids       map[string]struct{}
	recorded  []string
	loadErr   error
	recordErr error
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{ids: make(map[string]struct{})}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *fakeStore) Load() (map[string]struct{}, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]struct{}, len(s.ids))
	for id := range s.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *fakeStore) Record(id string) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, id)
	s.ids[id] = struct{}{}
	return nil
}

type postCall struct {
	caption   string
	imagePath string
}

type fakePoster struct {
	failTitles map[string]bool
	emptyID    bool
	calls      []postCall
	onPost     func(imagePath string)
}

func (p *fakePoster) Name() string { return "fake" }

func (p *fakePoster) Post(ctx context.Context, caption, imagePath string) (string, error) {
	p.calls = append(p.calls, postCall{caption: caption, imagePath: imagePath})
	if p.onPost != nil {
		p.onPost(imagePath)
	}
	for title := range p.failTitles {
		if strings.Contains(caption, title) {
			return "", errors.New("post rejected")
		}
	}
	if p.emptyID {
		return "", nil
	}
	return "post-" + string(rune('0'+len(p.calls))), nil
}

type sleepRecorder struct {
	calls []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return s.err
}

func entry(id, title, published string) feed.RawEntry {
	return feed.RawEntry{
		ID:        "tag:blogger.com,1999:blog-8142.post-" + id,
		Title:     title,
		Published: published,
		Links:     []feed.Link{{Rel: "alternate", Href: "https://blog.example.com/" + id + ".html"}},
	}
}

const todayTS = "2026-02-04T09:00:00+05:30"

func newTestTask(fetcher Fetcher, store Store, poster *fakePoster, filterer *feed.Filterer, logos LogoFetcher) (*PublishJobsTask, *sleepRecorder) {
	now := func() time.Time { return time.Date(2026, 2, 4, 12, 0, 0, 0, ist) }
	today := feed.NewTodayFilter(ist, now)

	task := NewPublishJobsTask(fetcher, store, poster, today, filterer, logos, DefaultPostDelay)
	sleeper := &sleepRecorder{}
	task.sleep = sleeper.sleep
	task.now = now
	return task, sleeper
}

func TestPublishJobsTask_SingleDelayBetweenTwoPosts(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{
		entry("1", "Backend Engineer - Acme Talent Hiring", todayTS),
		entry("2", "Data Analyst - Globex Careers", todayTS),
	}}
	store := newFakeStore()
	poster := &fakePoster{}
	task, sleeper := newTestTask(fetcher, store, poster, nil, nil)

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Posted != 2 || result.Failed != 0 {
		t.Errorf("Expected 2 posted and 0 failed, got %+v", result)
	}
	if len(sleeper.calls) != 1 || sleeper.calls[0] != DefaultPostDelay {
		t.Errorf("Expected exactly one delay of %v, got %v", DefaultPostDelay, sleeper.calls)
	}
	if strings.Join(store.recorded, ",") != "1,2" {
		t.Errorf("Expected ids recorded in feed order, got %v", store.recorded)
	}
	if !strings.Contains(poster.calls[0].caption, "🏢 Acme\n") {
		t.Errorf("Expected caption to carry extracted company, got %q", poster.calls[0].caption)
	}
	if result.Platform != "fake" {
		t.Errorf("Expected platform 'fake', got '%s'", result.Platform)
	}
}

func TestPublishJobsTask_SkipsAlreadyPosted(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{
		entry("1", "Backend Engineer - Acme", todayTS),
		entry("2", "Data Analyst - Globex", todayTS),
	}}
	store := newFakeStore("1")
	poster := &fakePoster{}
	task, sleeper := newTestTask(fetcher, store, poster, nil, nil)

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Skipped != 1 || result.Posted != 1 {
		t.Errorf("Expected 1 skipped and 1 posted, got %+v", result)
	}
	if len(poster.calls) != 1 {
		t.Errorf("Expected a single post, got %d", len(poster.calls))
	}
	if len(sleeper.calls) != 0 {
		t.Errorf("Expected no delay before the first post, got %v", sleeper.calls)
	}
}

func TestPublishJobsTask_FailedPostIsNotRecorded(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{
		entry("1", "Backend Engineer - Acme", todayTS),
		entry("2", "Data Analyst - Globex", todayTS),
		entry("3", "QA Engineer - Initech", todayTS),
	}}
	store := newFakeStore()
	poster := &fakePoster{failTitles: map[string]bool{"Backend Engineer": true}}
	task, sleeper := newTestTask(fetcher, store, poster, nil, nil)

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Failed != 1 || result.Posted != 2 {
		t.Errorf("Expected 1 failed and 2 posted, got %+v", result)
	}
	if strings.Join(store.recorded, ",") != "2,3" {
		t.Errorf("Expected only successful ids recorded, got %v", store.recorded)
	}
	if len(sleeper.calls) != 1 {
		t.Errorf("Expected one delay after the first success, got %v", sleeper.calls)
	}
}

func TestPublishJobsTask_OnlyTodaysJobs(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{
		entry("1", "Backend Engineer - Acme", todayTS),
		entry("2", "Data Analyst - Globex", "2026-02-03T09:00:00+05:30"),
		entry("3", "QA Engineer - Initech", "garbage"),
	}}
	store := newFakeStore()
	poster := &fakePoster{}
	task, _ := newTestTask(fetcher, store, poster, nil, nil)

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Fetched != 3 || result.Today != 1 || result.Posted != 1 {
		t.Errorf("Expected fetched=3 today=1 posted=1, got %+v", result)
	}
}

func TestPublishJobsTask_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	poster := &fakePoster{}
	task, _ := newTestTask(fetcher, newFakeStore(), poster, nil, nil)

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected fetch failure to be absorbed, got: %v", err)
	}
	if !result.FetchFailed {
		t.Error("Expected FetchFailed to be set")
	}
	if len(poster.calls) != 0 {
		t.Errorf("Expected no posts, got %d", len(poster.calls))
	}
}

func TestPublishJobsTask_StoreLoadError(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("permission denied")
	fetcher := &fakeFetcher{entries: []feed.RawEntry{entry("1", "Dev - Acme", todayTS)}}
	poster := &fakePoster{}
	task, _ := newTestTask(fetcher, store, poster, nil, nil)

	if _, err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error when the store cannot be loaded")
	}
	if len(poster.calls) != 0 {
		t.Errorf("Expected no posts, got %d", len(poster.calls))
	}
}

func TestPublishJobsTask_RecordErrorCountsAsFailure(t *testing.T) {
	store := newFakeStore()
	store.recordErr = errors.New("disk full")
	fetcher := &fakeFetcher{entries: []feed.RawEntry{
		entry("1", "Backend Engineer - Acme", todayTS),
		entry("2", "Data Analyst - Globex", todayTS),
	}}
	poster := &fakePoster{}
	task, sleeper := newTestTask(fetcher, store, poster, nil, nil)

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Failed != 2 || result.Posted != 0 {
		t.Errorf("Expected 2 failed and 0 posted, got %+v", result)
	}
	if len(sleeper.calls) != 1 {
		t.Errorf("Expected pacing to apply after a published post, got %v", sleeper.calls)
	}
}

func TestPublishJobsTask_EmptyPostIDIsFailure(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{entries: []feed.RawEntry{entry("1", "Dev - Acme", todayTS)}}
	poster := &fakePoster{emptyID: true}
	task, _ := newTestTask(fetcher, store, poster, nil, nil)

	result, _ := task.Execute(context.Background())
	if result.Failed != 1 || len(store.recorded) != 0 {
		t.Errorf("Expected failure without record, got %+v recorded=%v", result, store.recorded)
	}
}

func TestPublishJobsTask_Filtered(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{
		entry("1", "Backend Engineer - Acme", todayTS),
		entry("2", "Sales Executive - Globex", todayTS),
	}}
	store := newFakeStore()
	poster := &fakePoster{}
	filterer := feed.NewFilterer([]feed.ConfigFilter{{Field: "title", Excludes: []string{"sales"}}})
	task, _ := newTestTask(fetcher, store, poster, filterer, nil)

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Filtered != 1 || result.Posted != 1 {
		t.Errorf("Expected 1 filtered and 1 posted, got %+v", result)
	}
	if strings.Join(store.recorded, ",") != "1" {
		t.Errorf("Expected filtered job not to be recorded, got %v", store.recorded)
	}
}

func TestPublishJobsTask_CancelledDuringDelay(t *testing.T) {
	fetcher := &fakeFetcher{entries: []feed.RawEntry{
		entry("1", "Backend Engineer - Acme", todayTS),
		entry("2", "Data Analyst - Globex", todayTS),
	}}
	store := newFakeStore()
	poster := &fakePoster{}
	task, sleeper := newTestTask(fetcher, store, poster, nil, nil)
	sleeper.err = context.Canceled

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Interrupted || result.Posted != 1 {
		t.Errorf("Expected interrupted run with 1 post, got %+v", result)
	}
	if len(poster.calls) != 1 {
		t.Errorf("Expected no post after interruption, got %d", len(poster.calls))
	}
}

type fakeLogoFetcher struct {
	dir  string
	urls []string
}

func (f *fakeLogoFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	path := filepath.Join(f.dir, "logo.png")
	return path, os.WriteFile(path, []byte("png"), 0o644)
}

func TestPublishJobsTask_AttachesLogo(t *testing.T) {
	raw := entry("1", "Backend Engineer - Acme", todayTS)
	raw.Content = `<img src="https://cdn.example.com/acme.png">`
	fetcher := &fakeFetcher{entries: []feed.RawEntry{raw}}

	logos := &fakeLogoFetcher{dir: t.TempDir()}
	existedDuringPost := false
	poster := &fakePoster{onPost: func(imagePath string) {
		_, err := os.Stat(imagePath)
		existedDuringPost = err == nil
	}}
	task, _ := newTestTask(fetcher, newFakeStore(), poster, nil, logos)

	if _, err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(logos.urls) != 1 || logos.urls[0] != "https://cdn.example.com/acme.png" {
		t.Errorf("Expected logo to be fetched, got %v", logos.urls)
	}
	if poster.calls[0].imagePath == "" || !existedDuringPost {
		t.Error("Expected an existing image path to be passed to the poster")
	}
	if _, err := os.Stat(poster.calls[0].imagePath); !os.IsNotExist(err) {
		t.Error("Expected logo file to be removed after posting")
	}
}
