package tasks

import (
	"context"

	"github.com/lysyi3m/job-poster/app/feed"
	"github.com/lysyi3m/job-poster/app/store"
)

// Fetcher returns the current feed entries.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.RawEntry, error)
}

// Store is the set of job ids already posted to one platform.
type Store interface {
	Load() (map[string]struct{}, error)
	Record(id string) error
}

// LogoFetcher downloads an image to a local file for attachment.
type LogoFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

var (
	_ Fetcher     = (*feed.Client)(nil)
	_ Store       = (*store.PostedJobs)(nil)
	_ LogoFetcher = (*feed.LogoFetcher)(nil)
)
