package social

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	MinRateLimitWait = 5 * time.Minute
	maxRetries       = 1
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitWait returns how long to wait after a 429. reset is the epoch
// seconds value of the rate limit reset header. The wait is never shorter
// than MinRateLimitWait; a missing, malformed or past reset yields exactly
// MinRateLimitWait.
func RateLimitWait(reset string, now time.Time) time.Duration {
	secs, err := strconv.ParseInt(strings.TrimSpace(reset), 10, 64)
	if err != nil {
		return MinRateLimitWait
	}

	wait := time.Unix(secs, 0).Sub(now.Truncate(time.Second)) + time.Second
	if wait < MinRateLimitWait {
		return MinRateLimitWait
	}
	return wait
}

func isRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
