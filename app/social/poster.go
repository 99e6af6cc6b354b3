package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRejected           = errors.New("rejected")
)

// Poster publishes a caption, with an optional image, to one platform.
// A nil error comes with a non-empty post id.
type Poster interface {
	Name() string
	Post(ctx context.Context, caption, imagePath string) (string, error)
}

// APIError is a non-success response from a platform API. It unwraps to one
// of the sentinel errors above.
type APIError struct {
	Platform   string
	StatusCode int
	Body       string
	Hint       string
	kind       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v (HTTP %d)", e.Platform, e.kind, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Hint != "" {
		msg += " | " + e.Hint
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.kind
}

const maxErrorBody = 512

func newAPIError(platform string, resp *http.Response, hints map[int]string) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	e := &APIError{
		Platform:   platform,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		Hint:       hints[resp.StatusCode],
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e.kind = ErrUnauthorized
	case http.StatusForbidden:
		e.kind = ErrForbidden
	case http.StatusTooManyRequests:
		e.kind = ErrRateLimited
	default:
		e.kind = ErrRejected
	}

	return e
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
