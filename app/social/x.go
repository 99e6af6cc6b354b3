package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	DefaultXAPIBase    = "https://api.twitter.com"
	DefaultXUploadBase = "https://upload.twitter.com"
)

var xHints = map[int]string{
	http.StatusUnauthorized: "regenerate access token with Read + Write",
	http.StatusForbidden:    "check app permissions (Read + Write)",
}

type XCredentials struct {
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string
	// BearerToken is accepted for completeness; user-context posting is
	// signed with OAuth 1.0a only.
	BearerToken string
}

func (c XCredentials) complete() bool {
	return c.APIKey != "" && c.APIKeySecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// XPoster posts to X via the v2 tweets endpoint, uploading images through the
// v1.1 media endpoint.
type XPoster struct {
	creds      XCredentials
	apiBase    string
	uploadBase string
	httpClient *http.Client

	sleep Sleeper
	now   func() time.Time
}

func NewXPoster(creds XCredentials, apiBase, uploadBase string, httpClient *http.Client) *XPoster {
	if apiBase == "" {
		apiBase = DefaultXAPIBase
	}
	if uploadBase == "" {
		uploadBase = DefaultXUploadBase
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &XPoster{
		creds:      creds,
		apiBase:    strings.TrimRight(apiBase, "/"),
		uploadBase: strings.TrimRight(uploadBase, "/"),
		httpClient: httpClient,
		sleep:      SleepContext,
		now:        time.Now,
	}
}

func (x *XPoster) Name() string {
	return "x"
}

func (x *XPoster) Post(ctx context.Context, caption, imagePath string) (string, error) {
	if !x.creds.complete() {
		return "", fmt.Errorf("x: %w: api key, api key secret, access token and access token secret are required", ErrMissingCredentials)
	}

	client := x.signedClient()

	var mediaIDs []string
	if imagePath != "" {
		mediaID, err := x.uploadMedia(ctx, client, imagePath)
		if err != nil {
			slog.Warn("Failed to upload media, posting text only", "platform", x.Name(), "error", err)
		} else {
			mediaIDs = append(mediaIDs, mediaID)
		}
	}

	for attempt := 0; ; attempt++ {
		id, reset, err := x.createTweet(ctx, client, caption, mediaIDs)
		if err == nil {
			slog.Info("Post published", "platform", x.Name(), "post_id", id, "with_image", len(mediaIDs) > 0)
			return id, nil
		}

		if attempt >= maxRetries || !isRateLimited(err) {
			return "", err
		}

		wait := RateLimitWait(reset, x.now())
		slog.Warn("Rate limited, waiting before retry", "platform", x.Name(), "wait", wait)
		if err := x.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("failed to wait for rate limit reset: %w", err)
		}
	}
}

func (x *XPoster) signedClient() *http.Client {
	config := oauth1.NewConfig(x.creds.APIKey, x.creds.APIKeySecret)
	token := oauth1.NewToken(x.creds.AccessToken, x.creds.AccessTokenSecret)

	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, x.httpClient)
	client := config.Client(ctx, token)
	client.Timeout = x.httpClient.Timeout
	return client
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// createTweet returns the tweet id, or the rate limit reset header alongside
// an error.
func (x *XPoster) createTweet(ctx context.Context, client *http.Client, caption string, mediaIDs []string) (string, string, error) {
	payload := tweetRequest{Text: caption}
	if len(mediaIDs) > 0 {
		payload.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.apiBase+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to post tweet: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", resp.Header.Get("x-rate-limit-reset"), newAPIError(x.Name(), resp, xHints)
	}

	var tr tweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", "", fmt.Errorf("failed to decode tweet response: %w", err)
	}
	if tr.Data.ID == "" {
		return "", "", fmt.Errorf("x: %w: no data in response", ErrRejected)
	}

	return tr.Data.ID, "", nil
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

func (x *XPoster) uploadMedia(ctx context.Context, client *http.Client, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("media", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.uploadBase+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", newAPIError(x.Name(), resp, xHints)
	}

	var mr mediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if mr.MediaIDString == "" {
		return "", fmt.Errorf("upload response has no media id")
	}

	return mr.MediaIDString, nil
}
