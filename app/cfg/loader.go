package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Feed configuration
	FeedURL     string `long:"feed-url" env:"FEED_URL" default:"https://www.firstjobtech.in/feeds/posts/default?alt=json" description:"Job feed URL"`
	FeedFormat  string `long:"feed-format" env:"FEED_FORMAT" default:"json" choice:"json" choice:"atom" description:"Feed format"`
	FeedTimeout int    `long:"feed-timeout" env:"FEED_TIMEOUT" default:"15" description:"Feed request timeout in seconds"`
	UserAgent   string `long:"user-agent" env:"USER_AGENT" default:"Job Poster/1.0" description:"User agent string for HTTP requests"`

	// Posting configuration
	Platforms              string `long:"platforms" env:"PLATFORMS" default:"x" description:"Comma separated platforms to post to (x, linkedin)"`
	PostDelay              int    `long:"post-delay" env:"POST_DELAY" default:"300" description:"Delay between consecutive posts in seconds"`
	PostedJobsFile         string `long:"posted-jobs-file" env:"POSTED_JOBS_FILE" default:"posted_jobs.txt" description:"File of job ids already posted to X"`
	LinkedInPostedJobsFile string `long:"linkedin-posted-jobs-file" env:"LINKEDIN_POSTED_JOBS_FILE" default:"posted_jobs_linkedin.txt" description:"File of job ids already posted to LinkedIn"`
	FiltersFile            string `long:"filters-file" env:"FILTERS_FILE" description:"YAML file with include/exclude keyword filters (optional)"`
	AttachLogo             bool   `long:"attach-logo" env:"ATTACH_LOGO" description:"Attach the company logo found in the post to each job"`
	Timezone               string `long:"timezone" env:"REFERENCE_TZ" default:"Asia/Kolkata" description:"Timezone that defines \"today\" (e.g., Asia/Kolkata, UTC)"`

	// Daemon mode
	Schedule string `long:"schedule" env:"SCHEDULE" description:"Cron expression; when set the process keeps running and posts on schedule"`
	Port     string `long:"port" env:"PORT" description:"Status server port in schedule mode (optional)"`

	// API endpoints
	XAPIBase        string `long:"x-api-base" env:"X_API_BASE" default:"https://api.twitter.com" description:"X API base URL"`
	XUploadBase     string `long:"x-upload-base" env:"X_UPLOAD_BASE" default:"https://upload.twitter.com" description:"X media upload base URL"`
	LinkedInAPIBase string `long:"linkedin-api-base" env:"LINKEDIN_API_BASE" default:"https://api.linkedin.com" description:"LinkedIn API base URL"`

	// Credentials
	KeyringService           string `long:"keyring-service" env:"KEYRING_SERVICE" default:"job-poster" description:"OS keyring service used for credentials not set in the environment"`
	TwitterAPIKey            string `long:"twitter-api-key" env:"TWITTER_API_KEY" description:"X API key"`
	TwitterAPIKeySecret      string `long:"twitter-api-key-secret" env:"TWITTER_API_KEY_SECRET" description:"X API key secret"`
	TwitterAccessToken       string `long:"twitter-access-token" env:"TWITTER_ACCESS_TOKEN" description:"X access token"`
	TwitterAccessTokenSecret string `long:"twitter-access-token-secret" env:"TWITTER_ACCESS_TOKEN_SECRET" description:"X access token secret"`
	TwitterBearerToken       string `long:"twitter-bearer-token" env:"TWITTER_BEARER_TOKEN" description:"X bearer token (unused for posting)"`
	LinkedInAccessToken      string `long:"linkedin-access-token" env:"LINKEDIN_ACCESS_TOKEN" description:"LinkedIn access token"`
	LinkedInPersonURN        string `long:"linkedin-person-urn" env:"LINKEDIN_PERSON_URN" description:"LinkedIn author URN (urn:li:person:<id>); resolved from the token when empty"`

	Debug   bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	Version bool `long:"version" description:"Print version and exit"`
}

// Load reads .env, then parses flags and environment variables from the
// process. It returns nil, nil when help or version output was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse(os.Args[1:])
}

func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.Version {
		fmt.Println(GetVersion())
		return nil, nil
	}

	cfg := &Cfg{
		FeedURL:                  strings.TrimSpace(raw.FeedURL),
		FeedFormat:               strings.ToLower(strings.TrimSpace(raw.FeedFormat)),
		FeedTimeout:              time.Duration(raw.FeedTimeout) * time.Second,
		UserAgent:                raw.UserAgent,
		Platforms:                parsePlatforms(raw.Platforms),
		PostDelay:                time.Duration(raw.PostDelay) * time.Second,
		PostedJobsFile:           raw.PostedJobsFile,
		LinkedInPostedJobsFile:   raw.LinkedInPostedJobsFile,
		FiltersFile:              raw.FiltersFile,
		AttachLogo:               raw.AttachLogo,
		Timezone:                 raw.Timezone,
		Schedule:                 strings.TrimSpace(raw.Schedule),
		Port:                     raw.Port,
		XAPIBase:                 raw.XAPIBase,
		XUploadBase:              raw.XUploadBase,
		LinkedInAPIBase:          raw.LinkedInAPIBase,
		KeyringService:           raw.KeyringService,
		TwitterAPIKey:            resolveSecret(raw.KeyringService, "TWITTER_API_KEY", raw.TwitterAPIKey),
		TwitterAPIKeySecret:      resolveSecret(raw.KeyringService, "TWITTER_API_KEY_SECRET", raw.TwitterAPIKeySecret),
		TwitterAccessToken:       resolveSecret(raw.KeyringService, "TWITTER_ACCESS_TOKEN", raw.TwitterAccessToken),
		TwitterAccessTokenSecret: resolveSecret(raw.KeyringService, "TWITTER_ACCESS_TOKEN_SECRET", raw.TwitterAccessTokenSecret),
		TwitterBearerToken:       resolveSecret(raw.KeyringService, "TWITTER_BEARER_TOKEN", raw.TwitterBearerToken),
		LinkedInAccessToken:      resolveSecret(raw.KeyringService, "LINKEDIN_ACCESS_TOKEN", raw.LinkedInAccessToken),
		LinkedInPersonURN:        strings.TrimSpace(raw.LinkedInPersonURN),
		Debug:                    raw.Debug,
		Version:                  GetVersion(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings and resolves the reference timezone.
func (c *Cfg) Validate() error {
	u, err := url.Parse(c.FeedURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid feed URL: %q", c.FeedURL)
	}

	if c.FeedFormat != "json" && c.FeedFormat != "atom" {
		return fmt.Errorf("invalid feed format: %q (expected json or atom)", c.FeedFormat)
	}

	if c.FeedTimeout <= 0 {
		return fmt.Errorf("feed timeout must be positive, got %v", c.FeedTimeout)
	}

	if c.PostDelay < 0 {
		return fmt.Errorf("post delay must not be negative, got %v", c.PostDelay)
	}

	if len(c.Platforms) == 0 {
		return fmt.Errorf("at least one platform is required")
	}
	for i, p := range c.Platforms {
		if p != PlatformX && p != PlatformLinkedIn {
			return fmt.Errorf("unknown platform: %q", p)
		}
		if slices.Contains(c.Platforms[:i], p) {
			return fmt.Errorf("duplicate platform: %q", p)
		}
		if c.StorePath(p) == "" {
			return fmt.Errorf("posted jobs file for %s is required", p)
		}
	}
	if slices.Contains(c.Platforms, PlatformX) && slices.Contains(c.Platforms, PlatformLinkedIn) &&
		c.PostedJobsFile == c.LinkedInPostedJobsFile {
		return fmt.Errorf("x and linkedin must use different posted jobs files")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc

	return nil
}

func parsePlatforms(value string) []string {
	var platforms []string
	for _, p := range strings.Split(value, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// resolveSecret prefers an explicit value and falls back to the OS keyring.
func resolveSecret(service, name, value string) string {
	if value = strings.TrimSpace(value); value != "" || service == "" {
		return value
	}
	secret, err := keyring.Get(service, name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(secret)
}
