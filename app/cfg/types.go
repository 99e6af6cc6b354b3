package cfg

import "time"

const (
	PlatformX        = "x"
	PlatformLinkedIn = "linkedin"
)

type Cfg struct {
	// Feed
	FeedURL     string
	FeedFormat  string
	FeedTimeout time.Duration
	UserAgent   string

	// Posting
	Platforms              []string
	PostDelay              time.Duration
	PostedJobsFile         string
	LinkedInPostedJobsFile string
	FiltersFile            string
	AttachLogo             bool

	// Reference timezone for "published today"
	Timezone string
	Location *time.Location

	// Daemon mode
	Schedule string
	Port     string

	// API endpoints, overridable for testing against a mock
	XAPIBase        string
	XUploadBase     string
	LinkedInAPIBase string

	// Credentials
	KeyringService           string
	TwitterAPIKey            string
	TwitterAPIKeySecret      string
	TwitterAccessToken       string
	TwitterAccessTokenSecret string
	TwitterBearerToken       string
	LinkedInAccessToken      string
	LinkedInPersonURN        string

	Debug   bool
	Version string
}

// StorePath returns the posted-jobs file for a platform.
func (c *Cfg) StorePath(platform string) string {
	if platform == PlatformLinkedIn {
		return c.LinkedInPostedJobsFile
	}
	return c.PostedJobsFile
}
