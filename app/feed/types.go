package feed

// Feed processing types

type Link struct {
	Rel  string
	Href string
}

// RawEntry is one entry of the source feed before normalization.
type RawEntry struct {
	ID        string
	Title     string
	Content   string // HTML
	Published string // ISO-8601, any UTC offset
	Links     []Link
}

type Job struct {
	ID          string
	Title       string
	CompanyName string
	CompanyLogo string // empty when the content carries no image
	URL         string // "alternate" link
	Published   string
	Content     string // raw HTML, only used by content filters
}

// Configuration types

type FilterConfig struct {
	Filters []ConfigFilter `yaml:"filters"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
