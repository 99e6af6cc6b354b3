package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
)

const (
	FormatJSON = "json"
	FormatAtom = "atom"
)

const DefaultTimeout = 15 * time.Second

// Client fetches the job feed and decodes it into raw entries.
type Client struct {
	url        string
	format     string
	timeout    time.Duration
	userAgent  string
	httpClient *http.Client
}

func NewClient(url, format string, timeout time.Duration, userAgent string, httpClient *http.Client) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if format == "" {
		format = FormatJSON
	}
	return &Client{
		url:        url,
		format:     format,
		timeout:    timeout,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Fetch(ctx context.Context) ([]RawEntry, error) {
	data, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	switch c.format {
	case FormatAtom:
		return decodeAtom(data)
	default:
		return decodeJSON(data)
	}
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// Blogger wraps every scalar in an object keyed by "$t".
type textValue struct {
	T string `json:"$t"`
}

type jsonLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type jsonEntry struct {
	ID        textValue  `json:"id"`
	Title     textValue  `json:"title"`
	Content   textValue  `json:"content"`
	Published textValue  `json:"published"`
	Link      []jsonLink `json:"link"`
}

type jsonDocument struct {
	Feed struct {
		Entry []jsonEntry `json:"entry"`
	} `json:"feed"`
}

func decodeJSON(data []byte) ([]RawEntry, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse feed JSON: %w", err)
	}

	entries := make([]RawEntry, 0, len(doc.Feed.Entry))
	for _, e := range doc.Feed.Entry {
		entry := RawEntry{
			ID:        e.ID.T,
			Title:     e.Title.T,
			Content:   e.Content.T,
			Published: e.Published.T,
		}
		for _, l := range e.Link {
			entry.Links = append(entry.Links, Link{Rel: l.Rel, Href: l.Href})
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func decodeAtom(data []byte) ([]RawEntry, error) {
	parser := &atom.Parser{}
	doc, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed Atom: %w", err)
	}

	entries := make([]RawEntry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		if e == nil {
			continue
		}
		entry := RawEntry{
			ID:        e.ID,
			Title:     e.Title,
			Published: e.Published,
		}
		if e.Content != nil {
			entry.Content = e.Content.Value
		}
		for _, l := range e.Links {
			if l == nil {
				continue
			}
			// Atom treats a missing rel as "alternate".
			rel := l.Rel
			if rel == "" {
				rel = "alternate"
			}
			entry.Links = append(entry.Links, Link{Rel: rel, Href: l.Href})
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// AlternateLink returns the href of the first "alternate" link.
func (e RawEntry) AlternateLink() string {
	for _, l := range e.Links {
		if strings.EqualFold(l.Rel, "alternate") {
			return l.Href
		}
	}
	return ""
}

// Normalize converts a raw entry into a Job.
func Normalize(e RawEntry) Job {
	title := e.Title
	if strings.TrimSpace(title) == "" {
		title = "Job Opening"
	}

	return Job{
		ID:          ExtractJobID(e.ID),
		Title:       title,
		CompanyName: ExtractCompany(e.Title),
		CompanyLogo: ExtractLogo(e.Content),
		URL:         e.AlternateLink(),
		Published:   e.Published,
		Content:     e.Content,
	}
}

// Jobs normalizes the entries published today, keeping feed order.
func Jobs(entries []RawEntry, today *TodayFilter) []Job {
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		if today != nil && !today.IsToday(e.Published) {
			continue
		}
		jobs = append(jobs, Normalize(e))
	}
	return jobs
}
