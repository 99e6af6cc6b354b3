package feed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var validFilterFields = map[string]bool{
	"title":   true,
	"company": true,
	"content": true,
	"url":     true,
}

// Filterer applies optional keyword rules to jobs before posting.
type Filterer struct {
	filters []ConfigFilter
}

func NewFilterer(filters []ConfigFilter) *Filterer {
	return &Filterer{filters: filters}
}

// LoadFilterer reads include/exclude rules from a YAML file. An empty path
// yields a Filterer that keeps everything.
func LoadFilterer(path string) (*Filterer, error) {
	if path == "" {
		return NewFilterer(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var filterConfig FilterConfig
	if err := yaml.Unmarshal(data, &filterConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateFilters(filterConfig.Filters); err != nil {
		return nil, fmt.Errorf("invalid filters %s: %w", path, err)
	}

	return NewFilterer(filterConfig.Filters), nil
}

func validateFilters(filters []ConfigFilter) error {
	for i, filter := range filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}
	return nil
}

func (f *Filterer) Count() int {
	return len(f.filters)
}

// Run reports whether the job should be dropped and why.
func (f *Filterer) Run(job Job) (bool, string) {
	for _, filter := range f.filters {
		value := f.getFieldValue(job, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(job Job, field string) string {
	switch field {
	case "title":
		return job.Title
	case "company":
		return job.CompanyName
	case "content":
		return job.Content
	case "url":
		return job.URL
	default:
		return ""
	}
}
