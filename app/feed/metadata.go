package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const DefaultCompanyName = "Company"

// Title suffixes that are recruitment boilerplate rather than part of the
// company name. Everything from the first match onwards is dropped. "Talent"
// only counts as a whole word so names like Talentica survive.
var boilerplatePattern = regexp.MustCompile(`(?i)(recruitment|hiring|off campus|job|careers|\btalent\b).*`)

// ExtractJobID returns the tail of a Blogger entry id
// ("tag:blogger.com,1999:blog-123.post-456" -> "456").
func ExtractJobID(rawID string) string {
	rawID = strings.TrimSpace(rawID)
	if i := strings.LastIndex(rawID, "-"); i >= 0 {
		return rawID[i+1:]
	}
	return rawID
}

// ExtractCompany derives a display company name from a title shaped like
// "<role> - <company> <boilerplate>".
func ExtractCompany(title string) string {
	parts := strings.Split(title, " - ")
	if len(parts) < 2 {
		return DefaultCompanyName
	}

	company := strings.TrimSpace(boilerplatePattern.ReplaceAllString(parts[1], ""))
	if company == "" {
		return DefaultCompanyName
	}
	return company
}

// ExtractLogo returns the src of the first image in the post content, or ""
// if there is none.
func ExtractLogo(contentHTML string) string {
	if strings.TrimSpace(contentHTML) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contentHTML))
	if err != nil {
		return ""
	}

	var src string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		src = strings.TrimSpace(v)
		return src == ""
	})
	return src
}
