package feed

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxCaptionLength = 280
	ellipsis         = "..."
)

// FormatCaption renders the post text for a job. The result never exceeds
// MaxCaptionLength characters.
func FormatCaption(job Job) string {
	hashtags := fmt.Sprintf("#JobOpening #Hiring #Careers #%s #OffCampus",
		strings.ReplaceAll(job.CompanyName, " ", ""))
	hashtags = strings.ReplaceAll(hashtags, "##", "#")

	caption := fmt.Sprintf("🚀 New Job Alert: %s\n\n🏢 %s\n\n🔗 Apply: %s\n\n%s",
		job.Title, job.CompanyName, job.URL, hashtags)

	return truncate(norm.NFC.String(caption), MaxCaptionLength)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	keep := limit - len([]rune(ellipsis))
	return string(runes[:keep]) + ellipsis
}
