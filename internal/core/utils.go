package core

import (
	"regexp"
	"strings"
)

var (
	nonSlug  = regexp.MustCompile("[^a-z0-9-]+")
	dashRuns = regexp.MustCompile("-+")
)

// Slugify converts a string to a URL-safe slug
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = nonSlug.ReplaceAllString(s, "")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
