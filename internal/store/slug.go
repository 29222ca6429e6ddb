package store

import (
	"regexp"
	"strings"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a title: lowercase, with every run of
// non-alphanumeric characters collapsed to a single hyphen and leading or
// trailing hyphens trimmed. The derivation is deterministic so an unchanged
// title always yields an unchanged slug.
func Slugify(title string) string {
	lower := strings.ToLower(title)
	hyphenated := nonSlug.ReplaceAllString(lower, "-")
	return strings.Trim(hyphenated, "-")
}
