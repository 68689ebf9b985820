// Package util provides small, stateless utility functions shared across the application.
// Functions here have no dependencies on other internal packages.
package util

import (
	"regexp"
	"strings"
)

// nonSlugCharacters matches every run of characters that cannot appear in a slug.
// a run (not a single char) is matched so "My  --  Guide" collapses into one hyphen.
var nonSlugCharacters = regexp.MustCompile(`[^a-z0-9]+`)

// fallbackSlugLength is how many characters of the record UUID are used
// when the name slugifies to nothing (e.g. a name made only of emoji or punctuation).
const fallbackSlugLength = 8

// Slugify turns a human-readable name into the URL-safe slug used both as
// the public path segment (/lm/<slug>) and as the asset key prefix.
// lowercase, every run of non [a-z0-9] characters becomes a single "-",
// and leading/trailing hyphens are trimmed.
// example output: "My Guide!" -> "my-guide", "  2024 Report  " -> "2024-report"
//
// the result can be empty, see SlugOrFallback.
func Slugify(name string) string {
	lowered := strings.ToLower(name)
	hyphenated := nonSlugCharacters.ReplaceAllString(lowered, "-")
	return strings.Trim(hyphenated, "-")
}

// SlugOrFallback returns Slugify(name), or the first 8 characters of recordID
// when the name produces an empty slug. the first 8 characters of a UUID are
// lowercase hex, so the fallback is always a valid slug.
func SlugOrFallback(name string, recordID string) string {
	slug := Slugify(name)
	if slug != "" {
		return slug
	}
	if len(recordID) > fallbackSlugLength {
		return recordID[:fallbackSlugLength]
	}
	return recordID
}
