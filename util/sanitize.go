package util

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy strips every HTML tag and attribute. a bluemonday policy is safe
// for concurrent use once built, so one instance is shared by the whole process.
var strictPolicy = bluemonday.StrictPolicy()

// PlainText reduces untrusted input (lead magnet names, descriptions, submitted form values)
// to plain text: tags are removed, entities are decoded back to characters and
// surrounding whitespace is trimmed.
// example: "<b>My</b> Guide &amp; Checklist " -> "My Guide & Checklist"
func PlainText(raw string) string {
	// Sanitize escapes the text it keeps ("&" -> "&amp;"), the values here are stored
	// and rendered as JSON/CSV, not HTML, so the escaping is undone.
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(raw)))
}
