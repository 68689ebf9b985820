package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	testCases := map[string]string{
		"My Guide":               "my-guide",
		"My Guide!":              "my-guide",
		"  2024 -- Report  ":     "2024-report",
		"Ebook: SEO/Content 101": "ebook-seo-content-101",
		"already-a-slug":         "already-a-slug",
		"!!!":                    "",
		"Ünïcode Náme":           "n-code-n-me",
	}

	for input, expected := range testCases {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, Slugify(input))
		})
	}
}

func TestSlugOrFallback(t *testing.T) {
	recordID := "3f9a1c2e-aaaa-4bbb-8ccc-123456789abc"

	assert.Equal(t, "my-guide", SlugOrFallback("My Guide", recordID))
	assert.Equal(t, "3f9a1c2e", SlugOrFallback("???", recordID))
	assert.Equal(t, "abc", SlugOrFallback("", "abc"))
}
