package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	assert.Equal(t, "My Guide & Checklist", PlainText("<b>My</b> Guide &amp; Checklist "))
	assert.Equal(t, "Tom & Jerry", PlainText("Tom & Jerry"))
	assert.Equal(t, "", PlainText("<script>alert(1)</script>"))
	assert.Equal(t, "", PlainText("   "))
	assert.Equal(t, "jane@example.com", PlainText(" jane@example.com"))
}
