package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeFor(t *testing.T) {
	testCases := map[string]string{
		"index.html":          "text/html",
		"about.HTM":           "text/html",
		"img/logo.SVG":        "image/svg+xml",
		"css/site.css":        "text/css",
		"js/app.min.js":       "application/javascript",
		"fonts/inter.woff2":   "font/woff2",
		"fonts/legacy.eot":    "application/vnd.ms-fontobject",
		"downloads/guide.pdf": "application/pdf",
		"photo.JPEG":          "image/jpeg",
		"video/intro.webm":    "video/webm",
		"robots.txt":          "text/plain",
		"LICENSE":             "application/octet-stream",
		"archive.tar.gz":      "application/octet-stream",
		"folder.v2/file":      "application/octet-stream",
	}

	for relativePath, expected := range testCases {
		t.Run(relativePath, func(t *testing.T) {
			assert.Equal(t, expected, ContentTypeFor(relativePath))
		})
	}
}
