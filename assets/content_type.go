package assets

import (
	"path"
	"strings"
)

// defaultContentType is served for anything not in the table below
const defaultContentType = "application/octet-stream"

// contentTypesByExtension is the complete set of recognised extensions.
// mime.TypeByExtension is not used, its answers depend on the host's mime.types file.
var contentTypesByExtension = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
	".otf":   "font/otf",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".pdf":   "application/pdf",
	".xml":   "application/xml",
	".txt":   "text/plain",
}

// ContentTypeFor maps a relative path to its Content-Type by lower-cased extension.
// total function: unknown or missing extensions give application/octet-stream.
// example: "img/logo.SVG" -> "image/svg+xml", "LICENSE" -> "application/octet-stream"
func ContentTypeFor(relativePath string) string {
	extension := strings.ToLower(path.Ext(relativePath))
	if contentType, known := contentTypesByExtension[extension]; known {
		return contentType
	}
	return defaultContentType
}
