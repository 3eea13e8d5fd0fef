package filesearch

import (
	"mime"
	"path/filepath"
	"strings"
)

const defaultMIMEType = "application/octet-stream"

// Document types the store accepts most often; checked before the platform table.
var commonMIMETypes = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".json": "application/json",
	".pdf":  "application/pdf",
	".html": "text/html",
	".xml":  "application/xml",
}

// GuessMIME returns the content type for filename, defaulting to
// application/octet-stream.
func GuessMIME(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return defaultMIMEType
	}
	if t, ok := commonMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		// drop parameters such as "; charset=utf-8"
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	return defaultMIMEType
}

// DisplayName is the filename without directory and extension.
func DisplayName(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return base
	}
	return name
}
