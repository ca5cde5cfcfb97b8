package media

import (
	"path/filepath"
	"strings"
)

// NormalizeType picks the stored extension and MIME type from the declared
// content type and file name. Anything ambiguous is stored as mp4, the
// container most transcription services accept.
func NormalizeType(contentType, filename string) (ext, mimeType string) {
	declared, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	declared = strings.TrimSpace(declared)
	name := strings.ToLower(filename)
	hint := declared + " " + name

	switch {
	case strings.Contains(hint, "webm"):
		return ".webm", pick(declared, "webm", "video/webm")
	case strings.Contains(hint, "quicktime") || strings.HasSuffix(name, ".mov"):
		return ".mov", "video/quicktime"
	case strings.Contains(hint, "ogg"):
		return ".ogg", pick(declared, "ogg", "video/ogg")
	default:
		return ".mp4", "video/mp4"
	}
}

// pick keeps the declared type when it names the container (audio/webm
// stays audio/webm).
func pick(declared, token, fallback string) string {
	if strings.Contains(declared, token) && strings.Contains(declared, "/") {
		return declared
	}
	return fallback
}

// ContentTypeOf maps a stored name back to its MIME type.
func ContentTypeOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".ogg":
		return "video/ogg"
	default:
		return "video/mp4"
	}
}

// extensionOf is the inverse of NormalizeType for MIME types.
func extensionOf(mimeType string) string {
	ext, _ := NormalizeType(mimeType, "")
	return ext
}
