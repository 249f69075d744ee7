package media

import (
	"mime"
	"path"
	"strings"

	"github.com/h2non/filetype"

	"storyweave/models"
)

// ExtensionForMime returns the export file extension for a payload, falling
// back to a default that fits the page type.
func ExtensionForMime(mimeType string, t models.PageType) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "video/ogg":
		return "ogv"
	}
	if strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/") {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	if t == models.PageVideo {
		return "mp4"
	}
	return "png"
}

// SniffMime detects the content type from magic bytes, then from the file
// name extension.
func SniffMime(data []byte, name string) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if m := MimeForExtension(path.Ext(name)); m != "" {
		return m
	}
	return "application/octet-stream"
}

// MimeForExtension maps a file extension onto a content type, or "" when it
// is unknown.
func MimeForExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return ""
	}
	if kind := filetype.GetType(ext); kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return mime.TypeByExtension("." + ext)
}

// TypeForMime maps a content type onto a media page type.
func TypeForMime(mimeType string) (models.PageType, bool) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.PageImage, true
	case strings.HasPrefix(mimeType, "video/"):
		return models.PageVideo, true
	}
	return "", false
}
