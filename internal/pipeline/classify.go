package pipeline

import (
	"mime"
	"strings"
)

// extensionByContentType pins extensions for the media types the platform
// actually sends. The mime database is only a fallback because its first
// candidate varies by OS.
var extensionByContentType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"audio/m4a":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/mp4":       ".m4a",
	"audio/mpeg":      ".mp3",
	"audio/ogg":       ".ogg",
	"audio/wav":       ".wav",
	"application/pdf": ".pdf",
}

var kindByExtension = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".gif":  "image",
	".webp": "image",
	".mp4":  "video",
	".mov":  "video",
	".m4a":  "audio",
	".mp3":  "audio",
	".ogg":  "audio",
	".wav":  "audio",
}

// extensionFor maps a bare content type to a file extension.
func extensionFor(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if ext, ok := extensionByContentType[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// kindFor maps a file extension to the processor's file-type tag.
func kindFor(ext string) string {
	if kind, ok := kindByExtension[strings.ToLower(ext)]; ok {
		return kind
	}
	return "document"
}
