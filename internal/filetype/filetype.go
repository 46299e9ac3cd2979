// Package filetype maps file names to media categories and MIME types.
// The tables are fixed; nothing here touches the filesystem.
package filetype

import (
	"path/filepath"
	"strings"
)

// Category is the coarse media class of an uploaded file.
type Category string

const (
	Image Category = "image"
	Video Category = "video"
	Audio Category = "audio"
	File  Category = "file"
)

var categories = map[string]Category{
	".jpg":  Image,
	".jpeg": Image,
	".png":  Image,
	".gif":  Image,
	".webp": Image,
	".mp4":  Video,
	".avi":  Video,
	".mov":  Video,
	".wmv":  Video,
	".mp3":  Audio,
	".wav":  Audio,
	".ogg":  Audio,
}

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain; charset=utf-8",
	".zip":  "application/zip",
}

// DefaultMIME is served for extensions outside the table.
const DefaultMIME = "application/octet-stream"

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Classify returns the media category for name, File when the extension is unknown.
func Classify(name string) Category {
	if c, ok := categories[Ext(name)]; ok {
		return c
	}
	return File
}

// MIMEType returns the content type for name.
func MIMEType(name string) string {
	if m, ok := mimeTypes[Ext(name)]; ok {
		return m
	}
	return DefaultMIME
}

// IsImage reports whether name has an image extension.
func IsImage(name string) bool {
	return Classify(name) == Image
}
