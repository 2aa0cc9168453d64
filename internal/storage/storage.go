package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Folders objects are grouped under. Each has its own allow-list.
const (
	FolderAvatars    = "avatars"
	FolderResources  = "resources"
	FolderRecordings = "recordings"
	FolderThumbnails = "thumbnails"
)

var (
	ErrNotFound          = errors.New("object not found")
	ErrInvalidKey        = errors.New("invalid object key")
	ErrUnknownFolder     = errors.New("unknown storage folder")
	ErrFileTypeForbidden = errors.New("file type not allowed")
	ErrFileTooLarge      = errors.New("file too large")
)

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Put writes r under key and returns the public URL of the object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

var allowedExtensions = map[string]map[string]bool{
	FolderAvatars:    set(".jpg", ".jpeg", ".png", ".gif", ".webp"),
	FolderThumbnails: set(".jpg", ".jpeg", ".png", ".webp"),
	FolderResources: set(
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".md", ".csv", ".json",
		".zip", ".tar", ".gz",
		".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg",
		".mp4", ".webm", ".mov",
	),
	FolderRecordings: set(".mp4", ".webm", ".mov", ".m4v"),
}

// maxSizes caps uploads per folder; zero means the configured global limit.
var maxSizes = map[string]int64{
	FolderAvatars:    5 << 20,
	FolderThumbnails: 5 << 20,
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// ValidateUpload checks a file name and size against the folder rules.
// globalLimit applies when the folder has no tighter limit.
func ValidateUpload(folder, fileName string, size, globalLimit int64) error {
	allowed, ok := allowedExtensions[folder]
	if !ok {
		return ErrUnknownFolder
	}
	ext := strings.ToLower(path.Ext(fileName))
	if !allowed[ext] {
		return fmt.Errorf("%w: %s", ErrFileTypeForbidden, ext)
	}
	limit := globalLimit
	if folderLimit := maxSizes[folder]; folderLimit > 0 && (limit <= 0 || folderLimit < limit) {
		limit = folderLimit
	}
	if limit > 0 && size > limit {
		return ErrFileTooLarge
	}
	return nil
}

// NewKey returns "<folder>/<yyyy>/<mm>/<uuid><ext>" for an uploaded file name.
func NewKey(folder, fileName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("%s/%04d/%02d/%s%s", folder, now.Year(), int(now.Month()), uuid.NewString(), ext)
}

// ContentType picks the declared type when present, else guesses from the extension.
func ContentType(fileName, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(fileName))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != key {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
