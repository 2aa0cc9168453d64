package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		fileName string
		size     int64
		limit    int64
		wantErr  error
	}{
		{"avatar png", FolderAvatars, "me.PNG", 1024, 50 << 20, nil},
		{"avatar pdf", FolderAvatars, "cv.pdf", 1024, 50 << 20, ErrFileTypeForbidden},
		{"avatar too large", FolderAvatars, "me.jpg", 6 << 20, 50 << 20, ErrFileTooLarge},
		{"resource zip", FolderResources, "workflow.zip", 10 << 20, 50 << 20, nil},
		{"resource exe", FolderResources, "setup.exe", 10, 50 << 20, ErrFileTypeForbidden},
		{"resource over global limit", FolderResources, "big.mp4", 60 << 20, 50 << 20, ErrFileTooLarge},
		{"recording mp4", FolderRecordings, "session.mp4", 40 << 20, 50 << 20, nil},
		{"recording image", FolderRecordings, "cover.png", 10, 50 << 20, ErrFileTypeForbidden},
		{"unknown folder", "secrets", "a.txt", 10, 0, ErrUnknownFolder},
		{"no extension", FolderResources, "README", 10, 0, ErrFileTypeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.folder, tt.fileName, tt.size, tt.limit)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewKey(t *testing.T) {
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	key := NewKey(FolderResources, "Guide.PDF", now)

	pattern := regexp.MustCompile(`^resources/2026/03/[0-9a-f-]{36}\.pdf$`)
	if !pattern.MatchString(key) {
		t.Errorf("key %q does not match %s", key, pattern)
	}

	if other := NewKey(FolderResources, "Guide.PDF", now); other == key {
		t.Error("keys should be unique")
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("a.pdf", ""); got != "application/pdf" {
		t.Errorf("ContentType(a.pdf) = %q", got)
	}
	if got := ContentType("a.pdf", "application/x-custom"); got != "application/x-custom" {
		t.Errorf("declared type should win, got %q", got)
	}
	if got := ContentType("a.unknownext", ""); got != "application/octet-stream" {
		t.Errorf("unknown extension should fall back, got %q", got)
	}
}

func TestLocalStorage_PutOpenDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "/files/")
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	ctx := context.Background()
	key := "resources/2026/03/abc.txt"

	url, err := s.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "/files/resources/2026/03/abc.txt" {
		t.Errorf("url = %q", url)
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("content = %q, expected %q", data, "hello")
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after delete: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("deleting a missing object should be a no-op, got %v", err)
	}
}

func TestLocalStorage_RejectsOversizedBody(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir(), "/files")

	_, err := s.Put(context.Background(), "avatars/x.png", strings.NewReader("0123456789"), 4, "image/png")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir(), "/files")

	for _, key := range []string{"../etc/passwd", "avatars/../../x", "/abs/path", "", `a\b`} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
}
