package services

import (
	"context"
	"errors"
	"io"
	"path"
	"time"

	"github.com/ZeremItay/autohub/internal/storage"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/ZeremItay/autohub/pkg/response"
)

type UploadedFile struct {
	URL      string `json:"file_url"`
	Key      string `json:"-"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// FileUploader validates uploads against the folder allow-lists and writes them to storage.
type FileUploader struct {
	store   storage.Storage
	maxSize int64
}

func NewFileUploader(store storage.Storage, maxSize int64) *FileUploader {
	return &FileUploader{store: store, maxSize: maxSize}
}

func (u *FileUploader) Upload(ctx context.Context, folder, fileName string, size int64, contentType string, r io.Reader) (*UploadedFile, error) {
	if u == nil || u.store == nil {
		return nil, response.NewServerError("file storage is not configured")
	}
	fileName = path.Base(fileName)

	if err := storage.ValidateUpload(folder, fileName, size, u.maxSize); err != nil {
		return nil, uploadError(err)
	}

	key := storage.NewKey(folder, fileName, time.Now())
	mimeType := storage.ContentType(fileName, contentType)
	url, err := u.store.Put(ctx, key, r, size, mimeType)
	if err != nil {
		return nil, uploadError(err)
	}

	return &UploadedFile{URL: url, Key: key, FileName: fileName, FileSize: size, MimeType: mimeType}, nil
}

// Remove deletes an object; failures only get logged.
func (u *FileUploader) Remove(ctx context.Context, key string) {
	if u == nil || u.store == nil || key == "" {
		return
	}
	if err := u.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Warn().Err(err).Str("key", key).Msg("failed to delete stored file")
	}
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, storage.ErrFileTypeForbidden),
		errors.Is(err, storage.ErrFileTooLarge),
		errors.Is(err, storage.ErrUnknownFolder),
		errors.Is(err, storage.ErrInvalidKey):
		return response.NewBadRequest(err.Error())
	}
	return err
}
