// Package storage keeps uploaded member files on an afero filesystem.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"

	"member-onboarding/pkg/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrEmptyUpload       = errors.New("upload is empty")
	ErrUploadTooLarge    = errors.New("upload exceeds size limit")
	ErrUnsupportedType   = errors.New("upload type is not allowed")
	ErrInvalidStoredPath = errors.New("invalid stored file path")
)

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type FileStore struct {
	fs       afero.Fs
	maxBytes int64
	allowed  []string
	log      *zap.Logger
}

// NewFileStore stores files under config.Dir on the OS filesystem.
func NewFileStore(config utils.UploadConfig, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return NewFileStoreOn(afero.NewBasePathFs(afero.NewOsFs(), config.Dir), config, log), nil
}

// NewFileStoreOn stores files on fs, which is treated as the upload root.
func NewFileStoreOn(fs afero.Fs, config utils.UploadConfig, log *zap.Logger) *FileStore {
	return &FileStore{
		fs:       fs,
		maxBytes: config.MaxBytes,
		allowed:  config.AllowedTypes,
		log:      log.With(zap.String("component", "storage")),
	}
}

// Store validates the upload by its sniffed content type and writes it under a
// random name. It returns the stored path.
func (s *FileStore) Store(ctx context.Context, upload Upload) (string, error) {
	if upload.Content == nil {
		return "", ErrEmptyUpload
	}
	if s.maxBytes > 0 && upload.Size > s.maxBytes {
		return "", ErrUploadTooLarge
	}

	// Read one byte past the limit to detect oversize bodies with a lying Size.
	limit := s.maxBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(upload.Content, limit+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if int64(len(data)) > limit {
		return "", ErrUploadTooLarge
	}

	mtype := mimetype.Detect(data)
	if len(s.allowed) > 0 && !slices.ContainsFunc(s.allowed, mtype.Is) {
		s.log.Warn("Rejected upload type",
			zap.String("filename", upload.Filename),
			zap.String("detected", mtype.String()),
		)
		return "", ErrUnsupportedType
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := path.Join("photos", utils.GenerateFileName(mtype.Extension()))
	if err := s.fs.MkdirAll("photos", 0755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}
	if err := afero.WriteReader(s.fs, name, bytes.NewReader(data)); err != nil {
		s.log.Error("Failed to store upload", zap.Error(err), zap.String("path", name))
		return "", fmt.Errorf("write upload: %w", err)
	}

	s.log.Info("Upload stored",
		zap.String("path", name),
		zap.String("type", mtype.String()),
		zap.Int("bytes", len(data)),
	)
	return name, nil
}

// Delete removes a stored file. Deleting a missing file is not an error.
func (s *FileStore) Delete(_ context.Context, stored string) error {
	clean := path.Clean(stored)
	if clean == "." || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return ErrInvalidStoredPath
	}

	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error("Failed to delete upload", zap.Error(err), zap.String("path", clean))
		return fmt.Errorf("delete upload %s: %w", clean, err)
	}
	return nil
}
