package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"diet-coach/internal/extraction"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the store's size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// ImageStore keeps uploaded images as temporary files until an extraction
// takes ownership of them.
type ImageStore struct {
	basePath string
	maxBytes int64
}

// NewImageStore creates a new ImageStore and ensures the base directory exists.
// A maxBytes of zero disables the per-file size limit.
func NewImageStore(basePath string, maxBytes int64) (*ImageStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &ImageStore{basePath: basePath, maxBytes: maxBytes}, nil
}

// Dir returns the directory holding temporary uploads.
func (s *ImageStore) Dir() string {
	return s.basePath
}

// Save writes r to a uniquely named file and returns it as an extraction
// image. The MIME type must be one of extraction.AllowedMIMETypes.
func (s *ImageStore) Save(r io.Reader, mimeType string) (extraction.Image, error) {
	mimeType = extraction.NormalizeMIMEType(mimeType)
	ext, ok := extraction.AllowedMIMETypes[mimeType]
	if !ok {
		return extraction.Image{}, fmt.Errorf("%w: %q", extraction.ErrUnsupportedMediaType, mimeType)
	}

	path := filepath.Join(s.basePath, uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return extraction.Image{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: empty upload", extraction.ErrNoImagesProvided)
	}
	if err != nil {
		os.Remove(path)
		return extraction.Image{}, fmt.Errorf("failed to write upload file: %w", err)
	}

	return extraction.Image{Path: path, MIMEType: mimeType}, nil
}

// SaveFile copies a local file into the store so the original survives the
// extraction's cleanup.
func (s *ImageStore) SaveFile(path, mimeType string) (extraction.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return extraction.Image{}, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()
	return s.Save(f, mimeType)
}

// Discard removes images that were saved but never handed to an extraction.
func (s *ImageStore) Discard(images []extraction.Image) error {
	var errs []error
	for _, img := range images {
		if img.Path == "" {
			continue
		}
		if err := os.Remove(img.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to discard %s: %w", img.Path, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveStale deletes uploads older than maxAge, which can only be left
// behind by a process that died mid-request. It returns the number removed.
func (s *ImageStore) RemoveStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage directory: %w", err)
	}

	threshold := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(threshold) {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove stale file %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
