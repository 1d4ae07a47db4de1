// Package files implements the content-addressed file store: uploads
// are identified by the SHA-256 of their bytes, stored exactly once,
// and served back under stable immutable URLs.
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/observability"
	"github.com/openparish/backend/pkg/storage"
)

const maxTitleBytes = 255

// Store owns the two filesystem areas of the content-addressed store:
// the scratch directory uploads are staged in, and the permanent
// directory keyed by content hash.
type Store struct {
	DB      *storage.DB
	DataDir string
	Cache   RecordCache
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// UploadResult is the outcome of one upload.
type UploadResult struct {
	ID       string  `json:"id"`
	MimeType *string `json:"mimeType"`
	IsNew    bool    `json:"isNew"`
}

// EnsureDirs creates the scratch and permanent directories.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.tmpDir(), s.uploadsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	return nil
}

func (s *Store) tmpDir() string {
	return filepath.Join(s.DataDir, "tmp")
}

func (s *Store) uploadsDir() string {
	return filepath.Join(s.DataDir, "uploads")
}

// Path returns the permanent location for a content hash.
func (s *Store) Path(id string) string {
	return filepath.Join(s.uploadsDir(), id)
}

// Save runs the upload algorithm: stage the bytes in the scratch
// directory, hash them, dedup against existing records, sniff and
// optionally filter the MIME type, and for new content persist the
// record before atomically moving the bytes into the permanent store.
// The staged file is removed on every path, success or failure.
func (s *Store) Save(ctx context.Context, src io.Reader, filename string, allowedMimeTypes []string, principal *model.Principal) (*UploadResult, error) {
	tempPath := filepath.Join(s.tmpDir(), uuid.NewString())
	defer os.Remove(tempPath)

	id, size, err := s.stage(src, tempPath)
	if err != nil {
		return nil, err
	}

	exists, err := s.DB.UploadedFileExists(ctx, id)
	if err != nil {
		return nil, err
	}

	var sniffed *mimetype.MIME
	if len(allowedMimeTypes) > 0 || !exists {
		sniffed, err = mimetype.DetectFile(tempPath)
		if err != nil {
			return nil, fmt.Errorf("sniff mime type: %w", err)
		}
		if len(allowedMimeTypes) > 0 && !mimeAllowed(sniffed, allowedMimeTypes) {
			return nil, apierror.MimeTypeNotAllowed(allowedMimeTypes, sniffed.String())
		}
	}

	if exists {
		record, err := s.Record(ctx, id)
		if err != nil {
			return nil, err
		}
		s.countUpload("deduplicated", 0)
		return &UploadResult{ID: id, MimeType: record.MimeType, IsNew: false}, nil
	}

	mime := sniffed.String()
	title := cleanTitle(filename, sniffed.Extension())
	record := &storage.UploadedFile{
		ID:       id,
		Title:    &title,
		MimeType: &mime,
	}
	if principal != nil {
		uploader := principal.ID
		record.FirstUploader = &uploader
	}

	inserted, err := s.DB.InsertUploadedFile(ctx, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent upload of identical content won the race; its
		// bytes are (or will be) in the permanent store.
		s.countUpload("deduplicated", 0)
		return &UploadResult{ID: id, MimeType: &mime, IsNew: false}, nil
	}

	if err := os.Rename(tempPath, s.Path(id)); err != nil {
		return nil, fmt.Errorf("move upload into store: %w", err)
	}
	s.countUpload("stored", size)
	return &UploadResult{ID: id, MimeType: &mime, IsNew: true}, nil
}

func (s *Store) countUpload(outcome string, size int64) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	if size > 0 {
		s.Metrics.UploadBytesTotal.Add(float64(size))
	}
}

// stage streams src to tempPath while computing its SHA-256.
func (s *Store) stage(src io.Reader, tempPath string) (string, int64, error) {
	out, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, hash), src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("stage upload: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

// Record loads a file record through the cache.
func (s *Store) Record(ctx context.Context, id string) (*storage.UploadedFile, error) {
	if s.Cache != nil {
		if f, ok := s.Cache.Get(ctx, id); ok {
			if s.Metrics != nil {
				s.Metrics.FileCacheHits.Inc()
			}
			return f, nil
		}
		if s.Metrics != nil {
			s.Metrics.FileCacheMisses.Inc()
		}
	}
	f, err := s.DB.UploadedFileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		s.Cache.Put(ctx, id, f)
	}
	return f, nil
}

// InvalidateRecord drops a cached record, used when its title changes.
func (s *Store) InvalidateRecord(ctx context.Context, id string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, id)
	}
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func mimeAllowed(sniffed *mimetype.MIME, allowed []string) bool {
	for _, a := range allowed {
		if sniffed.Is(a) {
			return true
		}
	}
	return false
}

// cleanTitle strips a filename extension matching the sniffed type and
// truncates to the storage limit without splitting a UTF-8 sequence.
func cleanTitle(filename, extension string) string {
	title := filename
	if extension != "" && strings.HasSuffix(strings.ToLower(title), extension) {
		title = title[:len(title)-len(extension)]
	}
	for len(title) > maxTitleBytes {
		// Dropping the last rune keeps the cut on a character boundary.
		runes := []rune(title)
		title = string(runes[:len(runes)-1])
	}
	return title
}
