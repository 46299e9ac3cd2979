package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/filetype"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/queue"
)

// URLPrefix is the route under which LocalStore files are served.
const URLPrefix = "/uploads"

// LocalStore writes files below Dir using generated names.
type LocalStore struct {
	Dir      string
	MaxBytes int64
	Jobs     queue.Queue // optional; receives thumbnail jobs for images
	Logger   *slog.Logger
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(dir string, maxBytes int64, jobs queue.Queue, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{Dir: dir, MaxBytes: maxBytes, Jobs: jobs, Logger: logger}, nil
}

// Save implements Store.
func (s *LocalStore) Save(ctx context.Context, fh *multipart.FileHeader, purpose string) (FileMeta, error) {
	if s.MaxBytes > 0 && fh.Size > s.MaxBytes {
		return FileMeta{}, apperr.Validationf("File %s exceeds the %d MB limit", fh.Filename, s.MaxBytes/(1024*1024))
	}
	src, err := fh.Open()
	if err != nil {
		return FileMeta{}, apperr.Internal("open upload", err)
	}
	defer src.Close()

	dir := filepath.Join(s.Dir, purpose)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FileMeta{}, apperr.Internal("create upload dir", err)
	}
	name := uuid.NewString() + filetype.Ext(fh.Filename)
	dst := filepath.Join(dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return FileMeta{}, apperr.Internal("create upload file", err)
	}
	written, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return FileMeta{}, apperr.Internal("write upload file", err)
	}

	if s.Jobs != nil && filetype.IsImage(name) {
		if err := s.Jobs.Publish(ctx, queue.Message{Type: queue.TypeThumbnail, Body: []byte(dst)}); err != nil {
			s.Logger.Warn("thumbnail job not queued", "path", dst, "error", err)
		}
	}

	return FileMeta{
		FileName: fh.Filename,
		FileURL:  path.Join(URLPrefix, purpose, name),
		FileSize: written,
	}, nil
}

// Resolve maps a path below URLPrefix to a file on disk. The path is cleaned
// against a virtual root first, so it can never name anything outside Dir.
func (s *LocalStore) Resolve(rel string) (string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(rel, URLPrefix))
	if clean == "/" {
		return "", apperr.NotFound("File not found")
	}
	full := filepath.Join(s.Dir, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", apperr.NotFound("File not found")
	}
	return full, nil
}
