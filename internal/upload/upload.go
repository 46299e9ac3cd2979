// Package upload persists user-supplied files and describes them as FileMeta.
package upload

import (
	"context"
	"fmt"
	"mime/multipart"
)

// Purposes group stored files by the feature that received them.
const (
	PurposeMessages    = "messages"
	PurposeAssignments = "assignments"
	PurposeSubmissions = "submissions"
)

// FileMeta describes a stored file as it appears on messages, assignments and submissions.
type FileMeta struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize"`
}

// Store saves an uploaded multipart file and returns its public description.
type Store interface {
	Save(ctx context.Context, fh *multipart.FileHeader, purpose string) (FileMeta, error)
}

// SaveAll stores every file in order and stops at the first failure.
func SaveAll(ctx context.Context, s Store, files []*multipart.FileHeader, purpose string) ([]FileMeta, error) {
	out := make([]FileMeta, 0, len(files))
	for _, fh := range files {
		meta, err := s.Save(ctx, fh, purpose)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", fh.Filename, err)
		}
		out = append(out, meta)
	}
	return out, nil
}
