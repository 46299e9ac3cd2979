package upload

import (
	"context"
	"mime/multipart"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/cloudinary"
)

// CloudinaryStore keeps uploads in Cloudinary and returns their secure URL.
type CloudinaryStore struct {
	Client   *cloudinary.Client
	MaxBytes int64
}

// Save implements Store.
func (s *CloudinaryStore) Save(ctx context.Context, fh *multipart.FileHeader, purpose string) (FileMeta, error) {
	if s.MaxBytes > 0 && fh.Size > s.MaxBytes {
		return FileMeta{}, apperr.Validationf("File %s exceeds the %d MB limit", fh.Filename, s.MaxBytes/(1024*1024))
	}
	f, err := fh.Open()
	if err != nil {
		return FileMeta{}, apperr.Internal("open upload", err)
	}
	defer f.Close()

	res, err := s.Client.Upload(ctx, f, fh.Filename, purpose)
	if err != nil {
		return FileMeta{}, apperr.Internal("cloudinary upload", err)
	}
	size := res.Bytes
	if size == 0 {
		size = fh.Size
	}
	return FileMeta{FileName: fh.Filename, FileURL: res.SecureURL, FileSize: size}, nil
}
