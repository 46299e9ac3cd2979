package upload

import (
	"bytes"
	"mime/multipart"
)

// NewFileHeaders builds multipart headers for in-process callers such as tests
// and the seed command. files maps a file name to its content.
func NewFileHeaders(field string, files map[string][]byte) ([]*multipart.FileHeader, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	if err != nil {
		return nil, err
	}
	return form.File[field], nil
}
