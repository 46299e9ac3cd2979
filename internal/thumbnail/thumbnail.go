// Package thumbnail renders preview images for uploaded pictures.
package thumbnail

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	Size    = 300
	Quality = 85
)

// PathFor returns where the thumbnail of src is written.
func PathFor(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + "_thumb.jpg"
}

// Generate fits src into a Size×Size box and writes it next to src as JPEG.
func Generate(src string) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	dst := PathFor(src)
	thumb := imaging.Fit(img, Size, Size, imaging.Lanczos)
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(Quality)); err != nil {
		return "", fmt.Errorf("save %s: %w", dst, err)
	}
	return dst, nil
}
