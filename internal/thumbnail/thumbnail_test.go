package thumbnail

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFitsIntoBox(t *testing.T) {
	src := filepath.Join(t.TempDir(), "whiteboard.png")
	require.NoError(t, imaging.Save(imaging.New(900, 600, color.NRGBA{R: 200, A: 255}), src))

	dst, err := Generate(src)
	require.NoError(t, err)
	assert.Equal(t, PathFor(src), dst)

	thumb, err := imaging.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 200), thumb.Bounds())
}

func TestGenerateKeepsSmallImages(t *testing.T) {
	src := filepath.Join(t.TempDir(), "icon.jpg")
	require.NoError(t, imaging.Save(imaging.New(64, 32, color.White), src))

	dst, err := Generate(src)
	require.NoError(t, err)
	thumb, err := imaging.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, 64, thumb.Bounds().Dx())
}

func TestGenerateRejectsNonImages(t *testing.T) {
	src := filepath.Join(t.TempDir(), "fake.png")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o600))
	_, err := Generate(src)
	assert.Error(t, err)
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, "/u/messages/abc_thumb.jpg", PathFor("/u/messages/abc.png"))
}
