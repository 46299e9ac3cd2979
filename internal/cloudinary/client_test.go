package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSignsAndPostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/auto/upload", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "classroom/messages", r.FormValue("folder"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))

		want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=classroom/messages&timestamp=1700000000secret")))
		assert.Equal(t, want, r.FormValue("signature"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "notes.pdf", hdr.Filename)
		assert.Equal(t, "pdf-bytes", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"classroom/messages/abc","secure_url":"https://cdn.example/abc.pdf","resource_type":"raw","bytes":9}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "classroom")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.Upload(context.Background(), strings.NewReader("pdf-bytes"), "notes.pdf", "messages")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/abc.pdf", res.SecureURL)
	assert.Equal(t, int64(9), res.Bytes)
}

func TestUploadReportsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.BaseURL = srv.URL
	_, err := c.Upload(context.Background(), strings.NewReader("x"), "x.png", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFolderJoin(t *testing.T) {
	assert.Equal(t, "sub", (&Client{}).folder("sub"))
	assert.Equal(t, "root", (&Client{Folder: "root"}).folder(""))
	assert.Equal(t, "root/sub", (&Client{Folder: "root"}).folder("sub"))
}
