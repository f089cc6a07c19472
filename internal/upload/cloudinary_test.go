package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestUploader(t *testing.T, handler http.HandlerFunc, maxBytes int64) *Uploader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u := New(Config{
		CloudName:    "family",
		UploadPreset: "unsigned-gifts",
		MaxBytes:     maxBytes,
		BaseURL:      srv.URL,
	}, srv.Client(), quietLogger(), nil)
	u.newID = func() string { return "fixed" }
	return u
}

func TestUploadPostsMultipart(t *testing.T) {
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/family/image/upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		assert.Equal(t, "unsigned-gifts", r.FormValue("upload_preset"))
		assert.Equal(t, "family", r.FormValue("cloud_name"))
		assert.Equal(t, "christmas-list", r.FormValue("folder"))
		assert.Equal(t, "emma_fixed", r.FormValue("public_id"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "doll.png", header.Filename)
		got, _ := io.ReadAll(file)
		assert.Equal(t, pngBytes, got)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"secure_url": "https://res.cloudinary.com/family/image/upload/christmas-list/emma_fixed.png",
			"public_id":  "christmas-list/emma_fixed",
		})
	}, 0)

	url, err := u.Upload(context.Background(), "emma", File{
		Name:        "doll.png",
		ContentType: "image/png",
		Size:        int64(len(pngBytes)),
		Body:        bytes.NewReader(pngBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/family/image/upload/christmas-list/emma_fixed.png", url)
	assert.Equal(t, int64(DefaultMaxBytes), u.MaxBytes())
}

func TestUploadRejectsBeforeCallingCloudinary(t *testing.T) {
	called := false
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, 32)

	_, err := u.Upload(context.Background(), "emma", File{
		Name: "notes.txt", ContentType: "text/plain", Size: 5, Body: strings.NewReader("hello"),
	})
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = u.Upload(context.Background(), "emma", File{
		Name: "big.png", ContentType: "image/png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes),
	})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = u.Upload(context.Background(), "emma", File{
		Name: "big.png", ContentType: "image/png", Body: bytes.NewReader(pngBytes),
	})
	assert.ErrorIs(t, err, ErrTooLarge, "undeclared size is still capped while reading")

	_, err = u.Upload(context.Background(), "emma", File{
		Name: "fake.png", ContentType: "image/png", Size: 20, Body: strings.NewReader("<html>not a pic</html>"),
	})
	assert.ErrorIs(t, err, ErrNotImage)

	assert.False(t, called)
}

func TestUploadAcceptsOpaqueDeclaredImages(t *testing.T) {
	heic := append([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic"), bytes.Repeat([]byte{0}, 64)...)
	calls := 0
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://res.cloudinary.com/family/photo.heic"})
	}, 0)

	url, err := u.Upload(context.Background(), "mom", File{
		Name: "IMG_0001.HEIC", ContentType: "image/heic", Size: int64(len(heic)), Body: bytes.NewReader(heic),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/family/photo.heic", url)

	_, err = u.Upload(context.Background(), "mom", File{
		Name: "IMG_0002.HEIC", Size: int64(len(heic)), Body: bytes.NewReader(heic),
	})
	assert.ErrorIs(t, err, ErrNotImage, "opaque bytes need a declared image type")

	_, err = u.Upload(context.Background(), "mom", File{
		Name: "IMG_0003.HEIC", ContentType: "image/heic", Size: 11, Body: strings.NewReader("just a note"),
	})
	assert.ErrorIs(t, err, ErrNotImage, "text never passes as an image")

	assert.Equal(t, 1, calls)
}

func TestUploadSurfacesCloudinaryError(t *testing.T) {
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Upload preset not found"}}`)
	}, 0)

	_, err := u.Upload(context.Background(), "dad", File{
		Name: "x.png", ContentType: "image/png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upload preset not found")
}

func TestUploadNotConfigured(t *testing.T) {
	u := New(Config{}, nil, quietLogger(), nil)
	assert.False(t, u.Enabled())
	_, err := u.Upload(context.Background(), "dad", File{Body: bytes.NewReader(pngBytes)})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
