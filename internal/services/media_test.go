package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/config"
)

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	pdfData = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
)

func fileOf(name string, data []byte) FileUpload {
	return FileUpload{
		Filename: name,
		Size:     int64(len(data)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func newMediaService(store *fakeStorage) *MediaService {
	svc := NewMediaService(store, "https://registry.example.org", config.UploadsConfig{
		MaxFiles:            3,
		MaxFileSize:         1024,
		AllowedContentTypes: []string{"image/png", "image/jpeg", "application/pdf"},
		Prefix:              "/trainings/",
	})
	svc.now = func() time.Time { return time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestMediaService_UploadMany(t *testing.T) {
	store := newFakeStorage()
	svc := newMediaService(store)

	files, err := svc.UploadMany(context.Background(), []FileUpload{
		fileOf("site photo.PNG", pngData),
		fileOf(`C:\scans\attendance.pdf`, pdfData),
	})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "site photo.PNG", files[0].Filename)
	assert.Equal(t, "image/png", files[0].ContentType)
	assert.True(t, strings.HasPrefix(files[0].Key, "trainings/2026/02/"), files[0].Key)
	assert.True(t, strings.HasSuffix(files[0].Key, ".png"), files[0].Key)
	assert.Equal(t, "https://registry.example.org/api/files/"+files[0].Key, files[0].URL)
	assert.Equal(t, int64(len(pngData)), files[0].Size)

	assert.Equal(t, "attendance.pdf", files[1].Filename)
	assert.Equal(t, "application/pdf", files[1].ContentType)
	assert.NotEqual(t, files[0].Key, files[1].Key)
	assert.Equal(t, 2, store.count())
}

func TestMediaService_Upload_DerivesExtensionFromType(t *testing.T) {
	store := newFakeStorage()
	svc := newMediaService(store)

	f, err := svc.Upload(context.Background(), fileOf("scan", pdfData))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(f.Key, ".pdf"), f.Key)
}

func TestMediaService_UploadMany_Validation(t *testing.T) {
	tests := []struct {
		name  string
		files []FileUpload
		field string
	}{
		{"no files", nil, "files"},
		{"too many files", []FileUpload{
			fileOf("a.png", pngData), fileOf("b.png", pngData), fileOf("c.png", pngData), fileOf("d.png", pngData),
		}, "files"},
		{"disallowed type", []FileUpload{fileOf("a.png", pngData), fileOf("notes.txt", []byte("hello there"))}, "files[1] (notes.txt)"},
		{"empty file", []FileUpload{fileOf("a.png", nil)}, "files[0] (a.png)"},
		{"too large", []FileUpload{fileOf("big.png", append(pngData, make([]byte, 2048)...))}, "files[0] (big.png)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStorage()
			svc := newMediaService(store)

			_, err := svc.UploadMany(context.Background(), tt.files)
			require.Error(t, err)
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperr.KindValidation, ae.Kind)
			assert.Contains(t, ae.Fields, tt.field)
			assert.Zero(t, store.count())
		})
	}
}

func TestMediaService_UploadMany_RollsBackOnFailure(t *testing.T) {
	store := newFakeStorage()
	store.failOn = ".pdf"
	store.uploadErr = errors.New("media host unavailable")
	svc := newMediaService(store)

	_, err := svc.UploadMany(context.Background(), []FileUpload{
		fileOf("a.png", pngData),
		fileOf("b.pdf", pdfData),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.ErrorIs(t, err, store.uploadErr)
	assert.Zero(t, store.count())
	require.Len(t, store.deleted, 1)
	assert.True(t, strings.HasSuffix(store.deleted[0], ".png"))
}

func TestMediaService_Upload_UnderstatedSize(t *testing.T) {
	store := newFakeStorage()
	svc := newMediaService(store)

	data := append(append([]byte{}, pngData...), make([]byte, 2048)...)
	f := fileOf("liar.png", data)
	f.Size = 100

	_, err := svc.Upload(context.Background(), f)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Zero(t, store.count())
}

func TestMediaService_Upload_OpenFailure(t *testing.T) {
	svc := newMediaService(newFakeStorage())
	f := FileUpload{
		Filename: "a.png",
		Size:     10,
		Open:     func() (io.ReadCloser, error) { return nil, errors.New("temp file gone") },
	}

	_, err := svc.Upload(context.Background(), f)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestMediaService_Fetch_Streams(t *testing.T) {
	store := newFakeStorage()
	svc := newMediaService(store)
	up, err := svc.Upload(context.Background(), fileOf("a.png", pngData))
	require.NoError(t, err)

	f, err := svc.Fetch(context.Background(), "/"+up.Key)
	require.NoError(t, err)
	require.NotNil(t, f.Body)
	defer f.Body.Close()
	assert.Empty(t, f.RedirectURL)
	assert.Equal(t, "image/png", f.Meta.ContentType)

	got, err := io.ReadAll(f.Body)
	require.NoError(t, err)
	assert.Equal(t, pngData, got)
}

func TestMediaService_Fetch_Redirects(t *testing.T) {
	store := newFakeStorage()
	store.signs = true
	svc := newMediaService(store)
	up, err := svc.Upload(context.Background(), fileOf("a.png", pngData))
	require.NoError(t, err)

	f, err := svc.Fetch(context.Background(), up.Key)
	require.NoError(t, err)
	assert.Nil(t, f.Body)
	assert.Equal(t, "https://media.example/"+up.Key+"?ttl=900", f.RedirectURL)
}

func TestMediaService_Fetch_NotFound(t *testing.T) {
	svc := newMediaService(newFakeStorage())

	for _, key := range []string{"trainings/2026/02/missing.png", "../etc/passwd", ""} {
		_, err := svc.Fetch(context.Background(), key)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), key)
	}
}
