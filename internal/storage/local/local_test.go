package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disaster-training/training-registry/internal/config"
	"github.com/disaster-training/training-registry/internal/storage"
)

// newTestStorage creates a LocalStorage backed by a temporary directory.
func newTestStorage(t *testing.T, baseURL string) *LocalStorage {
	t.Helper()
	s, err := New(&config.LocalStorageConfig{BasePath: t.TempDir()}, baseURL)
	if err != nil {
		t.Fatal("New:", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_CreatesDirectory(t *testing.T) {
	subDir := filepath.Join(t.TempDir(), "a", "b", "c")
	if _, err := New(&config.LocalStorageConfig{BasePath: subDir}, "http://localhost"); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(subDir); os.IsNotExist(err) {
		t.Error("New() did not create base directory")
	}
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func TestUpload(t *testing.T) {
	s := newTestStorage(t, "http://localhost")
	ctx := context.Background()

	content := "hello, world"
	result, err := s.Upload(ctx, "trainings/hello.txt", strings.NewReader(content), int64(len(content)), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	if result.Key != "trainings/hello.txt" {
		t.Errorf("Key = %q, want trainings/hello.txt", result.Key)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", result.Size, len(content))
	}
	if result.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("ContentType = %q", result.ContentType)
	}
	if len(result.Checksum) != 64 {
		t.Errorf("Checksum len = %d, want 64 (SHA256 hex)", len(result.Checksum))
	}
}

func TestUpload_CreatesSubdirectories(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	if _, err := s.Upload(ctx, "deep/nested/path/file.pdf", strings.NewReader("data"), 4, "application/pdf"); err != nil {
		t.Fatalf("Upload() error for deep path: %v", err)
	}

	fullPath := filepath.Join(s.basePath, "deep", "nested", "path", "file.pdf")
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		t.Error("Upload() did not create file at nested path")
	}
}

func TestUpload_RejectsTraversal(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	for _, key := range []string{"../escape.txt", "a/../../escape.txt", ""} {
		if _, err := s.Upload(ctx, key, strings.NewReader("x"), 1, "text/plain"); err == nil {
			t.Errorf("Upload(%q) = nil error, want rejection", key)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(s.basePath), "escape.txt")); !os.IsNotExist(err) {
		t.Error("file written outside the base directory")
	}
}

func TestUpload_CancelledContextRemovesFile(t *testing.T) {
	s := newTestStorage(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Upload(ctx, "cancelled.txt", strings.NewReader("data"), 4, "text/plain"); err == nil {
		t.Fatal("Upload() with cancelled context = nil error")
	}
	if ok, _ := s.Exists(context.Background(), "cancelled.txt"); ok {
		t.Error("partial file left behind")
	}
}

// ---------------------------------------------------------------------------
// Download
// ---------------------------------------------------------------------------

func TestDownload(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	want := "download me"
	if _, err := s.Upload(ctx, "dl.txt", strings.NewReader(want), int64(len(want)), "text/plain"); err != nil {
		t.Fatal("Upload:", err)
	}

	rc, err := s.Download(ctx, "dl.txt")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != want {
		t.Errorf("Download() content = %q, want %q", string(data), want)
	}
}

func TestDownload_NotFound(t *testing.T) {
	s := newTestStorage(t, "")

	_, err := s.Download(context.Background(), "nonexistent.txt")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDelete(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	if _, err := s.Upload(ctx, "to-delete.txt", strings.NewReader("bye"), 3, "text/plain"); err != nil {
		t.Fatal("Upload:", err)
	}

	if err := s.Delete(ctx, "to-delete.txt"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	exists, _ := s.Exists(ctx, "to-delete.txt")
	if exists {
		t.Error("Delete() file still exists after deletion")
	}
}

func TestDelete_NonExistentFile(t *testing.T) {
	s := newTestStorage(t, "")

	if err := s.Delete(context.Background(), "does-not-exist.txt"); err != nil {
		t.Errorf("Delete() error for non-existent file: %v (want nil)", err)
	}
}

func TestDelete_CleansUpEmptyParentDirs(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	if _, err := s.Upload(ctx, "sub/leaf.txt", strings.NewReader("x"), 1, "text/plain"); err != nil {
		t.Fatal("Upload:", err)
	}

	if err := s.Delete(ctx, "sub/leaf.txt"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.basePath, "sub")); !os.IsNotExist(err) {
		t.Error("Delete() should clean up empty parent directory 'sub'")
	}
	if _, err := os.Stat(s.basePath); err != nil {
		t.Error("Delete() removed the base directory")
	}
}

// ---------------------------------------------------------------------------
// Exists
// ---------------------------------------------------------------------------

func TestExists(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	ok, err := s.Exists(ctx, "no-such.txt")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if ok {
		t.Error("Exists() = true for non-existent file, want false")
	}

	if _, err := s.Upload(ctx, "dir/yes.txt", strings.NewReader("data"), 4, "text/plain"); err != nil {
		t.Fatal("Upload:", err)
	}

	ok, err = s.Exists(ctx, "dir/yes.txt")
	if err != nil {
		t.Fatalf("Exists() error after upload: %v", err)
	}
	if !ok {
		t.Error("Exists() = false for existing file, want true")
	}

	if ok, _ := s.Exists(ctx, "dir"); ok {
		t.Error("Exists() = true for a directory, want false")
	}
}

// ---------------------------------------------------------------------------
// GetURL
// ---------------------------------------------------------------------------

func TestGetURL(t *testing.T) {
	s := newTestStorage(t, "http://registry.example.com")
	ctx := context.Background()

	if _, err := s.Upload(ctx, "trainings/2026/photo.jpg", strings.NewReader("data"), 4, "image/jpeg"); err != nil {
		t.Fatal("Upload:", err)
	}

	url, err := s.GetURL(ctx, "trainings/2026/photo.jpg", time.Hour)
	if err != nil {
		t.Fatalf("GetURL() error: %v", err)
	}
	want := "http://registry.example.com/api/files/trainings/2026/photo.jpg"
	if url != want {
		t.Errorf("GetURL() = %q, want %q", url, want)
	}
	if s.SignsURLs() {
		t.Error("SignsURLs() = true for local storage")
	}
}

func TestGetURL_NotFound(t *testing.T) {
	s := newTestStorage(t, "http://example.com")

	_, err := s.GetURL(context.Background(), "missing.txt", time.Hour)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetURL() error = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// GetMetadata
// ---------------------------------------------------------------------------

func TestGetMetadata(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	content := []byte("%PDF-1.4 metadata test content")
	if _, err := s.Upload(ctx, "meta.pdf", bytes.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
		t.Fatal("Upload:", err)
	}

	meta, err := s.GetMetadata(ctx, "meta.pdf")
	if err != nil {
		t.Fatalf("GetMetadata() error: %v", err)
	}

	if meta.Key != "meta.pdf" {
		t.Errorf("Key = %q, want meta.pdf", meta.Key)
	}
	if meta.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", meta.Size, len(content))
	}
	if meta.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", meta.ContentType)
	}
	if meta.LastModified.IsZero() {
		t.Error("LastModified should not be zero")
	}
}

func TestGetMetadata_UnknownExtension(t *testing.T) {
	s := newTestStorage(t, "")
	ctx := context.Background()

	if _, err := s.Upload(ctx, "blob", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatal("Upload:", err)
	}
	meta, err := s.GetMetadata(ctx, "blob")
	if err != nil {
		t.Fatal("GetMetadata:", err)
	}
	if meta.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q, want application/octet-stream", meta.ContentType)
	}
}

func TestGetMetadata_NotFound(t *testing.T) {
	s := newTestStorage(t, "")

	_, err := s.GetMetadata(context.Background(), "not-here.txt")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMetadata() error = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Ping
// ---------------------------------------------------------------------------

func TestPing(t *testing.T) {
	s := newTestStorage(t, "")
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}

	entries, _ := os.ReadDir(s.basePath)
	if len(entries) != 0 {
		t.Errorf("Ping() left %d entries behind", len(entries))
	}

	if err := os.RemoveAll(s.basePath); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping() = nil after base directory removed")
	}
}
