package gcs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/disaster-training/training-registry/internal/config"
	appstorage "github.com/disaster-training/training-registry/internal/storage"
)

// ---------------------------------------------------------------------------
// New() constructor validation (no GCS connection required)
// ---------------------------------------------------------------------------

func TestNew_MissingBucket(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket: "",
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("New() = nil error, want error for missing bucket")
	}
}

func TestNew_ServiceAccountNoCredentials(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:          "my-bucket",
		AuthMethod:      "service_account",
		CredentialsFile: "",
		CredentialsJSON: "",
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("New() = nil error, want error for service_account without credentials")
	}
}

func TestNew_ServiceAccountWithCredentialsJSON(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:          "my-bucket",
		AuthMethod:      "service_account",
		CredentialsJSON: `{"type":"service_account"}`, // minimal but invalid for actual auth
	}
	// may fail with a credentials error, must not panic
	_, _ = New(cfg)
}

func TestNew_UnsupportedAuthMethod(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:     "my-bucket",
		AuthMethod: "not-a-valid-method",
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("New() = nil error, want error for unsupported auth_method")
	}
}

func TestNew_EmulatorRequiresEndpoint(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:     "my-bucket",
		AuthMethod: "emulator",
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("New() = nil error, want error for emulator auth without endpoint")
	}
}

// ---------------------------------------------------------------------------
// JSON API operations against a fake endpoint
// ---------------------------------------------------------------------------

// newEmulatedStorage serves bucket and object metadata for "media" and a
// single object "trainings/photo.jpg".
func newEmulatedStorage(t *testing.T) *GCSStorage {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/storage/v1/b/media":
			w.Write([]byte(`{"kind":"storage#bucket","name":"media"}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/storage/v1/b/media/o/"):
			name := strings.TrimPrefix(r.URL.Path, "/storage/v1/b/media/o/")
			if name != "trainings/photo.jpg" {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
				return
			}
			w.Write([]byte(`{"kind":"storage#object","name":"trainings/photo.jpg","bucket":"media","size":"2048","contentType":"image/jpeg","updated":"2026-03-01T10:00:00Z"}`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.GCSStorageConfig{
		Bucket:     "media",
		AuthMethod: "emulator",
		Endpoint:   srv.URL + "/storage/v1/",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGCS_PingAndMetadata(t *testing.T) {
	s := newEmulatedStorage(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}

	meta, err := s.GetMetadata(ctx, "trainings/photo.jpg")
	if err != nil {
		t.Fatalf("GetMetadata() error: %v", err)
	}
	if meta.Size != 2048 || meta.ContentType != "image/jpeg" {
		t.Errorf("GetMetadata() = %+v", meta)
	}

	ok, err := s.Exists(ctx, "trainings/photo.jpg")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
	}
	if !s.SignsURLs() {
		t.Error("SignsURLs() = false for GCS")
	}
}

func TestGCS_MissingObject(t *testing.T) {
	s := newEmulatedStorage(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "missing.pdf")
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v; want false, nil", ok, err)
	}

	if _, err := s.GetMetadata(ctx, "missing.pdf"); !errors.Is(err, appstorage.ErrNotFound) {
		t.Errorf("GetMetadata() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetURL(ctx, "missing.pdf", 0); !errors.Is(err, appstorage.ErrNotFound) {
		t.Errorf("GetURL() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing.pdf"); err != nil {
		t.Errorf("Delete() of missing object = %v, want nil", err)
	}
}

func TestGCS_PingMissingBucket(t *testing.T) {
	s := newEmulatedStorage(t)
	s.bucket = "other"

	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping() = nil for missing bucket")
	}
}
