package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/config"
	"github.com/disaster-training/training-registry/internal/storage"
	"github.com/disaster-training/training-registry/internal/telemetry"
)

// sniffLen is how much of a file http.DetectContentType looks at
const sniffLen = 512

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// FileUpload is one file of a multipart request. Open may be called more
// than once.
type FileUpload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// UploadedFile is what clients store in photos, attendanceSheet and documents
type UploadedFile struct {
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// StoredFile is a file ready to be served: either a redirect target or a body
type StoredFile struct {
	RedirectURL string
	Body        io.ReadCloser
	Meta        *storage.FileMetadata
}

// MediaService is the upload proxy in front of the configured storage backend
type MediaService struct {
	store       storage.Storage
	baseURL     string
	prefix      string
	maxFiles    int
	maxFileSize int64
	allowed     map[string]bool
	urlTTL      time.Duration
	now         func() time.Time
}

// NewMediaService creates a MediaService bounded by the uploads config
func NewMediaService(store storage.Storage, baseURL string, cfg config.UploadsConfig) *MediaService {
	allowed := make(map[string]bool, len(cfg.AllowedContentTypes))
	for _, ct := range cfg.AllowedContentTypes {
		allowed[strings.ToLower(ct)] = true
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MediaService{
		store:       store,
		baseURL:     baseURL,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		maxFiles:    cfg.MaxFiles,
		maxFileSize: cfg.MaxFileSize,
		allowed:     allowed,
		urlTTL:      ttl,
		now:         time.Now,
	}
}

// MaxFiles is the batch limit for UploadMany
func (s *MediaService) MaxFiles() int { return s.maxFiles }

// MaxFileSize is the per-file limit in bytes
func (s *MediaService) MaxFileSize() int64 { return s.maxFileSize }

// Upload stores a single file
func (s *MediaService) Upload(ctx context.Context, f FileUpload) (*UploadedFile, error) {
	files, err := s.UploadMany(ctx, []FileUpload{f})
	if err != nil {
		return nil, err
	}
	return files[0], nil
}

// UploadMany validates every file, then uploads them concurrently. Either all
// files are stored or none are: when one upload fails the ones that made it
// are deleted again.
func (s *MediaService) UploadMany(ctx context.Context, files []FileUpload) ([]*UploadedFile, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("No files uploaded", map[string]string{"files": "at least one file is required"})
	}
	if len(files) > s.maxFiles {
		telemetry.UploadsTotal.WithLabelValues("rejected").Add(float64(len(files)))
		return nil, apperr.Validation("Too many files", map[string]string{
			"files": fmt.Sprintf("at most %d files per request", s.maxFiles),
		})
	}

	types := make([]string, len(files))
	fields := map[string]string{}
	for i, f := range files {
		ct, msg, err := s.inspect(f)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if msg != "" {
			fields[fieldName(i, f.Filename)] = msg
			continue
		}
		types[i] = ct
	}
	if len(fields) > 0 {
		telemetry.UploadsTotal.WithLabelValues("rejected").Add(float64(len(files)))
		return nil, apperr.Validation("Invalid upload", fields)
	}

	results := make([]*UploadedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			uploaded, err := s.put(gctx, f, types[i])
			if err != nil {
				return fmt.Errorf("%s: %w", f.Filename, err)
			}
			results[i] = uploaded
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(context.WithoutCancel(ctx), results)
		telemetry.UploadsTotal.WithLabelValues("error").Add(float64(len(files)))
		return nil, apperr.Upstream("Upload failed", err)
	}

	for _, r := range results {
		telemetry.UploadsTotal.WithLabelValues("success").Inc()
		telemetry.UploadBytesTotal.Add(float64(r.Size))
	}
	return results, nil
}

// inspect checks size and sniffs the content type. A non-empty message means
// the file is rejected.
func (s *MediaService) inspect(f FileUpload) (string, string, error) {
	if f.Size <= 0 {
		return "", "file is empty", nil
	}
	if f.Size > s.maxFileSize {
		return "", fmt.Sprintf("file exceeds %d bytes", s.maxFileSize), nil
	}

	rc, err := f.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open %s: %w", f.Filename, err)
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("failed to read %s: %w", f.Filename, err)
	}

	ct := http.DetectContentType(head[:n])
	if !s.allowed[strings.ToLower(ct)] {
		return "", fmt.Sprintf("content type %s is not allowed", ct), nil
	}
	return ct, "", nil
}

func (s *MediaService) put(ctx context.Context, f FileUpload, contentType string) (*UploadedFile, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	now := s.now().UTC()
	key := s.objectKey(now, f.Filename, contentType)

	// the declared size can lie; never store more than the limit
	body := io.LimitReader(rc, s.maxFileSize+1)
	res, err := s.store.Upload(ctx, key, body, f.Size, contentType)
	if err != nil {
		return nil, err
	}
	if res.Size > s.maxFileSize {
		_ = s.store.Delete(context.WithoutCancel(ctx), key)
		return nil, fmt.Errorf("file exceeds %d bytes", s.maxFileSize)
	}

	return &UploadedFile{
		Filename:    path.Base(strings.ReplaceAll(f.Filename, "\\", "/")),
		URL:         storage.PublicURL(s.baseURL, key),
		Key:         key,
		Size:        res.Size,
		ContentType: contentType,
		UploadedAt:  now,
	}, nil
}

// discard deletes the files of a failed batch
func (s *MediaService) discard(ctx context.Context, results []*UploadedFile) {
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := s.store.Delete(ctx, r.Key); err != nil {
			slog.Warn("failed to remove orphaned upload", "key", r.Key, "error", err)
		}
	}
}

// objectKey builds <prefix>/<yyyy>/<mm>/<uuid><ext>
func (s *MediaService) objectKey(at time.Time, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if !extPattern.MatchString(ext) {
		ext = ""
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	key := fmt.Sprintf("%04d/%02d/%s%s", at.Year(), at.Month(), uuid.NewString(), ext)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

// Fetch resolves a stored file for serving. Backends that sign URLs yield a
// redirect; the rest yield an open body the caller must close.
func (s *MediaService) Fetch(ctx context.Context, key string) (*StoredFile, error) {
	clean, err := storage.CleanKey(key)
	if err != nil {
		return nil, apperr.NotFound("File not found")
	}

	if s.store.SignsURLs() {
		u, err := s.store.GetURL(ctx, clean, s.urlTTL)
		if err != nil {
			return nil, s.fetchError(err)
		}
		return &StoredFile{RedirectURL: u}, nil
	}

	meta, err := s.store.GetMetadata(ctx, clean)
	if err != nil {
		return nil, s.fetchError(err)
	}
	body, err := s.store.Download(ctx, clean)
	if err != nil {
		return nil, s.fetchError(err)
	}
	return &StoredFile{Body: body, Meta: meta}, nil
}

func (s *MediaService) fetchError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("File not found")
	}
	return apperr.Upstream("Failed to read file", err)
}

// fieldName keys validation details by position and name
func fieldName(i int, filename string) string {
	if filename == "" {
		return fmt.Sprintf("files[%d]", i)
	}
	return fmt.Sprintf("files[%d] (%s)", i, path.Base(filename))
}
