// Package media serves the upload proxy and the stable file URLs it hands out.
package media

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/disaster-training/training-registry/internal/api/respond"
	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/middleware"
	"github.com/disaster-training/training-registry/internal/services"
)

// multipartOverhead is allowed on top of the file bytes for headers and fields
const multipartOverhead = 1 << 20

// Service stores and serves uploaded files
type Service interface {
	Upload(ctx context.Context, f services.FileUpload) (*services.UploadedFile, error)
	UploadMany(ctx context.Context, files []services.FileUpload) ([]*services.UploadedFile, error)
	Fetch(ctx context.Context, key string) (*services.StoredFile, error)
	MaxFiles() int
	MaxFileSize() int64
}

// Handlers serves /api/upload and /api/files
type Handlers struct {
	media Service
}

// NewHandlers creates media handlers
func NewHandlers(media Service) *Handlers {
	return &Handlers{media: media}
}

// UploadSingle stores the "file" part of a multipart request
// POST /api/upload/single
func (h *Handlers) UploadSingle(c *gin.Context) {
	form, ok := h.readForm(c, 1)
	if !ok {
		return
	}
	parts := form.File["file"]
	if len(parts) != 1 {
		respond.Error(c, apperr.Validation("No file uploaded", map[string]string{"file": "exactly one file is required"}))
		return
	}

	file, err := h.media.Upload(c.Request.Context(), fileUpload(parts[0]))
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "upload.created", "upload", file.Key)
	c.JSON(http.StatusCreated, gin.H{
		"message": "File uploaded successfully",
		"file":    file,
	})
}

// UploadMultiple stores every "files" part; all succeed or none are kept
// POST /api/upload/multiple
func (h *Handlers) UploadMultiple(c *gin.Context) {
	form, ok := h.readForm(c, h.media.MaxFiles())
	if !ok {
		return
	}
	parts := form.File["files"]

	uploads := make([]services.FileUpload, len(parts))
	for i, fh := range parts {
		uploads[i] = fileUpload(fh)
	}
	files, err := h.media.UploadMany(c.Request.Context(), uploads)
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "upload.created", "upload", "")
	c.JSON(http.StatusCreated, gin.H{
		"message": "Files uploaded successfully",
		"files":   files,
	})
}

// Serve redirects to a signed URL or streams the stored file
// GET /api/files/*path
func (h *Handlers) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("path"), "/")
	file, err := h.media.Fetch(c.Request.Context(), key)
	if err != nil {
		respond.Error(c, err)
		return
	}

	if file.RedirectURL != "" {
		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusFound, file.RedirectURL)
		return
	}

	defer file.Body.Close()
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.DataFromReader(http.StatusOK, file.Meta.Size, file.Meta.ContentType, file.Body, nil)
}

// readForm bounds the body to maxFiles full-size files and parses it
func (h *Handlers) readForm(c *gin.Context, maxFiles int) (*multipart.Form, bool) {
	limit := int64(maxFiles)*h.media.MaxFileSize() + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.BadRequest(c, "Upload is too large")
			return nil, false
		}
		respond.BadRequest(c, "Expected a multipart/form-data body")
		return nil, false
	}
	return form, true
}

func fileUpload(fh *multipart.FileHeader) services.FileUpload {
	return services.FileUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open:     func() (io.ReadCloser, error) { return fh.Open() },
	}
}
