// Package respond writes JSON error responses for the handler packages.
package respond

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/validation"
)

// Error maps err to a status code and writes {"error": message}, plus
// "details" for validation failures. The cause of internal and upstream
// failures is logged, never returned.
func Error(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if fields, ok := validation.Details(err); ok {
			ae = apperr.Validation("Invalid request body", fields)
		} else {
			ae = apperr.Internal(err)
		}
	}

	status := ae.Kind.HTTPStatus()
	if ae.Kind == apperr.KindInternal || ae.Kind == apperr.KindUpstream {
		slog.Error("request failed",
			"kind", ae.Kind.String(),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err,
		)
	}

	body := gin.H{"error": ae.Message}
	if ae.Kind == apperr.KindValidation && len(ae.Fields) > 0 {
		body["details"] = ae.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest reports a body or query that could not be decoded
func BadRequest(c *gin.Context, message string) {
	Error(c, apperr.Validation(message, nil))
}

// BindError reports a failed ShouldBindJSON: binding tag failures carry
// per-field details, anything else is a malformed body.
func BindError(c *gin.Context, err error) {
	if fields, ok := validation.Details(err); ok {
		Error(c, apperr.Validation("Invalid request body", fields))
		return
	}
	BadRequest(c, "Invalid request body")
}

// PageParams reads ?page= and ?limit=; missing or malformed values are zero
// and get defaulted by the services
func PageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	limit, _ = strconv.Atoi(c.Query("limit"))
	return page, limit
}

// NoContent writes an empty 204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
