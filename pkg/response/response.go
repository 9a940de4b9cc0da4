package response

import (
	"errors"
	"net/http"
	"time"

	"wallet-service/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the per-request correlation id.
const RequestIDKey = "request_id"

// CodeUnknown is reported for errors that carry no AppError.
const CodeUnknown = "SYS_000"

// concurrentRetryAfter is the Retry-After hint, in seconds, sent with a
// lost lock race. The rate limiter sets its own value.
const concurrentRetryAfter = "1"

// Meta is flattened into every envelope.
type Meta struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data any `json:"data"`
	Meta
}

// ListResponse wraps a collection. Data is never null.
type ListResponse struct {
	Data  any `json:"data"`
	Count int `json:"count"`
	Meta
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Meta
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data, Meta: meta(c)})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse{Data: data, Meta: meta(c)})
}

// List sends a 200 response with items and their count.
func List[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, ListResponse{Data: items, Count: len(items), Meta: meta(c)})
}

// Error writes err as an error envelope. An *apperror.AppError anywhere in the
// chain decides the status and code; anything else is an opaque 500. The
// cause is attached to the gin context for the request logger.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			ErrorCode: CodeUnknown,
			Message:   "Internal server error",
			Meta:      meta(c),
		})
		return
	}

	if appErr.Code == apperror.CodeConcurrentUpdate && c.Writer.Header().Get("Retry-After") == "" {
		c.Header("Retry-After", concurrentRetryAfter)
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		Meta:      meta(c),
	})
}

func meta(c *gin.Context) Meta {
	return Meta{
		RequestID: requestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// requestID returns the id set by the RequestID middleware, or a fresh one.
func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return uuid.New().String()
}
