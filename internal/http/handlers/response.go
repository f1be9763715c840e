// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers used by every endpoint. Failures
// share one envelope with a stable machine-readable code; successes keep the
// `success: true` flag the device listener and overlay clients check.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "success": false,
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "donation not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/qris-donation-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Always false
	Success bool `json:"success" example:"false"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// ListResponse is the `{success, data, count}` envelope of list endpoints.
type ListResponse[T any] struct {
	Success bool `json:"success" example:"true"`
	Data    []T  `json:"data"`
	Count   int  `json:"count" example:"1"`
}

// DataResponse wraps a single resource.
type DataResponse[T any] struct {
	Success bool `json:"success" example:"true"`
	Data    T    `json:"data"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		Success:   false,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// list writes items in the list envelope. A nil slice is sent as [].
func list[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	ok(c, http.StatusOK, ListResponse[T]{Success: true, Data: items, Count: len(items)})
}

// data writes v in the single-resource envelope.
func data[T any](c *gin.Context, status int, v T) {
	ok(c, status, DataResponse[T]{Success: true, Data: v})
}
