// Package handlers provides HTTP handler implementations for the ingestion API.
//
// This file defines the standard response utilities used across all endpoints:
// a structured error envelope with a stable machine-readable `code`, and
// helpers that keep success and failure shapes uniform.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "resource not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obi-nwosu/fieldsync/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
// RequestID echoes the X-Request-ID header so client errors can be correlated
// with server logs.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by router-level handlers
// (NoRoute, NoMethod) to keep error envelopes consistent.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
