// Package handlers defines the HTTP-layer error codes used across the
// ingestion API. Codes are lowercase snake_case; generic codes mirror common
// HTTP status semantics and clients branch on them programmatically.
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeSubmitFailed     = "submit_failed"
	ErrCodeStatusFailed     = "status_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
