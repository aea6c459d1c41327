// Package ingest defines the server-side submission ingestion service.
// This file centralizes service-level error values so they can be
// consistently returned by the service and checked by callers.
package ingest

import "errors"

var (
	// ErrSubmissionNotFound indicates the submission id is unknown.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrFormNotFound indicates the submission references a form the
	// registry does not know. A configuration error: not retried, requires
	// operator intervention.
	ErrFormNotFound = errors.New("form not found")

	// ErrSchemaMissingNIN indicates the form schema has no identity field.
	// A submission against such a form is a configuration error, not a
	// transient failure.
	ErrSchemaMissingNIN = errors.New("form schema has no NIN field")

	// ErrMissingNIN indicates the answer payload carried no NIN value after
	// extraction. Permanent: the payload can never become processable.
	ErrMissingNIN = errors.New("missing NIN in submission answers")

	// ErrDuplicateSubmission indicates the resolved respondent already has a
	// processed submission for this form. Permanent: reported to the client
	// through the polling contract and never retried.
	ErrDuplicateSubmission = errors.New("duplicate submission for respondent")
)
