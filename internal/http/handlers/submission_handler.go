// Submission HTTP handlers.
//
// This file exposes the ingestion API consumed by field clients:
//   - POST /submissions        (deliver one submission; idempotent by id)
//   - POST /submissions/status (batch processing-outcome lookup)
//
// Handlers are transport-thin: they validate input, persist through the repo
// layer, and hand processing to the ingestion service. Delivery and
// processing are decoupled so the client gets its ack without waiting for
// identity resolution.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/http/middleware"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// Ingestor processes delivered submissions. Implementations must be safe for
// concurrent use and must honor the provided context.
type Ingestor interface {
	ProcessSubmission(ctx context.Context, id string) error
}

// Handlers groups the ingestion API endpoints.
type Handlers struct {
	db     *gorm.DB
	ingest Ingestor

	// SyncProcess makes ProcessSubmission run before the ack is written
	// instead of in a background goroutine. Tests set it for determinism.
	SyncProcess bool
}

// New constructs a Handlers bound to the registry store and the ingestion
// service.
func New(db *gorm.DB, ingest Ingestor) *Handlers {
	return &Handlers{db: db, ingest: ingest}
}

// submitterID extracts the authenticated account id from the X-User-ID
// header set by field clients. Empty means an anonymous public submission.
func submitterID(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	return c.GetHeader("X-User-ID")
}

//
// DTOs
//

// SubmitRequest is the JSON payload delivering one submission.
type SubmitRequest struct {
	ID                string           `json:"id" binding:"required,min=1,max=64"`
	FormID            string           `json:"form_id" binding:"required,min=1,max=64"`
	FormVersion       string           `json:"form_version"`
	Responses         domain.AnswerSet `json:"responses" binding:"required"`
	SubmittedAt       time.Time        `json:"submitted_at"`
	GPS               *domain.GeoPoint `json:"gps"`
	CompletionSeconds *int             `json:"completion_time_seconds"`
}

// SubmitResponse is the ack returned for a delivered submission.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "queued" or "duplicate"
}

// StatusRequest is the batch outcome lookup payload.
type StatusRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=100"`
}

// SubmissionOutcome is one entry of the batch outcome lookup response.
type SubmissionOutcome struct {
	Processed       bool   `json:"processed"`
	ProcessingError string `json:"processing_error,omitempty"`
}

//
// Handlers
//

// CreateSubmission accepts one delivered submission.
//
// The submission id is client-minted, so a retransmission collides on the
// primary key and is answered with a 200 "duplicate" ack; a first delivery
// is stored and answered 202 "queued" while processing continues in the
// background.
func (h *Handlers) CreateSubmission(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid submission payload: "+err.Error())
		return
	}

	submittedAt := req.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	sub := &domain.Submission{
		ID:          req.ID,
		FormID:      req.FormID,
		SubmittedBy: submitterID(c),
		Payload: domain.SubmissionPayload{
			Answers:           req.Responses,
			FormVersion:       req.FormVersion,
			SubmittedAt:       submittedAt,
			GPS:               req.GPS,
			CompletionSeconds: req.CompletionSeconds,
		},
	}

	err := repo.CreateSubmission(c.Request.Context(), h.db, sub)
	if errors.Is(err, repo.ErrDuplicate) {
		middleware.ObserveSubmission("duplicate")
		ok(c, http.StatusOK, SubmitResponse{ID: req.ID, Status: "duplicate"})
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, "could not store submission")
		return
	}

	middleware.ObserveSubmission("queued")
	h.dispatch(c, req.ID)
	ok(c, http.StatusAccepted, SubmitResponse{ID: req.ID, Status: "queued"})
}

// dispatch hands a stored submission to the ingestion service. Processing
// errors are recorded on the submission row by the service itself, so the
// handler only logs them.
func (h *Handlers) dispatch(c *gin.Context, id string) {
	lg := middleware.LoggerFrom(c)
	if h.SyncProcess {
		if err := h.ingest.ProcessSubmission(c.Request.Context(), id); err != nil {
			lg.Warn().Err(err).Str("submission_id", id).Msg("submission processing failed")
		}
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.ingest.ProcessSubmission(ctx, id); err != nil {
			lg.Warn().Err(err).Str("submission_id", id).Msg("submission processing failed")
		}
	}()
}

// SubmissionStatus answers a batch outcome lookup. Unknown ids are absent
// from the response map; clients treat absence as "not yet processed".
func (h *Handlers) SubmissionStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid status lookup payload: "+err.Error())
		return
	}

	subs, err := repo.ListSubmissionStatuses(c.Request.Context(), h.db, req.IDs)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, "could not load submission statuses")
		return
	}

	out := make(map[string]SubmissionOutcome, len(subs))
	for _, s := range subs {
		o := SubmissionOutcome{Processed: s.Processed}
		if s.ProcessingError != nil {
			o.ProcessingError = *s.ProcessingError
		}
		out[s.ID] = o
	}
	ok(c, http.StatusOK, out)
}
