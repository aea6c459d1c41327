// Package ingest – submission ingestion service.
//
// This file implements the idempotent server-side ingestion path: load a
// delivered submission, short-circuit if it was already processed, resolve
// or create the respondent identity keyed by NIN, and mark the submission
// processed exactly once. Identity creation races are resolved by the
// storage uniqueness constraint plus a requery, never by a pre-check.
//
// Observability: ProcessSubmission is OpenTelemetry-instrumented; spans
// carry the submission and form identifiers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// FraudNotifier receives the downstream fraud-detection trigger for
// submissions that carried location coordinates. Delivery is at-least-once:
// the outbox row persists until a Notify call succeeds.
type FraudNotifier interface {
	Notify(ctx context.Context, e *domain.FraudEvent) error
}

// Result reports what ProcessSubmission did.
type Result struct {
	// Skipped is true when the submission was already processed (the
	// designed success path for redundant delivery).
	Skipped bool
	// RespondentID is the linked identity (empty when Skipped).
	RespondentID string
	// Returning is true when an existing respondent was linked rather than
	// created.
	Returning bool
	// Provenance is the channel resolved from the submitter's role.
	Provenance domain.Provenance
}

// Service is the submission ingestion service. Safe for concurrent use; all
// idempotency rests on storage-level guards, not in-memory state.
type Service struct {
	DB    *gorm.DB
	Fraud FraudNotifier // optional
	Log   zerolog.Logger
}

// ProcessSubmission ingests one delivered submission.
//
// Semantics:
//   - Already processed: returns a skipped Result, touching nothing.
//   - Form unknown or lacking a NIN field: configuration error, recorded on
//     the row, not retried.
//   - No NIN in the answers: permanent error, recorded on the row.
//   - Respondent resolution: lookup by NIN, else create; a uniqueness
//     conflict means a concurrent writer won, so requery and link to
//     whichever row now exists.
//   - A returning respondent who already has a processed submission for the
//     form is rejected with the permanent duplicate-NIN error.
//   - Completion marks processed exactly once and, when GPS coordinates are
//     present, writes the fraud-trigger outbox row in the same transaction
//     before attempting delivery.
//
// Storage failures propagate unrecorded so the caller can retry.
func (s *Service) ProcessSubmission(ctx context.Context, id string) (*Result, error) {
	tr := otel.Tracer("ingest/Service")
	ctx, span := tr.Start(ctx, "ProcessSubmission",
		trace.WithAttributes(attribute.String("submission.id", id)),
	)
	defer span.End()

	sub, err := repo.GetSubmission(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("form.id", sub.FormID))

	if sub.Processed {
		s.Log.Debug().Str("submission_id", id).Msg("already processed, skipping")
		return &Result{Skipped: true}, nil
	}

	form, err := repo.GetForm(ctx, s.DB, sub.FormID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.recordError(ctx, id, fmt.Sprintf("configuration error: unknown form %q", sub.FormID))
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	if !HasNINField(form.Schema) {
		s.recordError(ctx, id, fmt.Sprintf("configuration error: form %q schema has no NIN field", sub.FormID))
		return nil, ErrSchemaMissingNIN
	}

	ident := ExtractIdentity(sub.Payload.Answers)
	if ident.NIN == "" {
		s.recordError(ctx, id, domain.ErrTextMissingNIN+" in submission answers")
		return nil, ErrMissingNIN
	}

	provenance := s.resolveSubmitter(ctx, sub.SubmittedBy)

	respondent, returning, err := s.resolveRespondent(ctx, ident, provenance, sub.SubmittedBy)
	if err != nil {
		return nil, err
	}

	if returning {
		dup, err := repo.HasProcessedSubmission(ctx, s.DB, sub.FormID, respondent.ID, sub.ID)
		if err != nil {
			return nil, err
		}
		if dup {
			msg := fmt.Sprintf("%s %s: respondent already has a processed submission for form %q",
				domain.ErrTextDuplicateNIN, ident.NIN, sub.FormID)
			s.recordError(ctx, id, msg)
			return nil, ErrDuplicateSubmission
		}
	}

	var enumeratorID *string
	if provenance == domain.SourceEnumerator {
		uid := sub.SubmittedBy
		enumeratorID = &uid
	}

	var event *domain.FraudEvent
	skipped := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := repo.MarkSubmissionProcessed(ctx, tx, sub.ID, respondent.ID, enumeratorID, time.Now().UTC())
		if errors.Is(err, repo.ErrStaleTransition) {
			// A concurrent invocation won; nothing left to do.
			skipped = true
			return nil
		}
		if err != nil {
			return err
		}
		if sub.Payload.GPS != nil {
			ev := &domain.FraudEvent{
				SubmissionID: sub.ID,
				RespondentID: respondent.ID,
				Lat:          sub.Payload.GPS.Lat,
				Lng:          sub.Payload.GPS.Lng,
			}
			if err := repo.CreateFraudEvent(ctx, tx, ev); err != nil {
				if errors.Is(err, repo.ErrDuplicate) {
					return nil
				}
				return err
			}
			event = ev
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped {
		return &Result{Skipped: true}, nil
	}

	if event != nil {
		s.deliverFraudEvent(ctx, event)
	}

	s.Log.Info().
		Str("submission_id", sub.ID).
		Str("respondent_id", respondent.ID).
		Bool("returning", returning).
		Str("source", string(provenance)).
		Msg("submission processed")

	return &Result{
		RespondentID: respondent.ID,
		Returning:    returning,
		Provenance:   provenance,
	}, nil
}

// resolveRespondent links or creates the identity for the extracted NIN.
// The returned bool reports whether an existing respondent was linked.
func (s *Service) resolveRespondent(ctx context.Context, ident Identity, provenance domain.Provenance, submitterID string) (*domain.Respondent, bool, error) {
	existing, err := repo.FindRespondentByNIN(ctx, s.DB, ident.NIN)
	if err == nil {
		s.Log.Info().Str("respondent_id", existing.ID).Msg("returning respondent linked")
		return existing, true, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}

	registeredBy := submitterID
	r := &domain.Respondent{
		NIN:            ident.NIN,
		GivenName:      ident.GivenName,
		FamilyName:     ident.FamilyName,
		Phone:          ident.Phone,
		Email:          ident.Email,
		Gender:         ident.Gender,
		BirthDate:      ident.BirthDate,
		ConsentContact: ident.ConsentContact,
		ConsentDataUse: ident.ConsentDataUse,
		Source:         provenance,
		RegisteredBy:   &registeredBy,
	}
	err = repo.CreateRespondent(ctx, s.DB, r)
	if err == nil {
		return r, false, nil
	}
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent writer created this NIN between our lookup and
		// insert. The constraint is authoritative: requery and link.
		winner, qerr := repo.FindRespondentByNIN(ctx, s.DB, ident.NIN)
		if qerr != nil {
			return nil, false, qerr
		}
		s.Log.Info().Str("respondent_id", winner.ID).Msg("creation race lost, linked existing respondent")
		return winner, true, nil
	}
	return nil, false, err
}

// resolveSubmitter maps the submitting user's role to a provenance channel.
// A failed lookup degrades to public rather than failing ingestion.
func (s *Service) resolveSubmitter(ctx context.Context, userID string) domain.Provenance {
	if userID == "" {
		return domain.SourcePublic
	}
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.Log.Warn().Err(err).Str("user_id", userID).Msg("submitter lookup failed, defaulting to public")
		}
		return domain.SourcePublic
	}
	return resolveProvenance(u.Role)
}

// recordError best-effort persists a processing error on the submission row.
func (s *Service) recordError(ctx context.Context, id, msg string) {
	if err := repo.RecordProcessingError(ctx, s.DB, id, msg); err != nil {
		s.Log.Warn().Err(err).Str("submission_id", id).Msg("recording processing error failed")
	}
}

// deliverFraudEvent attempts one delivery of a freshly written outbox row.
// Failures leave the row undelivered for DeliverPendingFraudEvents.
func (s *Service) deliverFraudEvent(ctx context.Context, e *domain.FraudEvent) {
	if s.Fraud == nil {
		return
	}
	if err := s.Fraud.Notify(ctx, e); err != nil {
		s.Log.Warn().Err(err).Str("submission_id", e.SubmissionID).Msg("fraud trigger delivery failed, left in outbox")
		return
	}
	if err := repo.MarkFraudEventDelivered(ctx, s.DB, e.ID, time.Now().UTC()); err != nil {
		s.Log.Warn().Err(err).Str("event_id", e.ID).Msg("marking fraud event delivered failed")
	}
}

// DeliverPendingFraudEvents re-attempts delivery of undelivered outbox rows,
// oldest first. Called periodically (or at startup) to close the crash
// window between marking a submission processed and emitting its trigger.
func (s *Service) DeliverPendingFraudEvents(ctx context.Context, limit int) (int, error) {
	if s.Fraud == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 100
	}
	events, err := repo.ListUndeliveredFraudEvents(ctx, s.DB, limit)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for i := range events {
		e := &events[i]
		if err := s.Fraud.Notify(ctx, e); err != nil {
			s.Log.Warn().Err(err).Str("event_id", e.ID).Msg("fraud trigger redelivery failed")
			continue
		}
		if err := repo.MarkFraudEventDelivered(ctx, s.DB, e.ID, time.Now().UTC()); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
