// Package repo – server-side submission persistence.
//
// Submission ids are client-minted, so the primary key doubles as the
// idempotency key: a retransmitted submission collides on insert and the
// API answers it with a "duplicate" ack instead of storing a second copy.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// CreateSubmission inserts a newly delivered submission in its unprocessed
// state. Returns ErrDuplicate when the id has been seen before.
func CreateSubmission(ctx context.Context, db *gorm.DB, s *domain.Submission) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetSubmission fetches a submission by id, or ErrNotFound.
func GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	var s domain.Submission
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSubmissionStatuses returns the processing state of the given ids.
// Unknown ids are simply absent from the result.
func ListSubmissionStatuses(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Submission
	err := db.WithContext(ctx).
		Select("id", "processed", "processed_at", "processing_error").
		Where("id IN ?", ids).
		Find(&out).Error
	return out, err
}

// MarkSubmissionProcessed flips the processed flag exactly once and stores
// the resolved links. The WHERE processed = false guard makes concurrent
// invocations for the same id collapse: only one caller observes
// RowsAffected == 1; the rest get ErrStaleTransition and treat the
// submission as already handled.
func MarkSubmissionProcessed(ctx context.Context, db *gorm.DB, id string, respondentID string, enumeratorID *string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{
			"processed":        true,
			"processed_at":     now,
			"respondent_id":    respondentID,
			"enumerator_id":    enumeratorID,
			"processing_error": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// RecordProcessingError stores a human-readable failure on an unprocessed
// submission. The processed flag stays false; whether the client may retry
// is decided from the error text, not from extra state.
func RecordProcessingError(ctx context.Context, db *gorm.DB, id, msg string) error {
	return db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ? AND processed = ?", id, false).
		Update("processing_error", msg).Error
}

// HasProcessedSubmission reports whether the respondent already has a
// processed submission for formID, ignoring excludeID (the submission
// currently being ingested).
func HasProcessedSubmission(ctx context.Context, db *gorm.DB, formID, respondentID, excludeID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("form_id = ? AND respondent_id = ? AND processed = ? AND id <> ?",
			formID, respondentID, true, excludeID).
		Count(&n).Error
	return n > 0, err
}

// GetForm fetches a form definition by id, or ErrNotFound.
func GetForm(ctx context.Context, db *gorm.DB, id string) (*domain.Form, error) {
	var f domain.Form
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetUser fetches a registry account by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
