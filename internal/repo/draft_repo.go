// Package repo – draft persistence.
//
// Repository functions for the Draft model. All functions are context-aware
// and accept a *gorm.DB handle, making them safe for use within transactions.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and guarded status transitions.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// CreateDraft inserts a new draft row. The caller supplies the identifier
// (the draft manager mints time-sortable ids so the same value can follow
// the response into the queue and onto the server).
func CreateDraft(ctx context.Context, db *gorm.DB, d *domain.Draft) error {
	if d.Status == "" {
		d.Status = domain.DraftInProgress
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateDraftProgress overwrites the answers and resume cursor of an
// in-progress draft owned by userID. Returns ErrNotFound when the draft is
// missing, owned by someone else, or no longer in progress.
func UpdateDraftProgress(ctx context.Context, db *gorm.DB, id, userID string, answers domain.AnswerSet, cursor int) error {
	res := db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.DraftInProgress).
		// Map-form Updates bypasses the json serializer on Answers, so use a
		// struct with an explicit Select to write both columns unconditionally.
		Select("answers", "cursor").
		Updates(&domain.Draft{Answers: answers, Cursor: cursor})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestInProgressDraft returns the most recently touched in-progress draft
// for (formID, userID), or ErrNotFound when there is none.
func LatestInProgressDraft(ctx context.Context, db *gorm.DB, formID, userID string) (*domain.Draft, error) {
	var d domain.Draft
	err := db.WithContext(ctx).
		Where("form_id = ? AND user_id = ? AND status = ?", formID, userID, domain.DraftInProgress).
		Order("updated_at desc").
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDraft fetches a draft by id and owner.
func GetDraft(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Draft, error) {
	var d domain.Draft
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkDraftCompleted transitions an in-progress draft to completed.
// Returns ErrStaleTransition when the draft is not in progress.
func MarkDraftCompleted(ctx context.Context, db *gorm.DB, id, userID string) error {
	return transitionDraft(ctx, db, id, userID, domain.DraftInProgress, domain.DraftCompleted)
}

// MarkDraftSubmitted transitions a completed draft to submitted.
func MarkDraftSubmitted(ctx context.Context, db *gorm.DB, id, userID string) error {
	return transitionDraft(ctx, db, id, userID, domain.DraftCompleted, domain.DraftSubmitted)
}

func transitionDraft(ctx context.Context, db *gorm.DB, id, userID string, from, to domain.DraftStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}
