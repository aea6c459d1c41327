// Package repo – fraud-trigger outbox persistence.
//
// The outbox row is written in the same transaction that marks a submission
// processed, so trigger emission can be retried after a crash without ever
// re-running ingestion. The unique index on submission_id keeps emission
// at-most-once-per-submission on the storage side; delivery itself is
// at-least-once.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// CreateFraudEvent inserts an undelivered outbox row. A second insert for
// the same submission returns ErrDuplicate.
func CreateFraudEvent(ctx context.Context, db *gorm.DB, e *domain.FraudEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListUndeliveredFraudEvents returns outbox rows still awaiting delivery,
// oldest first, capped at limit.
func ListUndeliveredFraudEvents(ctx context.Context, db *gorm.DB, limit int) ([]domain.FraudEvent, error) {
	var out []domain.FraudEvent
	err := db.WithContext(ctx).
		Where("delivered = ?", false).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkFraudEventDelivered records a successful delivery. Idempotent: a row
// already marked delivered is left alone.
func MarkFraudEventDelivered(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.FraudEvent{}).
		Where("id = ? AND delivered = ?", id, false).
		Updates(map[string]any{
			"delivered":    true,
			"delivered_at": now,
		}).Error
}
