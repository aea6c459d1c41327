// Package repo – submission queue persistence.
//
// Repository functions for QueuedSubmission. Every mutation here is an
// atomic single-record read-modify-write: guarded UPDATEs with the legal
// source states in the WHERE clause, checked via RowsAffected. That keeps
// each item's status transitions monotonic without cross-record
// transactions, even when updates interleave.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// EnqueueSubmission inserts a queue item. The id must be the originating
// draft's id; inserting the same id twice returns ErrDuplicate.
func EnqueueSubmission(ctx context.Context, db *gorm.DB, q *domain.QueuedSubmission) error {
	if q.Status == "" {
		q.Status = domain.QueuePending
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListQueue returns the full queue snapshot for userID, oldest first.
func ListQueue(ctx context.Context, db *gorm.DB, userID string) ([]domain.QueuedSubmission, error) {
	var out []domain.QueuedSubmission
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListQueueByStatus returns userID's queue items in the given status,
// oldest first.
func ListQueueByStatus(ctx context.Context, db *gorm.DB, userID string, status domain.QueueStatus) ([]domain.QueuedSubmission, error) {
	var out []domain.QueuedSubmission
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, status).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// GetQueueItem fetches a single queue item by id and owner.
func GetQueueItem(ctx context.Context, db *gorm.DB, id, userID string) (*domain.QueuedSubmission, error) {
	var q domain.QueuedSubmission
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// MarkQueueSyncing claims an item for one sync attempt, stamping the attempt
// time. Only pending and failed items can be claimed; anything else returns
// ErrStaleTransition.
func MarkQueueSyncing(ctx context.Context, db *gorm.DB, id, userID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.QueuedSubmission{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, userID,
			[]domain.QueueStatus{domain.QueuePending, domain.QueueFailed}).
		Updates(map[string]any{
			"status":          domain.QueueSyncing,
			"last_attempt_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkQueueSynced completes a successful attempt. Both the "queued" and the
// "duplicate" server acks land here. Only a syncing item can become synced.
func MarkQueueSynced(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.QueuedSubmission{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.QueueSyncing).
		Updates(map[string]any{
			"status":     domain.QueueSynced,
			"last_error": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkQueueFailed records a failed attempt: increments the retry count and
// stores the error text. Only a syncing item can fail.
func MarkQueueFailed(ctx context.Context, db *gorm.DB, id, userID, errText string) error {
	res := db.WithContext(ctx).
		Model(&domain.QueuedSubmission{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.QueueSyncing).
		Updates(map[string]any{
			"status":      domain.QueueFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  errText,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkQueueRejected force-fails an item on a permanent server rejection
// discovered by outcome polling. The retry count is pinned at the ceiling so
// the item never re-enters automatic retry, and the permanent error text is
// recorded. This is the one sanctioned exit from synced.
func MarkQueueRejected(ctx context.Context, db *gorm.DB, id, userID, errText string, ceiling int) error {
	res := db.WithContext(ctx).
		Model(&domain.QueuedSubmission{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"status":      domain.QueueFailed,
			"retry_count": ceiling,
			"last_error":  errText,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetRetryableFailures returns every transiently-failed item for userID to
// pending with a fresh retry budget. Items whose recorded error belongs to
// the permanent class are left untouched. Returns the ids that were reset.
func ResetRetryableFailures(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	failed, err := ListQueueByStatus(ctx, db, userID, domain.QueueFailed)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(failed))
	for _, it := range failed {
		if it.LastError != nil && domain.IsPermanentSyncError(*it.LastError) {
			continue
		}
		ids = append(ids, it.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = db.WithContext(ctx).
		Model(&domain.QueuedSubmission{}).
		Where("id IN ? AND user_id = ? AND status = ?", ids, userID, domain.QueueFailed).
		Updates(map[string]any{
			"status":      domain.QueuePending,
			"retry_count": 0,
			"last_error":  nil,
		}).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
