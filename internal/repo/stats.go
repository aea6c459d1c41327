// Package repo – small aggregate queries over the submission queue, used by
// the status projector and UI badges. Context-aware and read-only.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// QueueStatusCounts is a per-status breakdown of one user's queue. Rejected
// isolates permanently-failed items (identity conflicts) from ordinary
// transient failures; Failed never includes them.
type QueueStatusCounts struct {
	Pending  int
	Syncing  int
	Failed   int
	Synced   int
	Rejected int
}

// QueueStats aggregates the queue for userID. The transient/permanent split
// of failed items depends on the recorded error text, so the rows are
// classified in Go rather than in SQL.
func QueueStats(ctx context.Context, db *gorm.DB, userID string) (QueueStatusCounts, error) {
	var counts QueueStatusCounts
	items, err := ListQueue(ctx, db, userID)
	if err != nil {
		return counts, err
	}
	for _, it := range items {
		switch it.Status {
		case domain.QueuePending:
			counts.Pending++
		case domain.QueueSyncing:
			counts.Syncing++
		case domain.QueueSynced:
			counts.Synced++
		case domain.QueueFailed:
			if it.LastError != nil && domain.IsPermanentSyncError(*it.LastError) {
				counts.Rejected++
			} else {
				counts.Failed++
			}
		}
	}
	return counts, nil
}
