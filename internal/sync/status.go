// Package sync – read-side status projection.
//
// The projector is a pure aggregation over the queue counts; it never
// mutates anything. UI badges and banners consume the derived overall state
// and the per-status breakdown. Rejected items (permanent identity
// conflicts) are counted separately from ordinary failures and must never be
// conflated with them; that classification happens once, in repo.QueueStats.
package sync

import (
	"context"

	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// OverallState is the single sync-health value shown to the user.
type OverallState string

// Overall states, in priority order: an empty queue outranks everything,
// then offline, then an active attempt, then transient failures needing
// attention, and finally fully synced.
const (
	StateEmpty     OverallState = "empty"
	StateOffline   OverallState = "offline"
	StateSyncing   OverallState = "syncing"
	StateAttention OverallState = "attention"
	StateSynced    OverallState = "synced"
)

// Counts is the per-status breakdown exposed alongside the overall state.
type Counts struct {
	Pending  int `json:"pending"`
	Syncing  int `json:"syncing"`
	Failed   int `json:"failed"`
	Synced   int `json:"synced"`
	Rejected int `json:"rejected"`
}

func (c Counts) total() int {
	return c.Pending + c.Syncing + c.Failed + c.Synced + c.Rejected
}

// Project derives the overall state from a queue breakdown plus the
// connectivity flag. Rejected items never demand attention: their conflict
// is permanent and a banner cannot fix it.
func Project(c Counts, online bool) OverallState {
	switch {
	case c.total() == 0:
		return StateEmpty
	case !online:
		return StateOffline
	case c.Syncing > 0:
		return StateSyncing
	case c.Failed > 0:
		return StateAttention
	default:
		return StateSynced
	}
}

// StatusProjector reads the queue for a user and projects it. It is the
// UI-facing wrapper around repo.QueueStats and Project.
type StatusProjector struct {
	DB  *gorm.DB
	Net Connectivity
}

// Snapshot aggregates the user's queue and returns the projected state and
// counts.
func (p *StatusProjector) Snapshot(ctx context.Context, userID string) (OverallState, Counts, error) {
	qc, err := repo.QueueStats(ctx, p.DB, userID)
	if err != nil {
		return "", Counts{}, err
	}
	c := Counts{
		Pending:  qc.Pending,
		Syncing:  qc.Syncing,
		Failed:   qc.Failed,
		Synced:   qc.Synced,
		Rejected: qc.Rejected,
	}
	online := p.Net == nil || p.Net.Online()
	return Project(c, online), c, nil
}
