package sync

import (
	"context"
	"testing"
	"time"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

func TestProject_StatePriority(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		online bool
		want   OverallState
	}{
		{"empty queue outranks offline", Counts{}, false, StateEmpty},
		{"offline outranks activity", Counts{Syncing: 1, Failed: 1}, false, StateOffline},
		{"syncing outranks attention", Counts{Pending: 1, Syncing: 1, Failed: 1}, true, StateSyncing},
		{"transient failures need attention", Counts{Failed: 1, Synced: 1}, true, StateAttention},
		{"all done", Counts{Synced: 2}, true, StateSynced},
		{"pending alone reads as synced", Counts{Pending: 1, Synced: 1}, true, StateSynced},
		{"rejected alone does not demand attention", Counts{Rejected: 1, Synced: 1}, true, StateSynced},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Project(tc.counts, tc.online)
			if got != tc.want {
				t.Fatalf("Project(%+v, %v) = %q, want %q", tc.counts, tc.online, got, tc.want)
			}
		})
	}
}

func TestStatusProjector_SnapshotReadsQueue(t *testing.T) {
	db := newSyncDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue := func(id string) {
		t.Helper()
		if err := repo.EnqueueSubmission(ctx, db, &domain.QueuedSubmission{ID: id, FormID: "f1", UserID: "u1"}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	failWith := func(id, errText string) {
		t.Helper()
		enqueue(id)
		if err := repo.MarkQueueSyncing(ctx, db, id, "u1", now); err != nil {
			t.Fatalf("claim %s: %v", id, err)
		}
		if err := repo.MarkQueueFailed(ctx, db, id, "u1", errText); err != nil {
			t.Fatalf("fail %s: %v", id, err)
		}
	}

	enqueue("pending")

	enqueue("done")
	if err := repo.MarkQueueSyncing(ctx, db, "done", "u1", now); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkQueueSynced(ctx, db, "done", "u1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	failWith("broken", "http 503")
	failWith("conflict", domain.ErrTextDuplicateNIN+" 61961438053")

	// Another user's items must not leak into the projection.
	if err := repo.EnqueueSubmission(ctx, db, &domain.QueuedSubmission{ID: "theirs", FormID: "f1", UserID: "u2"}); err != nil {
		t.Fatalf("enqueue theirs: %v", err)
	}

	net := &fakeNet{}
	net.set(true)
	p := &StatusProjector{DB: db, Net: net}

	state, counts, err := p.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if state != StateAttention {
		t.Fatalf("state = %q, want %q", state, StateAttention)
	}
	if want := (Counts{Pending: 1, Failed: 1, Synced: 1, Rejected: 1}); counts != want {
		t.Fatalf("counts mismatch: got %+v want %+v", counts, want)
	}

	net.set(false)
	state, _, err = p.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("Snapshot offline: %v", err)
	}
	if state != StateOffline {
		t.Fatalf("offline state = %q, want %q", state, StateOffline)
	}
}

func TestStatusProjector_RejectedAloneReadsSynced(t *testing.T) {
	db := newSyncDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.EnqueueSubmission(ctx, db, &domain.QueuedSubmission{ID: "conflict", FormID: "f1", UserID: "u1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.MarkQueueSyncing(ctx, db, "conflict", "u1", now); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkQueueFailed(ctx, db, "conflict", "u1", domain.ErrTextDuplicateNIN+" 61961438053"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	p := &StatusProjector{DB: db}
	state, counts, err := p.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if state != StateSynced {
		t.Fatalf("state = %q, want %q", state, StateSynced)
	}
	if counts.Rejected != 1 || counts.Failed != 0 {
		t.Fatalf("permanent conflict misclassified: %+v", counts)
	}
}

func TestStatusProjector_NilConnectivityAssumesOnline(t *testing.T) {
	db := newSyncDB(t)
	p := &StatusProjector{DB: db}
	state, _, err := p.Snapshot(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if state != StateEmpty {
		t.Fatalf("state = %q, want %q", state, StateEmpty)
	}
}
