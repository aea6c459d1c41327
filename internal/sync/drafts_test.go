package sync

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

func newDraftManager(t *testing.T) (*DraftManager, *gorm.DB, *testClock) {
	t.Helper()
	db := newSyncDB(t)
	clk := newTestClock()
	m := &DraftManager{
		DB:          db,
		Clock:       clk,
		Log:         testLogger(),
		FormID:      "f1",
		FormVersion: "3",
		UserID:      "u1",
	}
	return m, db, clk
}

func TestRecord_DebouncesToSingleWrite(t *testing.T) {
	m, db, clk := newDraftManager(t)
	ctx := context.Background()

	m.Record(domain.AnswerSet{"q1": "first"}, 0)
	m.Record(domain.AnswerSet{"q1": "second"}, 1)
	m.Record(domain.AnswerSet{"q1": "third"}, 2)

	// Nothing is persisted until the debounce window elapses.
	if _, err := repo.LatestInProgressDraft(ctx, db, "f1", "u1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected no draft before debounce fired, got %v", err)
	}

	clk.Fire()

	d, err := repo.LatestInProgressDraft(ctx, db, "f1", "u1")
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if d.Answers["q1"] != "third" || d.Cursor != 2 {
		t.Fatalf("expected only the latest snapshot persisted, got %+v", d)
	}
}

func TestRecord_KeepsOneDraftIDAcrossSnapshots(t *testing.T) {
	m, db, clk := newDraftManager(t)
	ctx := context.Background()

	m.Record(domain.AnswerSet{"q1": "a"}, 0)
	clk.Fire()
	m.Record(domain.AnswerSet{"q1": "b"}, 1)
	clk.Fire()

	var n int64
	if err := db.Model(&domain.Draft{}).Count(&n).Error; err != nil {
		t.Fatalf("count drafts: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one draft row updated in place, got %d", n)
	}
	d, _ := repo.LatestInProgressDraft(ctx, db, "f1", "u1")
	if d.Answers["q1"] != "b" {
		t.Fatalf("second snapshot not persisted: %+v", d)
	}
}

func TestSave_PersistsImmediately(t *testing.T) {
	m, db, _ := newDraftManager(t)
	ctx := context.Background()

	m.Record(domain.AnswerSet{"q1": "typed"}, 4)
	if err := m.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	d, err := repo.LatestInProgressDraft(ctx, db, "f1", "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Answers["q1"] != "typed" || d.Cursor != 4 {
		t.Fatalf("explicit save not persisted: %+v", d)
	}
}

func TestLoad_AdoptsLatestInProgressDraft(t *testing.T) {
	m, db, clk := newDraftManager(t)
	ctx := context.Background()

	// First session writes a draft.
	m.Record(domain.AnswerSet{"q1": "resume me", "nin": "61961438053"}, 7)
	clk.Fire()
	firstID := m.draftID

	// Fresh manager (new app session) resumes it.
	m2 := &DraftManager{DB: db, Clock: clk, Log: testLogger(), FormID: "f1", FormVersion: "3", UserID: "u1"}
	got, err := m2.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DraftID != firstID || got.Cursor != 7 || got.Answers["q1"] != "resume me" {
		t.Fatalf("unexpected resume data: %+v", got)
	}

	// Subsequent edits in the resumed session update the same row.
	m2.Record(domain.AnswerSet{"q1": "edited"}, 8)
	clk.Fire()
	d, _ := repo.GetDraft(ctx, db, firstID, "u1")
	if d.Answers["q1"] != "edited" {
		t.Fatalf("resumed edit lost: %+v", d)
	}
}

func TestLoad_NoDraft(t *testing.T) {
	m, _, _ := newDraftManager(t)
	if _, err := m.Load(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
}

func TestComplete_QueuesSubmissionWithDraftID(t *testing.T) {
	m, db, clk := newDraftManager(t)
	ctx := context.Background()

	m.Record(domain.AnswerSet{"nin": "61961438053"}, 1)
	clk.Fire()

	secs := 95
	q, err := m.Complete(ctx, &domain.GeoPoint{Lat: 6.52, Lng: 3.37}, &secs)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// The queue item carries the draft's own identifier.
	d, _ := repo.GetDraft(ctx, db, q.ID, "u1")
	if d == nil || d.Status != domain.DraftSubmitted {
		t.Fatalf("expected submitted draft with same id, got %+v", d)
	}
	it, err := repo.GetQueueItem(ctx, db, q.ID, "u1")
	if err != nil {
		t.Fatalf("queue item missing: %v", err)
	}
	if it.Status != domain.QueuePending {
		t.Fatalf("expected pending queue item, got %q", it.Status)
	}
	if it.Payload.Answers["nin"] != "61961438053" {
		t.Fatalf("payload answers lost: %+v", it.Payload)
	}
	if it.Payload.GPS == nil || it.Payload.GPS.Lat != 6.52 {
		t.Fatalf("payload GPS lost: %+v", it.Payload.GPS)
	}
	if it.Payload.CompletionSeconds == nil || *it.Payload.CompletionSeconds != 95 {
		t.Fatalf("payload completion time lost: %+v", it.Payload.CompletionSeconds)
	}
}

func TestComplete_FastManualSubmitBeforeAutosave(t *testing.T) {
	m, db, _ := newDraftManager(t)
	ctx := context.Background()

	// The debounce window never elapses: Complete must create the draft row
	// itself before enqueueing.
	m.Record(domain.AnswerSet{"nin": "61961438053"}, 0)
	q, err := m.Complete(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if _, err := repo.GetQueueItem(ctx, db, q.ID, "u1"); err != nil {
		t.Fatalf("queue item missing after fast submit: %v", err)
	}
	d, err := repo.GetDraft(ctx, db, q.ID, "u1")
	if err != nil {
		t.Fatalf("draft row missing after fast submit: %v", err)
	}
	if d.Answers["nin"] != "61961438053" {
		t.Fatalf("answers lost in fast submit: %+v", d.Answers)
	}
}

func TestComplete_TwiceFailsCleanly(t *testing.T) {
	m, _, clk := newDraftManager(t)
	ctx := context.Background()

	m.Record(domain.AnswerSet{"nin": "61961438053"}, 0)
	clk.Fire()
	if _, err := m.Complete(ctx, nil, nil); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if _, err := m.Complete(ctx, nil, nil); err == nil {
		t.Fatalf("second Complete must fail: the draft is no longer in progress")
	}
}

func TestResetForNewEntry_LateAutosaveWritesNothing(t *testing.T) {
	m, db, clk := newDraftManager(t)
	ctx := context.Background()

	m.Record(domain.AnswerSet{"q1": "typed"}, 0)

	// time.AfterFunc semantics: once the callback has fired, Stop cannot
	// prevent it from running. Grab the scheduled callback before the reset
	// stops the timer, then deliver it late.
	clk.mu.Lock()
	late := clk.timers[len(clk.timers)-1].f
	clk.mu.Unlock()

	m.ResetForNewEntry()
	late()

	var n int64
	if err := db.Model(&domain.Draft{}).Count(&n).Error; err != nil {
		t.Fatalf("count drafts: %v", err)
	}
	if n != 0 {
		t.Fatalf("late autosave persisted %d draft(s) after reset", n)
	}
	if _, err := repo.LatestInProgressDraft(ctx, db, "f1", "u1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected no resumable draft, got %v", err)
	}

	// The next session must be untouched by the stale callback too.
	m.Record(domain.AnswerSet{"q1": "fresh"}, 0)
	clk.Fire()
	late()

	d, err := repo.LatestInProgressDraft(ctx, db, "f1", "u1")
	if err != nil {
		t.Fatalf("load fresh draft: %v", err)
	}
	if d.ID == "" || d.Answers["q1"] != "fresh" {
		t.Fatalf("fresh session corrupted: %+v", d)
	}
	if err := db.Model(&domain.Draft{}).Count(&n).Error; err != nil {
		t.Fatalf("count drafts: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one draft row, got %d", n)
	}
}

func TestResetForNewEntry_StartsFreshIdentifier(t *testing.T) {
	m, db, clk := newDraftManager(t)
	ctx := context.Background()

	m.Record(domain.AnswerSet{"nin": "61961438053"}, 0)
	clk.Fire()
	q, err := m.Complete(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	m.ResetForNewEntry()
	m.Record(domain.AnswerSet{"nin": "22222222222"}, 0)
	clk.Fire()

	d, err := repo.LatestInProgressDraft(ctx, db, "f1", "u1")
	if err != nil {
		t.Fatalf("load fresh draft: %v", err)
	}
	if d.ID == q.ID {
		t.Fatalf("new entry must not reuse the submitted draft id")
	}

	// The submitted draft is left alone, not deleted.
	old, err := repo.GetDraft(ctx, db, q.ID, "u1")
	if err != nil {
		t.Fatalf("old draft gone: %v", err)
	}
	if old.Status != domain.DraftSubmitted {
		t.Fatalf("old draft status changed: %q", old.Status)
	}
}
