// Package sync – draft persistence manager.
//
// DraftManager owns at most one active draft per (form, user) session. It
// debounces autosave writes, supports explicit save and resume, and converts
// a finished draft into a queued submission that reuses the draft's
// identifier. That identifier equality is the idempotency mechanism for the
// whole pipeline: minting a fresh id at enqueue time would break at-most-once
// delivery on retry.
package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// DefaultAutosaveInterval is the debounce window between an answer change
// and the persisted autosave write.
const DefaultAutosaveInterval = 500 * time.Millisecond

// ErrNoDraft is returned by Load when the user has no in-progress draft for
// the form.
var ErrNoDraft = errors.New("no draft in progress")

// ResumeData is what the renderer needs to restore an interrupted session.
type ResumeData struct {
	DraftID string
	Answers domain.AnswerSet
	Cursor  int
}

type draftSnapshot struct {
	answers domain.AnswerSet
	cursor  int
}

// DraftManager coordinates autosave and completion for one (form, user)
// session. All debounce state lives on the instance, so independent
// sessions (tests, multiple open forms) never interfere.
type DraftManager struct {
	DB               *gorm.DB
	Clock            Clock
	Log              zerolog.Logger
	AutosaveInterval time.Duration // zero means DefaultAutosaveInterval

	FormID      string
	FormVersion string
	UserID      string

	mu        gosync.Mutex
	draftID   string
	persisted bool
	pending   *draftSnapshot
	timer     Timer
}

func (m *DraftManager) clock() Clock {
	if m.Clock == nil {
		return RealClock()
	}
	return m.Clock
}

func (m *DraftManager) interval() time.Duration {
	if m.AutosaveInterval <= 0 {
		return DefaultAutosaveInterval
	}
	return m.AutosaveInterval
}

// Record registers a new answer snapshot and schedules a debounced persist.
// A snapshot arriving while a timer is pending supersedes it; only the
// latest state is written when the window elapses.
func (m *DraftManager) Record(answers domain.AnswerSet, cursor int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.draftID == "" {
		m.draftID = xid.New().String()
	}
	m.pending = &draftSnapshot{answers: answers, cursor: cursor}

	if m.timer != nil {
		m.timer.Stop()
	}
	id := m.draftID
	m.timer = m.clock().AfterFunc(m.interval(), func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Stop cannot cancel a callback that has already fired; if the
		// session was reset or re-bound between firing and locking, this
		// write belongs to a draft that no longer exists.
		if m.draftID != id {
			return
		}
		if err := m.persistLocked(context.Background()); err != nil {
			m.Log.Warn().Err(err).Str("draft_id", m.draftID).Msg("autosave failed")
		}
	})
}

// Save persists the current snapshot immediately, bypassing the debounce
// window. Used for explicit "save draft" actions.
func (m *DraftManager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.draftID == "" {
		m.draftID = xid.New().String()
	}
	return m.persistLocked(ctx)
}

// persistLocked writes the pending snapshot (first write creates the row,
// later writes update it in place). Callers hold m.mu.
func (m *DraftManager) persistLocked(ctx context.Context) error {
	if m.pending == nil && m.persisted {
		return nil
	}
	snap := m.pending
	if snap == nil {
		snap = &draftSnapshot{answers: domain.AnswerSet{}}
	}

	if !m.persisted {
		d := &domain.Draft{
			ID:          m.draftID,
			FormID:      m.FormID,
			FormVersion: m.FormVersion,
			Answers:     snap.answers,
			Cursor:      snap.cursor,
			Status:      domain.DraftInProgress,
			UserID:      m.UserID,
		}
		err := repo.CreateDraft(ctx, m.DB, d)
		if errors.Is(err, repo.ErrDuplicate) {
			// Row already exists (adopted via Load); fall through to update.
			err = repo.UpdateDraftProgress(ctx, m.DB, m.draftID, m.UserID, snap.answers, snap.cursor)
		}
		if err != nil {
			return err
		}
		m.persisted = true
		m.pending = nil
		return nil
	}

	if err := repo.UpdateDraftProgress(ctx, m.DB, m.draftID, m.UserID, snap.answers, snap.cursor); err != nil {
		return err
	}
	m.pending = nil
	return nil
}

// Load adopts the most recent in-progress draft for (form, user) and returns
// its resume data, or ErrNoDraft when there is nothing to resume.
func (m *DraftManager) Load(ctx context.Context) (*ResumeData, error) {
	d, err := repo.LatestInProgressDraft(ctx, m.DB, m.FormID, m.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.draftID = d.ID
	m.persisted = true
	m.pending = nil
	m.mu.Unlock()

	return &ResumeData{DraftID: d.ID, Answers: d.Answers, Cursor: d.Cursor}, nil
}

// Complete finishes the session: it flushes any unsaved snapshot (creating
// the draft row first if autosave never fired — the fast manual-submit
// race), builds the enriched payload, and atomically enqueues a
// QueuedSubmission carrying the draft's own identifier.
func (m *DraftManager) Complete(ctx context.Context, gps *domain.GeoPoint, completionSeconds *int) (*domain.QueuedSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	if m.draftID == "" {
		m.draftID = xid.New().String()
	}
	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}

	d, err := repo.GetDraft(ctx, m.DB, m.draftID, m.UserID)
	if err != nil {
		return nil, err
	}

	q := &domain.QueuedSubmission{
		ID:     d.ID,
		FormID: d.FormID,
		Payload: domain.SubmissionPayload{
			Answers:           d.Answers,
			FormVersion:       d.FormVersion,
			SubmittedAt:       m.clock().Now(),
			GPS:               gps,
			CompletionSeconds: completionSeconds,
		},
		Status: domain.QueuePending,
		UserID: m.UserID,
	}

	err = m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkDraftCompleted(ctx, tx, d.ID, m.UserID); err != nil {
			return err
		}
		if err := repo.EnqueueSubmission(ctx, tx, q); err != nil {
			return err
		}
		return repo.MarkDraftSubmitted(ctx, tx, d.ID, m.UserID)
	})
	if err != nil {
		return nil, err
	}

	m.Log.Info().Str("submission_id", q.ID).Str("form_id", q.FormID).Msg("draft completed and queued")
	return q, nil
}

// ResetForNewEntry severs the in-memory link to the current draft so the
// next Record starts a fresh identifier. Nothing is deleted.
func (m *DraftManager) ResetForNewEntry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.draftID = ""
	m.persisted = false
	m.pending = nil
}
