// Package sync – queue sync manager.
//
// Manager drains the local submission queue against the transport
// collaborator. One logical pass at a time (single-flight), exponential
// backoff per item, a debounced reconnect trigger, and a fire-and-forget
// escalating poll loop that discovers asynchronous server-side rejections.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// Config carries the sync engine tunables. Zero values fall back to the
// verified defaults.
type Config struct {
	// BaseDelay seeds the exponential backoff window: an item that failed n
	// times becomes eligible again after BaseDelay * 2^n.
	BaseDelay time.Duration
	// MaxDelay caps the backoff window.
	MaxDelay time.Duration
	// MaxRetries is the automatic retry ceiling; items at the ceiling are
	// parked until a manual retry.
	MaxRetries int
	// SubmitTimeout bounds each transport call.
	SubmitTimeout time.Duration
	// ReconnectDebounce delays the sync pass triggered by a "back online"
	// signal so flapping connectivity does not thrash.
	ReconnectDebounce time.Duration
	// PollDelays is the escalating schedule for post-sync outcome polling.
	PollDelays []time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 10 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 60 * time.Second
	}
	if c.ReconnectDebounce <= 0 {
		c.ReconnectDebounce = time.Second
	}
	if len(c.PollDelays) == 0 {
		c.PollDelays = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}
	}
	return c
}

// PassResult summarizes one sync pass.
type PassResult struct {
	// Attempted is the number of items for which a transport call was made.
	Attempted int
	// Synced lists the ids newly transitioned to synced in this pass.
	Synced []string
	// Failed counts attempts that ended in a failed transition.
	Failed int
	// Skipped counts eligible items abandoned mid-pass (user change).
	Skipped int
	// Absorbed is true when the call arrived during an active pass and was
	// collapsed into it without doing any work.
	Absorbed bool
}

// Manager is the sync coordinator. All mutable coordination state (the
// in-flight flag, the active user, the reconnect timer) lives on the
// instance so independent managers never interfere.
type Manager struct {
	db        *gorm.DB
	transport Transport
	net       Connectivity
	clk       Clock
	cfg       Config
	log       zerolog.Logger

	mu             gosync.Mutex
	inFlight       bool
	userID         string
	reconnectTimer Timer

	polls gosync.WaitGroup
}

// NewManager wires a sync manager. transport is required; net may be nil
// (treated as always online) and clock may be nil (wall clock).
func NewManager(db *gorm.DB, transport Transport, net Connectivity, clk Clock, cfg Config, log zerolog.Logger) *Manager {
	if clk == nil {
		clk = RealClock()
	}
	return &Manager{
		db:        db,
		transport: transport,
		net:       net,
		clk:       clk,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
}

// SetUser tells the manager whose queue to drain. Login and logout must be
// reported here; with no identity set, SyncAll is a no-op.
func (m *Manager) SetUser(id string) {
	m.mu.Lock()
	m.userID = id
	m.mu.Unlock()
}

// ClearUser drops the active identity (logout). A pass already running will
// notice before its next item and abandon the remainder.
func (m *Manager) ClearUser() { m.SetUser("") }

func (m *Manager) currentUser() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

func (m *Manager) online() bool {
	return m.net == nil || m.net.Online()
}

// backoffDelay returns the wait before an item with the given retry count
// may be attempted again.
func (m *Manager) backoffDelay(retries int) time.Duration {
	if retries >= 30 {
		return m.cfg.MaxDelay
	}
	d := m.cfg.BaseDelay << uint(retries)
	if d <= 0 || d > m.cfg.MaxDelay {
		return m.cfg.MaxDelay
	}
	return d
}

// SyncAll runs one sync pass over the active user's queue: first the
// pending items, then failed items whose backoff window has elapsed. It is
// idempotent and re-entrant-safe: a call arriving during an active pass is
// absorbed and returns immediately with Absorbed set.
func (m *Manager) SyncAll(ctx context.Context) (PassResult, error) {
	var res PassResult

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		res.Absorbed = true
		return res, nil
	}
	user := m.userID
	if user == "" {
		m.mu.Unlock()
		return res, nil
	}
	m.inFlight = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	if !m.online() {
		m.log.Debug().Msg("sync pass skipped: offline")
		return res, nil
	}

	pending, err := repo.ListQueueByStatus(ctx, m.db, user, domain.QueuePending)
	if err != nil {
		return res, err
	}
	failed, err := repo.ListQueueByStatus(ctx, m.db, user, domain.QueueFailed)
	if err != nil {
		return res, err
	}

	now := m.clk.Now()
	batch := pending
	for _, it := range failed {
		if it.RetryCount >= m.cfg.MaxRetries {
			continue
		}
		if it.LastError != nil && domain.IsPermanentSyncError(*it.LastError) {
			continue
		}
		if it.LastAttemptAt != nil && now.Sub(*it.LastAttemptAt) < m.backoffDelay(it.RetryCount) {
			continue
		}
		batch = append(batch, it)
	}

	for i := range batch {
		// A logout mid-pass must not leak the remaining items into the next
		// session.
		if m.currentUser() != user {
			res.Skipped += len(batch) - i
			m.log.Info().Int("skipped", res.Skipped).Msg("sync pass abandoned: user changed")
			break
		}
		m.attempt(ctx, user, &batch[i], &res)
	}

	if len(res.Synced) > 0 {
		ids := append([]string(nil), res.Synced...)
		m.polls.Add(1)
		go m.pollOutcomes(user, ids)
	}

	m.log.Info().
		Int("attempted", res.Attempted).
		Int("synced", len(res.Synced)).
		Int("failed", res.Failed).
		Msg("sync pass finished")
	return res, nil
}

// attempt runs one transport delivery for a single item and applies the
// resulting status transition. Once the item is marked syncing the attempt
// runs to completion or timeout; there is no mid-flight cancellation.
func (m *Manager) attempt(ctx context.Context, user string, it *domain.QueuedSubmission, res *PassResult) {
	if err := repo.MarkQueueSyncing(ctx, m.db, it.ID, user, m.clk.Now()); err != nil {
		if errors.Is(err, repo.ErrStaleTransition) {
			res.Skipped++
			return
		}
		m.log.Warn().Err(err).Str("id", it.ID).Msg("claim failed")
		res.Skipped++
		return
	}

	res.Attempted++
	cctx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
	ack, err := m.transport.Submit(cctx, it)
	cancel()

	if err != nil {
		m.fail(ctx, user, it.ID, err.Error())
		res.Failed++
		return
	}

	switch ack.Status {
	case AckQueued, AckDuplicate:
		if err := repo.MarkQueueSynced(ctx, m.db, it.ID, user); err != nil {
			m.log.Warn().Err(err).Str("id", it.ID).Msg("synced transition failed")
			return
		}
		res.Synced = append(res.Synced, it.ID)
		m.log.Debug().Str("id", it.ID).Str("ack", string(ack.Status)).Msg("submission synced")
	default:
		m.fail(ctx, user, it.ID, fmt.Sprintf("unexpected ack status %q", ack.Status))
		res.Failed++
	}
}

func (m *Manager) fail(ctx context.Context, user, id, errText string) {
	if err := repo.MarkQueueFailed(ctx, m.db, id, user, errText); err != nil {
		m.log.Warn().Err(err).Str("id", id).Msg("failed transition failed")
		return
	}
	m.log.Warn().Str("id", id).Str("error", errText).Msg("submission attempt failed")
}

// pollOutcomes asks the server what became of newly-synced submissions, at
// escalating delays, until all are resolved, connectivity drops, or the
// schedule is exhausted. A permanent rejection force-fails the local item
// with the retry count pinned at the ceiling. Poll failures are swallowed;
// discovery simply resumes next session.
func (m *Manager) pollOutcomes(user string, ids []string) {
	defer m.polls.Done()

	remaining := ids
	for _, delay := range m.cfg.PollDelays {
		<-m.clk.After(delay)
		if !m.online() {
			return
		}

		cctx, cancel := context.WithTimeout(context.Background(), m.cfg.SubmitTimeout)
		outcomes, err := m.transport.StatusOf(cctx, remaining)
		cancel()
		if err != nil {
			m.log.Debug().Err(err).Msg("outcome poll failed")
			continue
		}

		var next []string
		for _, id := range remaining {
			out, ok := outcomes[id]
			if !ok {
				next = append(next, id)
				continue
			}
			switch {
			case out.Processed:
				// Accepted; nothing to reclassify.
			case out.ProcessingError != "":
				if domain.IsPermanentSyncError(out.ProcessingError) {
					if err := repo.MarkQueueRejected(context.Background(), m.db, id, user, out.ProcessingError, m.cfg.MaxRetries); err != nil {
						m.log.Warn().Err(err).Str("id", id).Msg("rejection transition failed")
					} else {
						m.log.Warn().Str("id", id).Str("error", out.ProcessingError).Msg("submission permanently rejected")
					}
				}
				// Non-permanent processing errors are operator-side; the
				// item stays synced.
			default:
				next = append(next, id)
			}
		}
		remaining = next
		if len(remaining) == 0 {
			return
		}
	}
}

// NotifyOnline schedules a single debounced sync pass in response to a
// "back online" signal. A signal arriving while a timer is pending
// supersedes it rather than stacking a second pass.
func (m *Manager) NotifyOnline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	m.reconnectTimer = m.clk.AfterFunc(m.cfg.ReconnectDebounce, func() {
		if _, err := m.SyncAll(context.Background()); err != nil {
			m.log.Warn().Err(err).Msg("reconnect sync failed")
		}
	})
}

// SyncNow is the explicit user action; it is a plain alias for SyncAll.
func (m *Manager) SyncNow(ctx context.Context) (PassResult, error) {
	return m.SyncAll(ctx)
}

// RetryFailed returns every transiently-failed item of the active user to
// pending with a zeroed retry count, then triggers a sync pass. Items
// carrying a permanent error are left parked.
func (m *Manager) RetryFailed(ctx context.Context) (PassResult, error) {
	user := m.currentUser()
	if user == "" {
		return PassResult{}, nil
	}
	ids, err := repo.ResetRetryableFailures(ctx, m.db, user)
	if err != nil {
		return PassResult{}, err
	}
	m.log.Info().Int("reset", len(ids)).Msg("failed items reset for retry")
	return m.SyncAll(ctx)
}

// Wait blocks until all in-flight outcome polls have finished. Intended for
// graceful shutdown and tests.
func (m *Manager) Wait() { m.polls.Wait() }
