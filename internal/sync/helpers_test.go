package sync

import (
	"context"
	"fmt"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// newSyncDB opens a throwaway client store with the full schema applied.
func newSyncDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("sync_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.MigrateClient(db); err != nil {
		t.Fatalf("MigrateClient: %v", err)
	}
	return db
}

//
// Deterministic clock
//

type testTimer struct {
	mu      gosync.Mutex
	f       func()
	stopped bool
}

func (t *testTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *testTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if !stopped {
		t.f()
	}
}

// testClock is a hand-driven Clock. Now() is advanced explicitly, After()
// yields immediately so escalating schedules run without real sleeps, and
// AfterFunc timers fire only when the test calls Fire().
type testClock struct {
	mu     gosync.Mutex
	now    time.Time
	timers []*testTimer
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *testClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &testTimer{f: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

// Fire runs every pending, un-stopped timer callback once.
func (c *testClock) Fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		t.fire()
	}
}

//
// Fake transport and connectivity
//

type fakeTransport struct {
	mu          gosync.Mutex
	submits     map[string]int
	submitErr   error
	ack         AckStatus
	onSubmit    func(id string)
	blockSubmit chan struct{} // when set, Submit waits for a receive

	statusCalls int
	outcomes    map[string]Outcome
	statusErr   error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		submits:  map[string]int{},
		ack:      AckQueued,
		outcomes: map[string]Outcome{},
	}
}

func (f *fakeTransport) Submit(ctx context.Context, sub *domain.QueuedSubmission) (*SubmitAck, error) {
	f.mu.Lock()
	f.submits[sub.ID]++
	block := f.blockSubmit
	onSubmit := f.onSubmit
	err := f.submitErr
	ack := f.ack
	f.mu.Unlock()

	if onSubmit != nil {
		onSubmit(sub.ID)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &SubmitAck{ID: sub.ID, Status: ack}, nil
}

func (f *fakeTransport) StatusOf(ctx context.Context, ids []string) (map[string]Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	out := map[string]Outcome{}
	for _, id := range ids {
		if o, ok := f.outcomes[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (f *fakeTransport) submitCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits[id]
}

func (f *fakeTransport) totalSubmits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.submits {
		n += c
	}
	return n
}

type fakeNet struct {
	mu     gosync.Mutex
	online bool
}

func (n *fakeNet) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *fakeNet) set(v bool) {
	n.mu.Lock()
	n.online = v
	n.mu.Unlock()
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
