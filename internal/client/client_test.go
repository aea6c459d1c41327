package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/obi-nwosu/fieldsync/internal/config"
	"github.com/obi-nwosu/fieldsync/internal/domain"
	"github.com/obi-nwosu/fieldsync/internal/repo"
	"github.com/obi-nwosu/fieldsync/internal/sync"
)

func TestSyncConfig_TranslatesAllTunables(t *testing.T) {
	sc := config.SyncConfig{
		AutosaveDebounce:  250 * time.Millisecond,
		ReconnectDebounce: 2 * time.Second,
		BaseDelay:         3 * time.Second,
		MaxDelay:          time.Minute,
		MaxRetries:        7,
		SubmitTimeout:     20 * time.Second,
		PollDelays:        []time.Duration{time.Second, 2 * time.Second},
	}
	got := syncConfig(sc)
	if got.BaseDelay != sc.BaseDelay || got.MaxDelay != sc.MaxDelay {
		t.Fatalf("backoff not carried: %+v", got)
	}
	if got.MaxRetries != 7 || got.SubmitTimeout != 20*time.Second {
		t.Fatalf("ceiling/timeout not carried: %+v", got)
	}
	if got.ReconnectDebounce != 2*time.Second {
		t.Fatalf("reconnect debounce not carried: %v", got.ReconnectDebounce)
	}
	if len(got.PollDelays) != 2 || got.PollDelays[1] != 2*time.Second {
		t.Fatalf("poll schedule not carried: %v", got.PollDelays)
	}
}

func TestNew_WiresEngineFromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/submissions":
			var body struct {
				ID string `json:"id"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": body.ID, "status": "queued"})
		case "/api/v1/submissions/status":
			var body struct {
				IDs []string `json:"ids"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			out := map[string]any{}
			for _, id := range body.IDs {
				out[id] = map[string]any{"processed": true}
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Setenv("CLIENT_DB_PATH", filepath.Join(t.TempDir(), "device.db"))
	t.Setenv("SERVER_BASE_URL", srv.URL)
	t.Setenv("SYNC_POLL_DELAYS", "1ms")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	e, err := New(cfg, "u1", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	// The store is migrated: draft sessions work immediately.
	dm := e.Drafts("f1", "3")
	if dm.AutosaveInterval != cfg.Sync.AutosaveDebounce {
		t.Fatalf("autosave interval = %v, want %v", dm.AutosaveInterval, cfg.Sync.AutosaveDebounce)
	}

	ctx := context.Background()
	dm.Record(domain.AnswerSet{"nin": "61961438053"}, 0)
	q, err := dm.Complete(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	res, err := e.Manager.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if res.Attempted != 1 || len(res.Synced) != 1 || res.Synced[0] != q.ID {
		t.Fatalf("pass result = %+v", res)
	}
	e.Manager.Wait()

	it, err := repo.GetQueueItem(ctx, e.DB, q.ID, "u1")
	if err != nil {
		t.Fatalf("queue item: %v", err)
	}
	if it.Status != domain.QueueSynced {
		t.Fatalf("status = %q, want synced", it.Status)
	}

	state, counts, err := e.Projector.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if state != sync.StateSynced || counts.Synced != 1 {
		t.Fatalf("projection = %q %+v", state, counts)
	}
}

func TestNew_BadStorePath(t *testing.T) {
	t.Setenv("CLIENT_DB_PATH", filepath.Join(t.TempDir(), "missing", "nested", "device.db"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := New(cfg, "u1", nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}
