// Package client assembles the on-device sync engine from configuration:
// the local durable store, the queue sync manager, the status projector, and
// per-form draft sessions, all wired against the registry's ingestion API.
package client

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/config"
	"github.com/obi-nwosu/fieldsync/internal/repo"
	"github.com/obi-nwosu/fieldsync/internal/sync"
	"github.com/obi-nwosu/fieldsync/internal/transport"
)

// Engine bundles the on-device collaborators for one signed-in user.
type Engine struct {
	DB        *gorm.DB
	Manager   *sync.Manager
	Projector *sync.StatusProjector

	cfg    config.SyncConfig
	userID string
	log    zerolog.Logger
}

// syncConfig translates the env-level tunables into the engine's config.
func syncConfig(sc config.SyncConfig) sync.Config {
	return sync.Config{
		BaseDelay:         sc.BaseDelay,
		MaxDelay:          sc.MaxDelay,
		MaxRetries:        sc.MaxRetries,
		SubmitTimeout:     sc.SubmitTimeout,
		ReconnectDebounce: sc.ReconnectDebounce,
		PollDelays:        sc.PollDelays,
	}
}

// New opens and migrates the on-device store at cfg.ClientDBPath, then wires
// the sync manager and status projector against the registry at
// cfg.ServerBaseURL. net may be nil (treated as always online).
func New(cfg config.Config, userID string, net sync.Connectivity, log zerolog.Logger) (*Engine, error) {
	db, err := repo.OpenSQLite(cfg.ClientDBPath)
	if err != nil {
		return nil, fmt.Errorf("open client store: %w", err)
	}
	if err := repo.MigrateClient(db); err != nil {
		return nil, fmt.Errorf("migrate client store: %w", err)
	}

	tr := transport.New(cfg.ServerBaseURL, userID, cfg.Sync.SubmitTimeout)
	m := sync.NewManager(db, tr, net, nil, syncConfig(cfg.Sync), log)
	m.SetUser(userID)

	return &Engine{
		DB:        db,
		Manager:   m,
		Projector: &sync.StatusProjector{DB: db, Net: net},
		cfg:       cfg.Sync,
		userID:    userID,
		log:       log,
	}, nil
}

// Drafts starts a draft session for one form, carrying the configured
// autosave debounce window.
func (e *Engine) Drafts(formID, formVersion string) *sync.DraftManager {
	return &sync.DraftManager{
		DB:               e.DB,
		Log:              e.log,
		AutosaveInterval: e.cfg.AutosaveDebounce,
		FormID:           formID,
		FormVersion:      formVersion,
		UserID:           e.userID,
	}
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	sqlDB, err := e.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
