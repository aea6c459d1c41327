// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping for SQLite
// (pure Go driver) and schema migrations for both stores: the on-device
// client store (drafts, submission queue, schema cache) and the server-side
// registry store (respondents, submissions, forms, users, fraud outbox).
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)").
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// schemaMigration records an applied client-store migration step.
type schemaMigration struct {
	Version   int `gorm:"primaryKey"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// clientMigrations are the ordered, idempotent steps that bring a client
// store up to the current schema version. New fields on existing record
// kinds get a backfill step here rather than a destructive rebuild.
var clientMigrations = []func(db *gorm.DB) error{
	// v1: base tables.
	func(db *gorm.DB) error {
		return db.AutoMigrate(
			&domain.Draft{},
			&domain.QueuedSubmission{},
			&domain.CachedFormSchema{},
		)
	},
	// v2: user scoping. Rows written before the user_id column existed get
	// the "legacy" sentinel so they stay visible without being attributed
	// to whoever logs in next.
	func(db *gorm.DB) error {
		if err := db.Model(&domain.Draft{}).
			Where("user_id IS NULL OR user_id = ''").
			Update("user_id", domain.LegacyUserID).Error; err != nil {
			return err
		}
		return db.Model(&domain.QueuedSubmission{}).
			Where("user_id IS NULL OR user_id = ''").
			Update("user_id", domain.LegacyUserID).Error
	},
}

// MigrateClient applies all pending client-store migration steps in order.
// Each step runs at most once; the applied version is tracked in
// schema_migrations.
func MigrateClient(db *gorm.DB) error {
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return err
	}
	var current int
	var last schemaMigration
	err := db.Order("version desc").First(&last).Error
	switch {
	case err == nil:
		current = last.Version
	case err == gorm.ErrRecordNotFound:
		current = 0
	default:
		return err
	}

	for v := current; v < len(clientMigrations); v++ {
		step := clientMigrations[v]
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := step(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{Version: v + 1, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MigrateServer creates or updates the registry-side tables.
func MigrateServer(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Respondent{},
		&domain.Submission{},
		&domain.Form{},
		&domain.User{},
		&domain.FraudEvent{},
	)
}
