package repo

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// newRepoDB opens a throwaway SQLite database and optionally migrates the
// given models. Shared by the repo tests in this package.
func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// clientDB returns a store migrated with the full client schema.
func clientDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newRepoDB(t)
	if err := MigrateClient(db); err != nil {
		t.Fatalf("MigrateClient: %v", err)
	}
	return db
}

// serverDB returns a store migrated with the full registry schema.
func serverDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newRepoDB(t)
	if err := MigrateServer(db); err != nil {
		t.Fatalf("MigrateServer: %v", err)
	}
	return db
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "does-not-exist", "store.db"))
	if err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestOpenSQLite_OpensAndAppliesPragmas(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var mode string
	if err := db.Raw("PRAGMA journal_mode;").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected WAL journal mode, got %q", mode)
	}
}

func TestMigrateClient_AppliesAllStepsOnce(t *testing.T) {
	db := newRepoDB(t)

	if err := MigrateClient(db); err != nil {
		t.Fatalf("MigrateClient: %v", err)
	}
	// Re-running must be a no-op.
	if err := MigrateClient(db); err != nil {
		t.Fatalf("MigrateClient rerun: %v", err)
	}

	var n int64
	if err := db.Model(&schemaMigration{}).Count(&n).Error; err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if int(n) != len(clientMigrations) {
		t.Fatalf("expected %d applied steps, got %d", len(clientMigrations), n)
	}

	var last schemaMigration
	if err := db.Order("version desc").First(&last).Error; err != nil {
		t.Fatalf("load last migration: %v", err)
	}
	if last.Version != len(clientMigrations) {
		t.Fatalf("expected version %d, got %d", len(clientMigrations), last.Version)
	}
}

func TestMigrateClient_BackfillsLegacyUserScoping(t *testing.T) {
	db := newRepoDB(t)

	// Simulate a store created before the user-scoping step: base tables
	// exist, step 1 is recorded, and rows carry no user id.
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		t.Fatalf("automigrate bookkeeping: %v", err)
	}
	if err := clientMigrations[0](db); err != nil {
		t.Fatalf("apply v1: %v", err)
	}
	if err := db.Create(&schemaMigration{Version: 1, AppliedAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("record v1: %v", err)
	}
	old := &domain.Draft{
		ID:      "draft-old",
		FormID:  "f1",
		Answers: domain.AnswerSet{"q1": "a"},
		Status:  domain.DraftInProgress,
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed pre-scoping draft: %v", err)
	}
	q := &domain.QueuedSubmission{
		ID:     "queue-old",
		FormID: "f1",
		Status: domain.QueuePending,
	}
	if err := db.Create(q).Error; err != nil {
		t.Fatalf("seed pre-scoping queue item: %v", err)
	}

	if err := MigrateClient(db); err != nil {
		t.Fatalf("MigrateClient: %v", err)
	}

	var d domain.Draft
	if err := db.First(&d, "id = ?", "draft-old").Error; err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if d.UserID != domain.LegacyUserID {
		t.Fatalf("expected legacy sentinel on draft, got %q", d.UserID)
	}
	var it domain.QueuedSubmission
	if err := db.First(&it, "id = ?", "queue-old").Error; err != nil {
		t.Fatalf("load queue item: %v", err)
	}
	if it.UserID != domain.LegacyUserID {
		t.Fatalf("expected legacy sentinel on queue item, got %q", it.UserID)
	}
}

func TestMigrateServer_CreatesRegistryTables(t *testing.T) {
	db := newRepoDB(t)
	if err := MigrateServer(db); err != nil {
		t.Fatalf("MigrateServer: %v", err)
	}
	for _, table := range []string{"respondents", "submissions", "forms", "users", "fraud_events"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}
}
