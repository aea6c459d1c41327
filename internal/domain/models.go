// Package domain defines the persistence models shared by the offline client
// store and the registry server. These types are mapped with GORM and form
// the core data layer of the field-data-collection sync engine.
package domain

import "time"

// DraftStatus is the lifecycle state of a Draft.
type DraftStatus string

// Draft lifecycle states. Transitions are one-way:
// in_progress -> completed -> submitted.
const (
	DraftInProgress DraftStatus = "in_progress"
	DraftCompleted  DraftStatus = "completed"
	DraftSubmitted  DraftStatus = "submitted"
)

// QueueStatus is the lifecycle state of a QueuedSubmission.
type QueueStatus string

// Queue item states. pending/failed -> syncing -> synced|failed within one
// attempt; a synced item never reverts except for an explicit permanent
// rejection discovered by outcome polling.
const (
	QueuePending QueueStatus = "pending"
	QueueSyncing QueueStatus = "syncing"
	QueueFailed  QueueStatus = "failed"
	QueueSynced  QueueStatus = "synced"
)

// LegacyUserID is the sentinel owner assigned to rows that predate user
// scoping in the local store. Backfilled by repo.MigrateClient.
const LegacyUserID = "legacy"

// AnswerSet maps question names to captured answer values. Values are
// whatever the form renderer produced (strings, numbers, bools, lists);
// the sync engine treats them as opaque.
type AnswerSet map[string]any

// GeoPoint is a GPS coordinate captured at submission time.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SubmissionPayload is the enriched document built when a draft is completed.
// It is the unit shipped over the wire; the client never mutates it after
// enqueueing.
type SubmissionPayload struct {
	Answers           AnswerSet `json:"answers"`
	FormVersion       string    `json:"form_version"`
	SubmittedAt       time.Time `json:"submitted_at"`
	GPS               *GeoPoint `json:"gps,omitempty"`
	CompletionSeconds *int      `json:"completion_time_seconds,omitempty"`
}

// Draft is a partially-completed survey response owned by the draft manager.
//
// Fields:
//   - ID: time-sortable client-minted identifier (xid). The same value later
//     becomes the queue item and server submission id, which is what makes
//     retransmission idempotent.
//   - FormID / FormVersion: the form being answered.
//   - Answers: question-name -> answer snapshot.
//   - Cursor: index of the question to resume at.
//   - Status: lifecycle state (in_progress until completion).
//   - UserID: owner; all local reads are scoped by it.
type Draft struct {
	ID          string      `json:"id"           gorm:"type:char(20);primaryKey"`
	FormID      string      `json:"form_id"      gorm:"type:varchar(64);not null;index:idx_user_form_drafts,priority:2"`
	FormVersion string      `json:"form_version" gorm:"type:varchar(32);not null"`
	Answers     AnswerSet   `json:"answers"      gorm:"serializer:json"`
	Cursor      int         `json:"cursor"       gorm:"not null;default:0"`
	Status      DraftStatus `json:"status"       gorm:"type:varchar(16);not null;default:'in_progress';check:status IN ('in_progress','completed','submitted')"`
	UserID      string      `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_user_form_drafts,priority:1"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Draft.
func (Draft) TableName() string { return "drafts" }

// QueuedSubmission is one unit of work for the sync manager.
//
// Invariants:
//   - ID equals the originating draft's ID.
//   - RetryCount only increases.
//   - Status transitions are monotonic within an attempt; the MarkQueue* repo
//     helpers enforce the legal source states.
type QueuedSubmission struct {
	ID            string            `json:"id"              gorm:"type:char(20);primaryKey"`
	FormID        string            `json:"form_id"         gorm:"type:varchar(64);not null"`
	Payload       SubmissionPayload `json:"payload"         gorm:"serializer:json"`
	Status        QueueStatus       `json:"status"          gorm:"type:varchar(16);not null;default:'pending';index:idx_user_queue_status,priority:2;check:status IN ('pending','syncing','failed','synced')"`
	RetryCount    int               `json:"retry_count"     gorm:"not null;default:0"`
	LastAttemptAt *time.Time        `json:"last_attempt_at"`
	LastError     *string           `json:"last_error"      gorm:"type:text"`
	UserID        string            `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_user_queue_status,priority:1"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TableName returns the database table name for QueuedSubmission.
func (QueuedSubmission) TableName() string { return "submission_queue" }

// CachedFormSchema is the last render schema fetched for a form, kept for
// offline schema resolution. The sync engine only reads it.
type CachedFormSchema struct {
	FormID   string    `json:"form_id"   gorm:"type:varchar(64);primaryKey"`
	Schema   string    `json:"schema"    gorm:"type:text;not null"`
	CachedAt time.Time `json:"cached_at"`
}

// TableName returns the database table name for CachedFormSchema.
func (CachedFormSchema) TableName() string { return "cached_form_schemas" }
