// Server-side registry models: respondent identities, ingested submissions,
// form definitions, users, and the fraud-trigger outbox.
package domain

import "time"

// Provenance is the channel that produced a respondent record.
type Provenance string

// Known provenance channels. Unknown or unresolvable submitters map to
// SourcePublic.
const (
	SourceEnumerator Provenance = "enumerator"
	SourceClerk      Provenance = "clerk"
	SourcePublic     Provenance = "public"
)

// Respondent is an identity record deduplicated by NIN.
//
// The uniqueness of NIN is enforced by the storage layer (unique index), not
// by an application-level existence check: concurrent creators race on the
// constraint and the loser requeries.
type Respondent struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	NIN            string     `json:"nin"             gorm:"type:varchar(32);not null;uniqueIndex:ux_respondents_nin"`
	GivenName      string     `json:"given_name"      gorm:"type:varchar(128)"`
	FamilyName     string     `json:"family_name"     gorm:"type:varchar(128)"`
	Phone          string     `json:"phone"           gorm:"type:varchar(32)"`
	Email          string     `json:"email"           gorm:"type:varchar(255)"`
	Gender         string     `json:"gender"          gorm:"type:varchar(16)"`
	BirthDate      string     `json:"birth_date"      gorm:"type:varchar(16)"`
	ConsentContact bool       `json:"consent_contact" gorm:"not null;default:false"`
	ConsentDataUse bool       `json:"consent_data_use" gorm:"not null;default:false"`
	Source         Provenance `json:"source"          gorm:"type:varchar(16);not null;default:'public';check:source IN ('enumerator','clerk','public')"`
	RegisteredBy   *string    `json:"registered_by"   gorm:"type:varchar(64)"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Respondent.
func (Respondent) TableName() string { return "respondents" }

// Submission is the durable server-side record of one ingested response.
// Its ID is the client-minted identifier, so redundant delivery of the same
// response collides on the primary key and is answered as a duplicate ack.
//
// Once Processed is true, reprocessing is a no-op.
type Submission struct {
	ID              string            `json:"id"               gorm:"type:char(20);primaryKey"`
	FormID          string            `json:"form_id"          gorm:"type:varchar(64);not null;index"`
	SubmittedBy     string            `json:"submitted_by"     gorm:"type:varchar(64);not null"`
	Payload         SubmissionPayload `json:"payload"          gorm:"serializer:json"`
	Processed       bool              `json:"processed"        gorm:"not null;default:false;index"`
	ProcessedAt     *time.Time        `json:"processed_at"`
	RespondentID    *string           `json:"respondent_id"    gorm:"type:char(36);index"`
	EnumeratorID    *string           `json:"enumerator_id"    gorm:"type:varchar(64)"`
	ProcessingError *string           `json:"processing_error" gorm:"type:text"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// TableName returns the database table name for Submission.
func (Submission) TableName() string { return "submissions" }

// FormField is one question definition inside a form schema.
type FormField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// FormSchema is the render schema of a form, reduced to the parts ingestion
// cares about (the field list).
type FormSchema struct {
	Fields []FormField `json:"fields"`
}

// Form is a server-side form definition.
type Form struct {
	ID        string     `json:"id"      gorm:"type:varchar(64);primaryKey"`
	Title     string     `json:"title"   gorm:"type:varchar(255)"`
	Version   string     `json:"version" gorm:"type:varchar(32);not null"`
	Schema    FormSchema `json:"schema"  gorm:"serializer:json"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Form.
func (Form) TableName() string { return "forms" }

// User is a registry account. Only the role matters to ingestion; it decides
// the provenance of respondents the user registers.
type User struct {
	ID        string    `json:"id"   gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Role      string    `json:"role" gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// FraudEvent is an outbox row for the downstream fraud-detection trigger.
// It is written in the same transaction that marks a submission processed,
// so the trigger can be re-delivered after a crash without re-running
// ingestion. At most one event exists per submission.
type FraudEvent struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	SubmissionID string     `json:"submission_id" gorm:"type:char(20);not null;uniqueIndex:ux_fraud_submission"`
	RespondentID string     `json:"respondent_id" gorm:"type:char(36);not null"`
	Lat          float64    `json:"lat"`
	Lng          float64    `json:"lng"`
	Delivered    bool       `json:"delivered"     gorm:"not null;default:false;index"`
	DeliveredAt  *time.Time `json:"delivered_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName returns the database table name for FraudEvent.
func (FraudEvent) TableName() string { return "fraud_events" }
