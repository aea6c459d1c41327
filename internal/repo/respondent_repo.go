// Package repo – respondent identity persistence (server side).
//
// Respondents are deduplicated by NIN through a storage-level unique index.
// CreateRespondent deliberately does NOT pre-check existence: concurrent
// creators race on the constraint, the loser gets ErrDuplicate and requeries.
// A check-then-insert would reintroduce the race the constraint closes.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// FindRespondentByNIN returns the respondent identified by nin, or
// ErrNotFound.
func FindRespondentByNIN(ctx context.Context, db *gorm.DB, nin string) (*domain.Respondent, error) {
	var r domain.Respondent
	err := db.WithContext(ctx).
		Where("nin = ?", nin).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRespondent inserts a new respondent row with a generated UUID.
// A unique-constraint violation on the NIN maps to ErrDuplicate so the
// caller can requery and link to whichever row won the race. Any other
// error propagates as retryable.
func CreateRespondent(ctx context.Context, db *gorm.DB, r *domain.Respondent) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Source == "" {
		r.Source = domain.SourcePublic
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
