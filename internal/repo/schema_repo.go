// Package repo – cached form schema persistence (offline schema resolution).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// PutCachedSchema stores (or refreshes) the render schema for a form.
func PutCachedSchema(ctx context.Context, db *gorm.DB, formID, schema string) error {
	rec := &domain.CachedFormSchema{
		FormID:   formID,
		Schema:   schema,
		CachedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "form_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"schema", "cached_at"}),
		}).
		Create(rec).Error
}

// GetCachedSchema returns the cached schema for formID, or ErrNotFound.
func GetCachedSchema(ctx context.Context, db *gorm.DB, formID string) (*domain.CachedFormSchema, error) {
	var rec domain.CachedFormSchema
	err := db.WithContext(ctx).
		Where("form_id = ?", formID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
