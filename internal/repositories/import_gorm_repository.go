package repositories

import (
	"context"
	"fmt"
	"time"

	"raidentrack/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMImportRecordRepository is a GORM implementation of ImportRecordRepository.
type GORMImportRecordRepository struct {
	db *gorm.DB
}

// NewGORMImportRecordRepository creates a new instance of GORMImportRecordRepository.
func NewGORMImportRecordRepository(db *gorm.DB) *GORMImportRecordRepository {
	return &GORMImportRecordRepository{
		db: db,
	}
}

// Create appends a record to the history.
func (r *GORMImportRecordRepository) Create(ctx context.Context, record *models.ImportRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create import record: %w", err)
	}
	return nil
}

// ListByUser retrieves the history of one user, newest first.
func (r *GORMImportRecordRepository) ListByUser(ctx context.Context, publicID int64) ([]models.ImportRecord, error) {
	var records []models.ImportRecord
	err := r.db.WithContext(ctx).
		Where("user_public_id = ?", publicID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list imports of user %d: %w", publicID, err)
	}
	return records, nil
}
