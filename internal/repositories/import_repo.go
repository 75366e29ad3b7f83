package repositories

import (
	"context"

	"raidentrack/internal/models"
)

// ImportRecordRepository stores the append-only prediction history.
type ImportRecordRepository interface {
	Create(ctx context.Context, record *models.ImportRecord) error
	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, publicID int64) ([]models.ImportRecord, error)
}
