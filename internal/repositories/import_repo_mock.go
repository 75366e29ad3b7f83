package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"raidentrack/internal/models"

	"github.com/google/uuid"
)

// MockImportRecordRepository is an in-memory implementation of ImportRecordRepository.
type MockImportRecordRepository struct {
	records map[string]models.ImportRecord
	mu      sync.RWMutex
}

// NewMockImportRecordRepository creates a new instance of MockImportRecordRepository.
func NewMockImportRecordRepository() *MockImportRecordRepository {
	return &MockImportRecordRepository{
		records: make(map[string]models.ImportRecord),
	}
}

// Create appends a record.
func (r *MockImportRecordRepository) Create(_ context.Context, record *models.ImportRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	r.records[record.ID] = *record
	return nil
}

// ListByUser returns the user's records, newest first.
func (r *MockImportRecordRepository) ListByUser(_ context.Context, publicID int64) ([]models.ImportRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.ImportRecord, 0)
	for _, rec := range r.records {
		if rec.UserPublicID == publicID {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (r *MockImportRecordRepository) deleteByUser(publicID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.records {
		if rec.UserPublicID == publicID {
			delete(r.records, id)
		}
	}
}
