package models

import "time"

// ImportRecord is one entry of a user's prediction history.
// UserPublicID points at users.public_id, not at the internal key.
type ImportRecord struct {
	ID           string    `json:"-" gorm:"primaryKey;type:varchar(36)"`
	UserPublicID int64     `json:"-" gorm:"index;not null"`
	Prediction   string    `json:"prediction" gorm:"type:text;not null"`
	ChartData    string    `json:"-" gorm:"type:text;not null"` // JSON array of ChartPoint
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// TableName keeps the table name the frontend history view was built against.
func (ImportRecord) TableName() string { return "recent_imports" }

// ChartPoint is a single row of the progress chart. Nil values are cells that
// could not be read as numbers.
type ChartPoint struct {
	DaysElapsed     *float64 `json:"days_elapsed"`
	PlannedProgress *float64 `json:"planned_progress"`
	ActualProgress  *float64 `json:"actual_progress"`
}
