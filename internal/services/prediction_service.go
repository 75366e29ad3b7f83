package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"

	"raidentrack/internal/models"
	"raidentrack/internal/repositories"
	"raidentrack/pkg/progresscsv"
)

const predictionInstructions = "You are an AI-powered construction assistant.\n" +
	"Get the insights and forecast based on the data with current trends in real-time.\n" +
	"Make it 10 lines with points wise in new line for each point.\n"

// PredictionResult is the answer to a prediction request.
type PredictionResult struct {
	Prediction string              `json:"prediction"`
	ChartData  []models.ChartPoint `json:"chart_data"`
}

// PredictionService turns a progress report into a forecast and records it
// in the user's history.
type PredictionService struct {
	imports repositories.ImportRecordRepository
	engine  PredictionEngine
	events  EventPublisher
}

// NewPredictionService creates a new PredictionService. events may be nil.
func NewPredictionService(imports repositories.ImportRecordRepository, engine PredictionEngine, events EventPublisher) *PredictionService {
	return &PredictionService{imports: imports, engine: engine, events: events}
}

// Predict reads a progress CSV, asks the engine for a forecast and stores the
// result for user.
func (s *PredictionService) Predict(ctx context.Context, user *models.User, r io.Reader) (*PredictionResult, error) {
	table, err := readTable(r)
	if err != nil {
		return nil, err
	}

	points, err := chartPoints(table)
	if err != nil {
		return nil, err
	}

	if s.engine == nil {
		return nil, newError(ErrInternal, "AI model not initialized.")
	}
	prediction, err := s.engine.Generate(ctx, BuildPrompt(table))
	if err != nil {
		return nil, internal("Prediction failed", err)
	}

	chart, err := json.Marshal(points)
	if err != nil {
		return nil, internal("Could not encode chart data", err)
	}
	record := &models.ImportRecord{
		UserPublicID: user.PublicID,
		Prediction:   prediction,
		ChartData:    string(chart),
	}
	if err := s.imports.Create(ctx, record); err != nil {
		return nil, internal("Could not save prediction", err)
	}

	log.Printf("Stored prediction %s for user %d (%d rows)", record.ID, user.PublicID, len(points))
	publish(s.events, EventImportCreated, map[string]any{
		"id":         record.ID,
		"userid":     user.PublicID,
		"rows":       len(points),
		"created_at": record.CreatedAt,
	})

	return &PredictionResult{Prediction: prediction, ChartData: points}, nil
}

// BuildPrompt renders the forecast instructions followed by the whole table.
func BuildPrompt(table *progresscsv.Table) string {
	return predictionInstructions + "Input data:\n" + table.String()
}

func readTable(r io.Reader) (*progresscsv.Table, error) {
	table, err := progresscsv.Parse(r)
	if err != nil {
		if errors.Is(err, progresscsv.ErrEmpty) {
			return nil, &Error{Kind: ErrValidation, Reason: "CSV file is empty.", cause: err}
		}
		return nil, &Error{Kind: ErrValidation, Reason: "Unable to read CSV file.", cause: err}
	}
	return table, nil
}

// chartPoints normalises table in place, derives planned progress when it is
// missing and extracts one chart point per row.
func chartPoints(table *progresscsv.Table) ([]models.ChartPoint, error) {
	table.NormalizeColumns()
	table.Rename("progress_percent", "actual_progress")

	if dups := table.Duplicates(); len(dups) > 0 {
		return nil, newError(ErrValidation, "Duplicate columns: "+strings.Join(dups, ", ")+". Check CSV format.")
	}

	if len(table.Missing("days_elapsed", "days_remaining")) > 0 {
		return nil, newError(ErrValidation, "Missing required columns: days_elapsed and/or days_remaining.")
	}

	if !table.Has("planned_progress") {
		planned := make([]string, len(table.Rows))
		for i := range table.Rows {
			elapsed, ok1 := table.Float(i, "days_elapsed")
			remaining, ok2 := table.Float(i, "days_remaining")
			if ok1 && ok2 && elapsed+remaining != 0 {
				planned[i] = strconv.FormatFloat(elapsed/(elapsed+remaining)*100, 'f', -1, 64)
			}
		}
		if err := table.AddColumn("planned_progress", planned); err != nil {
			return nil, internal("Could not derive planned progress", err)
		}
	}

	if missing := table.Missing("days_elapsed", "planned_progress", "actual_progress"); len(missing) > 0 {
		return nil, newError(ErrValidation, "Missing columns: "+strings.Join(missing, ", ")+". Check CSV format.")
	}

	points := make([]models.ChartPoint, len(table.Rows))
	for i := range table.Rows {
		points[i] = models.ChartPoint{
			DaysElapsed:     cell(table, i, "days_elapsed"),
			PlannedProgress: cell(table, i, "planned_progress"),
			ActualProgress:  cell(table, i, "actual_progress"),
		}
	}
	return points, nil
}

func cell(table *progresscsv.Table, row int, column string) *float64 {
	v, ok := table.Float(row, column)
	if !ok {
		return nil
	}
	return &v
}
