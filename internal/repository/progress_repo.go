package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"speechworks/internal/database"
	"speechworks/internal/models"
)

// ProgressRepository stores dated accuracy records per client
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// RecordProgress inserts a progress record, setting rec.ID
func (r *ProgressRepository) RecordProgress(ctx context.Context, rec *models.ProgressRecord) error {
	if rec.RecordDate.IsZero() {
		rec.RecordDate = time.Now()
	}
	rec.RecordDate = dbTime(rec.RecordDate)

	var goalID sql.NullInt64
	if rec.GoalID != nil {
		goalID = sql.NullInt64{Int64: *rec.GoalID, Valid: true}
	}

	query := `
		INSERT INTO progress_records (client_id, goal_id, record_date, category, accuracy_percentage, trials_total, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		rec.ClientID, goalID, rec.RecordDate, string(rec.Category), rec.AccuracyPercentage, rec.TrialsTotal, rec.Notes)
	if err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	rec.ID = id
	return nil
}

// ListProgress returns a client's records on or after since, oldest first.
// A zero since returns every record.
func (r *ProgressRepository) ListProgress(ctx context.Context, clientID int64, since time.Time) ([]models.ProgressRecord, error) {
	query := `
		SELECT id, client_id, goal_id, record_date, category, accuracy_percentage, trials_total, notes, created_at
		FROM progress_records
		WHERE client_id = ?
	`
	args := []any{clientID}
	if !since.IsZero() {
		query += " AND record_date >= ?"
		args = append(args, dbTime(since))
	}
	query += " ORDER BY record_date, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var records []models.ProgressRecord
	for rows.Next() {
		var rec models.ProgressRecord
		var goalID sql.NullInt64
		var category string
		err := rows.Scan(
			&rec.ID,
			&rec.ClientID,
			&goalID,
			&rec.RecordDate,
			&category,
			&rec.AccuracyPercentage,
			&rec.TrialsTotal,
			&rec.Notes,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}
		if goalID.Valid {
			id := goalID.Int64
			rec.GoalID = &id
		}
		rec.Category = models.ActivityCategory(category)
		records = append(records, rec)
	}
	return records, rows.Err()
}
