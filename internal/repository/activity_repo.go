package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"speechworks/internal/database"
	"speechworks/internal/models"
)

// ActivityRepository handles database operations for the activity catalog
type ActivityRepository struct {
	db database.DBTX
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db database.DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, name, description, category, instructions, target_sounds,
		       difficulty_level, is_active, created_at`

// ListActivities returns the activities matching filter with their items in order
func (r *ActivityRepository) ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.TherapyActivity, error) {
	var where []string
	var args []any

	if !filter.IncludeInactive {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.DifficultyLevel > 0 {
		where = append(where, "difficulty_level = ?")
		args = append(args, filter.DifficultyLevel)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(s) + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + activityColumns + " FROM activities"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category, difficulty_level, name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []models.TherapyActivity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetActivity retrieves an activity and its items by ID
func (r *ActivityRepository) GetActivity(ctx context.Context, id int64) (*models.TherapyActivity, error) {
	query := "SELECT " + activityColumns + " FROM activities WHERE id = ?"
	a, err := scanActivity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Items = items
	return a, nil
}

// GetItems returns an activity's items in list order
func (r *ActivityRepository) GetItems(ctx context.Context, activityID int64) ([]models.TrialItem, error) {
	byActivity, err := r.itemsFor(ctx, []int64{activityID})
	if err != nil {
		return nil, err
	}
	items := byActivity[activityID]
	if items == nil {
		items = []models.TrialItem{}
	}
	return items, nil
}

// CategoryCounts returns the number of active activities per category
func (r *ActivityRepository) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	query := `
		SELECT category, COUNT(*)
		FROM activities
		WHERE is_active = ?
		GROUP BY category
		ORDER BY category
	`
	rows, err := r.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	var counts []models.CategoryCount
	for rows.Next() {
		var c models.CategoryCount
		var category string
		if err := rows.Scan(&category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		c.Category = models.ActivityCategory(category)
		c.DisplayName = c.Category.DisplayName()
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// CreateActivity inserts an activity and its items, setting a.ID
func (r *ActivityRepository) CreateActivity(ctx context.Context, a *models.TherapyActivity) error {
	query := `
		INSERT INTO activities (name, description, category, instructions, target_sounds, difficulty_level, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		a.Name, a.Description, string(a.Category), a.Instructions, a.TargetSounds, a.DifficultyLevel, a.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	a.ID = id

	return r.AddItems(ctx, id, a.Items)
}

// AddItems appends items to an activity's list
func (r *ActivityRepository) AddItems(ctx context.Context, activityID int64, items []models.TrialItem) error {
	if len(items) == 0 {
		return nil
	}

	var next int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sort_order), -1) + 1 FROM activity_words WHERE activity_id = ?", activityID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read item order: %w", err)
	}

	query := `
		INSERT INTO activity_words (activity_id, word, phonetic, position, syllables, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		syllables := item.Syllables
		if syllables <= 0 {
			syllables = 1
		}
		if _, err := r.db.ExecContext(ctx, query,
			activityID, item.Word, item.Phonetic, item.Position, syllables, next+i); err != nil {
			return fmt.Errorf("failed to add item %q: %w", item.Word, err)
		}
	}
	return nil
}

// SetActive soft-deletes or restores an activity
func (r *ActivityRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE activities SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return expectOneRow(res, "activity", id)
}

// Count returns the number of activities, active or not
func (r *ActivityRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

func (r *ActivityRepository) attachItems(ctx context.Context, activities []models.TherapyActivity) error {
	if len(activities) == 0 {
		return nil
	}
	ids := make([]int64, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
	}

	byActivity, err := r.itemsFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range activities {
		items := byActivity[activities[i].ID]
		if items == nil {
			items = []models.TrialItem{}
		}
		activities[i].Items = items
	}
	return nil
}

func (r *ActivityRepository) itemsFor(ctx context.Context, ids []int64) (map[int64][]models.TrialItem, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `
		SELECT activity_id, word, phonetic, position, syllables
		FROM activity_words
		WHERE activity_id IN (` + placeholders(len(ids)) + `)
		ORDER BY activity_id, sort_order, id
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	byActivity := make(map[int64][]models.TrialItem, len(ids))
	for rows.Next() {
		var activityID int64
		var item models.TrialItem
		if err := rows.Scan(&activityID, &item.Word, &item.Phonetic, &item.Position, &item.Syllables); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		byActivity[activityID] = append(byActivity[activityID], item)
	}
	return byActivity, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*models.TherapyActivity, error) {
	a := &models.TherapyActivity{}
	var category string
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&category,
		&a.Instructions,
		&a.TargetSounds,
		&a.DifficultyLevel,
		&a.IsActive,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Category = models.ActivityCategory(category)
	return a, nil
}

func expectOneRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
