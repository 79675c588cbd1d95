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

// ClientRepository handles database operations for clients
type ClientRepository struct {
	db database.DBTX
}

// NewClientRepository creates a new client repository
func NewClientRepository(db database.DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

// CreateClient inserts a client, setting c.ID
func (r *ClientRepository) CreateClient(ctx context.Context, c *models.Client) error {
	query := "INSERT INTO clients (therapist_id, first_name, last_name, is_active) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, c.TherapistID, c.FirstName, c.LastName, c.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	c.ID = id
	return nil
}

// GetClient retrieves a client by ID
func (r *ClientRepository) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	query := "SELECT id, therapist_id, first_name, last_name, is_active, created_at FROM clients WHERE id = ?"
	c := &models.Client{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.TherapistID,
		&c.FirstName,
		&c.LastName,
		&c.IsActive,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// ListClients returns clients ordered by name
func (r *ClientRepository) ListClients(ctx context.Context, filter models.ClientFilter) ([]models.Client, error) {
	var where []string
	var args []any
	if filter.TherapistID != 0 {
		where = append(where, "therapist_id = ?")
		args = append(args, filter.TherapistID)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}

	query := "SELECT id, therapist_id, first_name, last_name, is_active, created_at FROM clients"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_name, first_name, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.TherapistID, &c.FirstName, &c.LastName, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
