package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"speechworks/internal/database"
	"speechworks/internal/logging"
	"speechworks/internal/models"
	"speechworks/internal/repository"
)

// BackupVersion is written to every export and checked on import
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string                             `json:"version"`
	ExportedAt   time.Time                          `json:"exported_at"`
	DatabaseType string                             `json:"database_type"`
	Clients      []models.Client                    `json:"clients"`
	Activities   []models.TherapyActivity           `json:"activities"`
	Sessions     []models.TherapySession            `json:"sessions"`
	Assignments  []models.SessionActivityAssignment `json:"assignments"`
	Progress     []models.ProgressRecord            `json:"progress"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db     *database.DB
	logger *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger *zap.Logger) *BackupService {
	return &BackupService{db: db, logger: logging.OrNop(logger)}
}

// Export writes a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	s.logger.Info("database exported", zap.String("path", outputPath))
	return nil
}

// ExportToWriter exports the database to an io.Writer
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup, err := s.collect(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.Info("backup written",
		zap.Int("clients", len(backup.Clients)),
		zap.Int("activities", len(backup.Activities)),
		zap.Int("sessions", len(backup.Sessions)),
		zap.Int("assignments", len(backup.Assignments)),
		zap.Int("progress", len(backup.Progress)))
	return nil
}

func (s *BackupService) collect(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.Name(),
	}

	clients, err := repository.NewClientRepository(s.db).ListClients(ctx, models.ClientFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to export clients: %w", err)
	}
	backup.Clients = clients

	activities, err := repository.NewActivityRepository(s.db).ListActivities(ctx, models.ActivityFilter{IncludeInactive: true})
	if err != nil {
		return nil, fmt.Errorf("failed to export activities: %w", err)
	}
	backup.Activities = activities

	sessionRepo := repository.NewSessionRepository(s.db)
	sessions, err := sessionRepo.ListSessions(ctx, models.SessionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to export sessions: %w", err)
	}
	backup.Sessions = sessions

	for _, sess := range sessions {
		assignments, err := sessionRepo.GetAssignments(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export assignments: %w", err)
		}
		backup.Assignments = append(backup.Assignments, assignments...)
	}

	progressRepo := repository.NewProgressRepository(s.db)
	for _, c := range clients {
		records, err := progressRepo.ListProgress(ctx, c.ID, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("failed to export progress: %w", err)
		}
		backup.Progress = append(backup.Progress, records...)
	}

	return backup, nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup into the database in one transaction.
// Row IDs are preserved, so the target tables should be empty.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	s.logger.Info("importing backup",
		zap.String("version", backup.Version),
		zap.Time("exported_at", backup.ExportedAt),
		zap.String("source_database", backup.DatabaseType))

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		// Import in order of dependencies
		steps := []struct {
			name string
			fn   func(context.Context, *database.Tx, *BackupData) error
		}{
			{"clients", importClients},
			{"activities", importActivities},
			{"sessions", importSessions},
			{"assignments", importAssignments},
			{"progress", importProgress},
		}
		for _, step := range steps {
			if err := step.fn(ctx, tx, &backup); err != nil {
				return fmt.Errorf("failed to import %s: %w", step.name, err)
			}
		}
		return resetSequences(ctx, tx)
	})
	if err != nil {
		return err
	}

	s.logger.Info("database import completed",
		zap.Int("clients", len(backup.Clients)),
		zap.Int("activities", len(backup.Activities)),
		zap.Int("sessions", len(backup.Sessions)))
	return nil
}

func importClients(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, c := range b.Clients {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO clients (id, therapist_id, first_name, last_name, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			c.ID, c.TherapistID, c.FirstName, c.LastName, c.IsActive, storedTime(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("client %d: %w", c.ID, err)
		}
	}
	return nil
}

func importActivities(ctx context.Context, tx *database.Tx, b *BackupData) error {
	repo := repository.NewActivityRepository(tx)
	for _, a := range b.Activities {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activities (id, name, description, category, instructions, target_sounds, difficulty_level, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.Name, a.Description, string(a.Category), a.Instructions, a.TargetSounds, a.DifficultyLevel, a.IsActive, storedTime(a.CreatedAt))
		if err != nil {
			return fmt.Errorf("activity %d: %w", a.ID, err)
		}
		if err := repo.AddItems(ctx, a.ID, a.Items); err != nil {
			return fmt.Errorf("activity %d: %w", a.ID, err)
		}
	}
	return nil
}

func importSessions(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, s := range b.Sessions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO therapy_sessions (id, client_id, therapist_id, session_date, duration_minutes, status,
				session_notes, soap_subjective, soap_objective, soap_assessment, soap_plan, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, s.ID, s.ClientID, s.TherapistID, storedTime(s.ScheduledStart), s.DurationMinutes, string(s.Status),
			s.SessionNotes, s.SOAPSubjective, s.SOAPObjective, s.SOAPAssessment, s.SOAPPlan,
			storedTime(s.CreatedAt), storedTime(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("session %d: %w", s.ID, err)
		}
	}
	return nil
}

func importAssignments(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, a := range b.Assignments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_activities (id, session_id, activity_id, trials_attempted, trials_correct, accuracy_percentage, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.SessionID, a.ActivityID, a.TrialsAttempted, a.TrialsCorrect, a.AccuracyPercentage, a.Notes, storedTime(a.CreatedAt))
		if err != nil {
			return fmt.Errorf("assignment %d: %w", a.ID, err)
		}
	}
	return nil
}

func importProgress(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, p := range b.Progress {
		var goalID any
		if p.GoalID != nil {
			goalID = *p.GoalID
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO progress_records (id, client_id, goal_id, record_date, category, accuracy_percentage, trials_total, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.ClientID, goalID, storedTime(p.RecordDate), string(p.Category), p.AccuracyPercentage, p.TrialsTotal, p.Notes, storedTime(p.CreatedAt))
		if err != nil {
			return fmt.Errorf("progress record %d: %w", p.ID, err)
		}
	}
	return nil
}

// resetSequences moves PostgreSQL id sequences past the imported rows. The other
// dialects advance their counters on explicit inserts.
func resetSequences(ctx context.Context, tx *database.Tx) error {
	if tx.GetDialect().Name() != "postgres" {
		return nil
	}
	for _, table := range []string{"clients", "activities", "activity_words", "therapy_sessions", "session_activities", "progress_records"} {
		query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM %s", table, table)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to reset %s sequence: %w", table, err)
		}
	}
	return nil
}

func storedTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Second)
}
