package service

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"speechworks/internal/database"
	"speechworks/internal/logging"
	"speechworks/internal/models"
	"speechworks/internal/repository"
	"speechworks/internal/validation"
)

//go:embed seed/activities.yaml
var defaultCatalog []byte

type catalogEntry struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	Category     string        `yaml:"category"`
	Instructions string        `yaml:"instructions"`
	TargetSounds string        `yaml:"target_sounds"`
	Difficulty   int           `yaml:"difficulty"`
	Items        []catalogItem `yaml:"items"`
}

type catalogItem struct {
	Word      string `yaml:"word"`
	Phonetic  string `yaml:"phonetic"`
	Position  string `yaml:"position"`
	Syllables int    `yaml:"syllables"`
}

// ParseCatalog reads a YAML list of activities. Every activity is validated and
// returned active.
func ParseCatalog(r io.Reader) ([]models.TherapyActivity, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var entries []catalogEntry
	if err := dec.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	activities := make([]models.TherapyActivity, 0, len(entries))
	for i, e := range entries {
		a := models.TherapyActivity{
			Name:            e.Name,
			Description:     e.Description,
			Category:        models.ActivityCategory(e.Category),
			Instructions:    e.Instructions,
			TargetSounds:    e.TargetSounds,
			DifficultyLevel: e.Difficulty,
			IsActive:        true,
		}
		for _, it := range e.Items {
			a.Items = append(a.Items, models.TrialItem(it))
		}
		if err := validation.ValidateActivity(a); err != nil {
			return nil, fmt.Errorf("catalog entry %d (%q): %w", i, e.Name, err)
		}
		activities = append(activities, a)
	}
	return activities, nil
}

// SeedCatalog loads the built-in activities when the catalog is empty and
// returns how many were added
func SeedCatalog(ctx context.Context, db *database.DB, logger *zap.Logger) (int, error) {
	activities, err := ParseCatalog(bytes.NewReader(defaultCatalog))
	if err != nil {
		return 0, err
	}
	return seedActivities(ctx, db, activities, logging.OrNop(logger))
}

func seedActivities(ctx context.Context, db *database.DB, activities []models.TherapyActivity, logger *zap.Logger) (int, error) {
	added := 0
	err := db.WithTx(ctx, func(tx *database.Tx) error {
		repo := repository.NewActivityRepository(tx)
		n, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Debug("activity catalog already populated", zap.Int("activities", n))
			return nil
		}
		for i := range activities {
			if err := repo.CreateActivity(ctx, &activities[i]); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed activities: %w", err)
	}
	if added > 0 {
		logger.Info("seeded activity catalog", zap.Int("activities", added))
	}
	return added, nil
}

// CatalogService serves the activity catalog and client directory to the practice views
type CatalogService struct {
	activities ActivityStore
	clients    ClientStore
}

// NewCatalogService creates a new catalog service
func NewCatalogService(activities ActivityStore, clients ClientStore) *CatalogService {
	return &CatalogService{activities: activities, clients: clients}
}

// ListActivities returns active activities matching filter
func (s *CatalogService) ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.TherapyActivity, error) {
	if filter.Category != "" {
		if err := validation.ValidateCategory(filter.Category); err != nil {
			return nil, err
		}
	}
	if filter.DifficultyLevel != 0 {
		if err := validation.ValidateDifficulty(filter.DifficultyLevel); err != nil {
			return nil, err
		}
	}
	return s.activities.ListActivities(ctx, filter)
}

// GetActivity returns one activity with its items
func (s *CatalogService) GetActivity(ctx context.Context, id int64) (*models.TherapyActivity, error) {
	return s.activities.GetActivity(ctx, id)
}

// Categories returns the categories that have active activities, with counts
func (s *CatalogService) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	return s.activities.CategoryCounts(ctx)
}

// ListClients returns a therapist's active clients
func (s *CatalogService) ListClients(ctx context.Context, therapistID int64) ([]models.Client, error) {
	return s.clients.ListClients(ctx, models.ClientFilter{TherapistID: therapistID, ActiveOnly: true})
}

// GetClient returns one client
func (s *CatalogService) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	return s.clients.GetClient(ctx, id)
}

// ActiveActivity returns an activity that is offered for practice. Inactive
// activities are reported as not found.
func (s *CatalogService) ActiveActivity(ctx context.Context, id int64) (*models.TherapyActivity, error) {
	a, err := s.activities.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	return a, nil
}

// TherapistClient returns one of the therapist's active clients. Other
// therapists' and inactive clients are reported as not found.
func (s *CatalogService) TherapistClient(ctx context.Context, therapistID, id int64) (*models.Client, error) {
	c, err := s.clients.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.TherapistID != therapistID || !c.IsActive {
		return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}
	return c, nil
}
