package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"speechworks/internal/models"
	"speechworks/internal/repository"
	"speechworks/internal/validation"
)

func TestDefaultCatalogParses(t *testing.T) {
	activities, err := ParseCatalog(bytes.NewReader(defaultCatalog))
	require.NoError(t, err)
	require.NotEmpty(t, activities)

	seen := make(map[models.ActivityCategory]bool)
	for _, a := range activities {
		assert.True(t, a.IsActive)
		assert.NotEmpty(t, a.Items, a.Name)
		seen[a.Category] = true
	}
	for _, c := range models.Categories {
		assert.True(t, seen[c], "no default activity for %s", c)
	}
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "- name: A\n  category: voice\n  difficulty: 1\n  colour: red\n"},
		{"bad category", "- name: A\n  category: singing\n  difficulty: 1\n"},
		{"bad difficulty", "- name: A\n  category: voice\n  difficulty: 9\n"},
		{"blank word", "- name: A\n  category: voice\n  difficulty: 1\n  items:\n    - {word: ' '}\n"},
		{"not a list", "name: A\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := ParseCatalog(strings.NewReader("- name: A\n  category: singing\n  difficulty: 1\n"))
	assert.True(t, validation.IsValidationError(err))

	empty, err := ParseCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSeedCatalogOnlyWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	added, err := SeedCatalog(ctx, db, logger)
	require.NoError(t, err)
	assert.Positive(t, added)

	again, err := SeedCatalog(ctx, db, logger)
	require.NoError(t, err)
	assert.Zero(t, again)

	n, err := repository.NewActivityRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, added, n)
}

func TestCatalogService(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := SeedCatalog(ctx, db, nil)
	require.NoError(t, err)

	clients := repository.NewClientRepository(db)
	ada := models.Client{TherapistID: 3, FirstName: "Ada", IsActive: true}
	require.NoError(t, clients.CreateClient(ctx, &ada))
	gone := models.Client{TherapistID: 3, FirstName: "Gone"}
	require.NoError(t, clients.CreateClient(ctx, &gone))

	svc := NewCatalogService(repository.NewActivityRepository(db), clients)

	artic, err := svc.ListActivities(ctx, models.ActivityFilter{Category: models.CategoryArticulation})
	require.NoError(t, err)
	require.NotEmpty(t, artic)
	for _, a := range artic {
		assert.Equal(t, models.CategoryArticulation, a.Category)
	}

	_, err = svc.ListActivities(ctx, models.ActivityFilter{Category: "singing"})
	assert.True(t, validation.IsValidationError(err))
	_, err = svc.ListActivities(ctx, models.ActivityFilter{DifficultyLevel: 6})
	assert.True(t, validation.IsValidationError(err))

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, len(models.Categories))

	got, err := svc.GetActivity(ctx, artic[0].ID)
	require.NoError(t, err)
	assert.Equal(t, artic[0].Items, got.Items)

	list, err := svc.ListClients(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].DisplayName())

	_, err = svc.GetClient(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	owned, err := svc.TherapistClient(ctx, 3, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.ID, owned.ID)
	_, err = svc.TherapistClient(ctx, 4, ada.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.TherapistClient(ctx, 3, gone.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := svc.ActiveActivity(ctx, artic[0].ID)
	require.NoError(t, err)
	assert.Equal(t, artic[0].Name, active.Name)
	require.NoError(t, repository.NewActivityRepository(db).SetActive(ctx, artic[0].ID, false))
	_, err = svc.ActiveActivity(ctx, artic[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
