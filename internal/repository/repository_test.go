package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechworks/internal/database"
	"speechworks/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fsys, err := database.MigrationsFS("")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(context.Background(), fsys, nil))
	return db
}

func seedClient(t *testing.T, db database.DBTX, therapistID int64, first string) models.Client {
	t.Helper()
	c := models.Client{TherapistID: therapistID, FirstName: first, LastName: "Test", IsActive: true}
	require.NoError(t, NewClientRepository(db).CreateClient(context.Background(), &c))
	return c
}

func seedActivity(t *testing.T, db database.DBTX, name string, category models.ActivityCategory, words ...string) models.TherapyActivity {
	t.Helper()
	a := models.TherapyActivity{Name: name, Category: category, DifficultyLevel: 1, IsActive: true}
	for _, w := range words {
		a.Items = append(a.Items, models.TrialItem{Word: w})
	}
	require.NoError(t, NewActivityRepository(db).CreateActivity(context.Background(), &a))
	return a
}

func TestActivityRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)

	sun := seedActivity(t, db, "Initial S", models.CategoryArticulation, "sun", "sock", "soap")
	seedActivity(t, db, "Easy onset", models.CategoryFluency, "apple")
	retired := seedActivity(t, db, "Retired", models.CategoryArticulation, "old")
	require.NoError(t, repo.SetActive(ctx, retired.ID, false))

	t.Run("get keeps item order", func(t *testing.T) {
		got, err := repo.GetActivity(ctx, sun.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 3)
		assert.Equal(t, []string{"sun", "sock", "soap"}, []string{got.Items[0].Word, got.Items[1].Word, got.Items[2].Word})
		assert.Equal(t, 1, got.Items[0].Syllables)
	})

	t.Run("add items appends", func(t *testing.T) {
		require.NoError(t, repo.AddItems(ctx, sun.ID, []models.TrialItem{{Word: "seal"}}))
		items, err := repo.GetItems(ctx, sun.ID)
		require.NoError(t, err)
		require.Len(t, items, 4)
		assert.Equal(t, "seal", items[3].Word)
	})

	t.Run("list filters", func(t *testing.T) {
		all, err := repo.ListActivities(ctx, models.ActivityFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2, "inactive activities are hidden")

		artic, err := repo.ListActivities(ctx, models.ActivityFilter{Category: models.CategoryArticulation})
		require.NoError(t, err)
		require.Len(t, artic, 1)
		assert.NotEmpty(t, artic[0].Items)

		search, err := repo.ListActivities(ctx, models.ActivityFilter{Search: "ONSET"})
		require.NoError(t, err)
		require.Len(t, search, 1)
		assert.Equal(t, "Easy onset", search[0].Name)

		everything, err := repo.ListActivities(ctx, models.ActivityFilter{IncludeInactive: true})
		require.NoError(t, err)
		assert.Len(t, everything, 3)
	})

	t.Run("category counts", func(t *testing.T) {
		counts, err := repo.CategoryCounts(ctx)
		require.NoError(t, err)
		require.Len(t, counts, 2)
		assert.Equal(t, models.CategoryArticulation, counts[0].Category)
		assert.Equal(t, 1, counts[0].Count)
		assert.Equal(t, "Articulation", counts[0].DisplayName)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetActivity(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.SetActive(ctx, 9999, true), ErrNotFound)
	})

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestClientRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewClientRepository(db)

	a := seedClient(t, db, 1, "Ada")
	seedClient(t, db, 2, "Bea")
	inactive := models.Client{TherapistID: 1, FirstName: "Cal", LastName: "Gone"}
	require.NoError(t, repo.CreateClient(ctx, &inactive))

	mine, err := repo.ListClients(ctx, models.ClientFilter{TherapistID: 1, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	all, err := repo.ListClients(ctx, models.ClientFilter{TherapistID: 1})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := repo.GetClient(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Test", got.DisplayName())

	_, err = repo.GetClient(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)

	client := seedClient(t, db, 1, "Ada")
	other := seedClient(t, db, 2, "Bea")
	activity := seedActivity(t, db, "Initial S", models.CategoryArticulation, "sun")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mk := func(clientID, therapistID int64, start time.Time, status models.SessionStatus) models.TherapySession {
		s := models.TherapySession{ClientID: clientID, TherapistID: therapistID, ScheduledStart: start, DurationMinutes: 45, Status: status}
		require.NoError(t, repo.CreateSession(ctx, &s))
		return s
	}
	morning := mk(client.ID, 1, base, models.StatusScheduled)
	afternoon := mk(client.ID, 1, base.Add(5*time.Hour), models.StatusCompleted)
	mk(client.ID, 1, base.Add(48*time.Hour), models.StatusScheduled)
	mk(other.ID, 2, base, models.StatusScheduled)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetSession(ctx, morning.ID)
		require.NoError(t, err)
		assert.True(t, got.ScheduledStart.Equal(base))
		assert.Equal(t, models.StatusScheduled, got.Status)
		assert.Equal(t, 45, got.DurationMinutes)

		_, err = repo.GetSession(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by therapist and day", func(t *testing.T) {
		from, to := base.Add(-time.Hour), base.Add(23*time.Hour)
		got, err := repo.ListSessions(ctx, models.SessionFilter{TherapistID: 1, From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, morning.ID, got[0].ID)
		assert.Equal(t, afternoon.ID, got[1].ID)
	})

	t.Run("list by status with limit", func(t *testing.T) {
		got, err := repo.ListSessions(ctx, models.SessionFilter{
			TherapistID: 1,
			Statuses:    []models.SessionStatus{models.StatusScheduled, models.StatusInProgress},
			Limit:       1,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, morning.ID, got[0].ID)
	})

	t.Run("status update", func(t *testing.T) {
		require.NoError(t, repo.UpdateSessionStatus(ctx, morning.ID, models.StatusInProgress))
		got, err := repo.GetSession(ctx, morning.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, got.Status)
		assert.ErrorIs(t, repo.UpdateSessionStatus(ctx, 9999, models.StatusCompleted), ErrNotFound)
	})

	t.Run("assignments", func(t *testing.T) {
		first := models.SessionActivityAssignment{SessionID: morning.ID, ActivityID: activity.ID}
		second := models.SessionActivityAssignment{SessionID: morning.ID, ActivityID: activity.ID}
		require.NoError(t, repo.AddAssignment(ctx, &first))
		require.NoError(t, repo.AddAssignment(ctx, &second))

		got, err := repo.GetAssignments(ctx, morning.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.False(t, got[0].Attempted())

		updated, err := repo.UpdateAssignment(ctx, morning.ID, first.ID, models.AssignmentUpdate{TrialsAttempted: 10, TrialsCorrect: 7, Notes: "good"})
		require.NoError(t, err)
		assert.Equal(t, 10, updated.TrialsAttempted)
		assert.InDelta(t, 70.0, updated.AccuracyPercentage, 1e-9)
		assert.True(t, updated.Attempted())
		assert.Equal(t, "good", updated.Notes)

		_, err = repo.UpdateAssignment(ctx, morning.ID, 9999, models.AssignmentUpdate{})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.UpdateAssignment(ctx, afternoon.ID, second.ID, models.AssignmentUpdate{TrialsAttempted: 1})
		assert.ErrorIs(t, err, ErrNotFound, "assignment belongs to another session")

		empty, err := repo.GetAssignments(ctx, afternoon.ID)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})
}

func TestProgressRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewProgressRepository(db)
	client := seedClient(t, db, 1, "Ada")

	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	goal := int64(4)
	for i, acc := range []float64{50, 60, 80} {
		rec := models.ProgressRecord{
			ClientID:           client.ID,
			RecordDate:         day.AddDate(0, 0, i*10),
			Category:           models.CategoryArticulation,
			AccuracyPercentage: acc,
			TrialsTotal:        10,
		}
		if i == 0 {
			rec.GoalID = &goal
		}
		require.NoError(t, repo.RecordProgress(ctx, &rec))
		assert.NotZero(t, rec.ID)
	}

	all, err := repo.ListProgress(ctx, client.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NotNil(t, all[0].GoalID)
	assert.Equal(t, goal, *all[0].GoalID)
	assert.Nil(t, all[1].GoalID)

	recent, err := repo.ListProgress(ctx, client.ID, day.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 60.0, recent[0].AccuracyPercentage)
}

func TestRepositoriesInTransaction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *database.Tx) error {
		a := models.TherapyActivity{Name: "Tx", Category: models.CategoryVoice, DifficultyLevel: 1, IsActive: true,
			Items: []models.TrialItem{{Word: "hum"}}}
		return NewActivityRepository(tx).CreateActivity(ctx, &a)
	})
	require.NoError(t, err)

	n, err := NewActivityRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
