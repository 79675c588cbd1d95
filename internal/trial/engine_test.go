package trial

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechworks/internal/models"
)

func noShuffle(int, func(i, j int)) {}

func reverse(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func activityWithItems(n int) models.TherapyActivity {
	items := make([]models.TrialItem, n)
	for i := range items {
		items[i] = models.TrialItem{Word: fmt.Sprintf("word-%d", i), Syllables: 1}
	}
	return models.TherapyActivity{ID: 7, Name: "R blends", Category: models.CategoryArticulation, Items: items}
}

var testClient = models.Client{ID: 3, FirstName: "Ada", LastName: "L"}

func TestTotalTrials(t *testing.T) {
	tests := []struct {
		items int
		want  int
	}{
		{0, 0},
		{1, 1},
		{5, 5},
		{10, 10},
		{12, 10},
		{40, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d items", tt.items), func(t *testing.T) {
			e := NewEngine(noShuffle)
			e.Start(activityWithItems(tt.items), testClient, nil)
			assert.Equal(t, tt.want, e.TotalTrials())
		})
	}
}

func TestEmptyActivity(t *testing.T) {
	e := NewEngine(noShuffle)
	e.Start(activityWithItems(0), testClient, nil)

	assert.Equal(t, StateComplete, e.State())
	assert.True(t, e.Empty())
	_, ok := e.CurrentPrompt()
	assert.False(t, ok)
	assert.Equal(t, 0.0, e.Accuracy())

	resp := e.RecordResponse(true)
	assert.Equal(t, ResponseAlreadyComplete, resp.Status)
	assert.Equal(t, 0, e.TrialsCompleted())

	_, err := e.Finish()
	assert.ErrorIs(t, err, ErrNoTrials)
}

func TestFullRunScenario(t *testing.T) {
	e := NewEngine(nil)
	e.Start(activityWithItems(12), testClient, &models.Origin{SessionID: 1, AssignmentID: 2})
	require.Equal(t, 10, e.TotalTrials())
	require.Equal(t, StateRunning, e.State())

	for i := 0; i < 10; i++ {
		_, ok := e.CurrentPrompt()
		require.True(t, ok, "prompt %d", i)
		resp := e.RecordResponse(i < 7)
		require.Equal(t, ResponseRecorded, resp.Status)
		require.Equal(t, i == 9, resp.Complete)
	}

	assert.Equal(t, StateComplete, e.State())
	assert.Equal(t, 70.0, e.Accuracy())

	res, err := e.Finish()
	require.NoError(t, err)
	want := Result{ClientID: 3, ActivityID: 7, AccuracyPercentage: 70, TrialsAttempted: 10, TrialsCorrect: 7}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Finish() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordResponsePastBound(t *testing.T) {
	e := NewEngine(noShuffle)
	e.Start(activityWithItems(3), testClient, nil)
	for i := 0; i < 3; i++ {
		e.RecordResponse(true)
	}

	for i := 0; i < 5; i++ {
		resp := e.RecordResponse(false)
		assert.Equal(t, ResponseAlreadyComplete, resp.Status)
		assert.True(t, resp.Complete)
	}
	assert.Equal(t, 3, e.TrialsCompleted())
	assert.Equal(t, 3, e.TrialsCorrect())
	assert.Equal(t, 100.0, e.Accuracy())
}

func TestCurrentPromptDoesNotAdvance(t *testing.T) {
	e := NewEngine(noShuffle)
	e.Start(activityWithItems(4), testClient, nil)

	first, ok := e.CurrentPrompt()
	require.True(t, ok)
	again, _ := e.CurrentPrompt()
	assert.Equal(t, first, again)
	assert.Equal(t, "word-0", first.Word)

	e.RecordResponse(false)
	next, ok := e.CurrentPrompt()
	require.True(t, ok)
	assert.Equal(t, "word-1", next.Word)
}

func TestStartShufflesACopy(t *testing.T) {
	activity := activityWithItems(4)
	e := NewEngine(reverse)
	e.Start(activity, testClient, nil)

	got, _ := e.CurrentPrompt()
	assert.Equal(t, "word-3", got.Word)
	assert.Equal(t, "word-0", activity.Items[0].Word, "source items must not be reordered")
}

func TestReset(t *testing.T) {
	calls := 0
	e := NewEngine(func(n int, swap func(i, j int)) { calls++ })
	e.Start(activityWithItems(5), testClient, nil)
	e.RecordResponse(true)
	e.RecordResponse(false)
	for i := 0; i < 3; i++ {
		e.RecordResponse(true)
	}
	require.Equal(t, StateComplete, e.State())

	require.NoError(t, e.Reset())
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateRunning, e.State())
	assert.Equal(t, 0, e.TrialsCompleted())
	assert.Equal(t, 0, e.TrialsCorrect())
	assert.Equal(t, 5, e.TotalTrials())
	assert.Equal(t, 0.0, e.Accuracy())
}

func TestLifecycleErrors(t *testing.T) {
	e := NewEngine(noShuffle)
	assert.Equal(t, StateIdle, e.State())
	assert.ErrorIs(t, e.Reset(), ErrNotStarted)
	_, err := e.Finish()
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, ResponseAlreadyComplete, e.RecordResponse(true).Status)

	e.Start(activityWithItems(2), testClient, nil)
	_, err = e.Finish()
	assert.ErrorIs(t, err, ErrNoTrials)

	e.RecordResponse(true)
	res, err := e.Finish()
	require.NoError(t, err)
	assert.Equal(t, 1, res.TrialsAttempted)

	_, err = e.Finish()
	assert.ErrorIs(t, err, ErrFinished)
	assert.ErrorIs(t, e.Reset(), ErrFinished)
	assert.Equal(t, ResponseAlreadyComplete, e.RecordResponse(true).Status)
	assert.Equal(t, 1, e.TrialsCompleted())
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		correct, completed int
		want               float64
	}{
		{0, 0, 0},
		{0, 4, 0},
		{1, 4, 25},
		{7, 10, 70},
		{10, 10, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d of %d", tt.correct, tt.completed), func(t *testing.T) {
			assert.InDelta(t, tt.want, accuracy(tt.correct, tt.completed), 1e-9)
		})
	}
}

func TestSnapshot(t *testing.T) {
	e := NewEngine(noShuffle)
	e.Start(activityWithItems(2), testClient, &models.Origin{SessionID: 11, AssignmentID: 12})
	e.RecordResponse(true)

	snap := e.Snapshot()
	assert.Equal(t, "running", snap.State)
	assert.Equal(t, 1, snap.CurrentIndex)
	require.NotNil(t, snap.Prompt)
	assert.Equal(t, "word-1", snap.Prompt.Word)
	require.NotNil(t, snap.Origin)
	assert.Equal(t, int64(11), snap.Origin.SessionID)
	assert.Equal(t, 100.0, snap.Accuracy)
}

// Every permutation of three items should appear with roughly equal frequency.
func TestDefaultShuffleIsUniform(t *testing.T) {
	const runs = 60000
	counts := map[string]int{}
	activity := activityWithItems(3)

	for i := 0; i < runs; i++ {
		e := NewEngine(rand.Shuffle)
		e.Start(activity, testClient, nil)
		key := ""
		for {
			item, ok := e.CurrentPrompt()
			if !ok {
				break
			}
			key += item.Word[len(item.Word)-1:]
			e.RecordResponse(true)
		}
		counts[key]++
	}

	require.Len(t, counts, 6)
	expected := float64(runs) / 6
	for perm, n := range counts {
		assert.InEpsilon(t, expected, float64(n), 0.1, "permutation %s", perm)
	}
}
