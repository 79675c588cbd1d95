package handoff

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestScheduleIncrements(t *testing.T) {
	s := NewSchedule(DefaultRetryOffsets...)

	want := []time.Duration{
		300 * time.Millisecond,
		300 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		backoff.Stop,
		backoff.Stop,
	}
	for i, w := range want {
		assert.Equal(t, w, s.NextBackOff(), "step %d", i)
	}

	s.Reset()
	assert.Equal(t, 300*time.Millisecond, s.NextBackOff())
}

func TestScheduleSortsAndClamps(t *testing.T) {
	s := NewSchedule(50*time.Millisecond, -time.Second, 20*time.Millisecond)

	assert.Equal(t, time.Duration(0), s.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, s.NextBackOff())
	assert.Equal(t, 30*time.Millisecond, s.NextBackOff())
	assert.Equal(t, backoff.Stop, s.NextBackOff())
}

func TestScheduleEmpty(t *testing.T) {
	assert.Equal(t, backoff.Stop, NewSchedule().NextBackOff())
}
