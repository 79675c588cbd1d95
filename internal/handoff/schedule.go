package handoff

import (
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryOffsets are the approximate times after start at which a pending
// request is retried when nothing else has triggered a consume.
var DefaultRetryOffsets = []time.Duration{
	300 * time.Millisecond,
	600 * time.Millisecond,
	1 * time.Second,
	1500 * time.Millisecond,
}

// Schedule is a backoff.BackOff that waits out the gaps between successive
// offsets and then stops. Driven by backoff.NewTicker, the ticker also fires
// once immediately, and each gap is timed from when the previous tick was
// received, so a slow receiver pushes later ticks back.
type Schedule struct {
	offsets []time.Duration
	next    int
}

var _ backoff.BackOff = (*Schedule)(nil)

// NewSchedule returns a schedule for the given offsets. Offsets are sorted and
// negative values treated as zero.
func NewSchedule(offsets ...time.Duration) *Schedule {
	sorted := make([]time.Duration, len(offsets))
	for i, o := range offsets {
		sorted[i] = max(o, 0)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &Schedule{offsets: sorted}
}

// NextBackOff returns the wait until the next offset, or backoff.Stop
func (s *Schedule) NextBackOff() time.Duration {
	if s.next >= len(s.offsets) {
		return backoff.Stop
	}
	var prev time.Duration
	if s.next > 0 {
		prev = s.offsets[s.next-1]
	}
	wait := s.offsets[s.next] - prev
	s.next++
	return wait
}

func (s *Schedule) Reset() {
	s.next = 0
}
