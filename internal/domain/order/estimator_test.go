package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimator_Windows(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		status   Status
		min, max int // minutes, inclusive bounds
	}{
		{StatusConfirmed, 25, 44},
		{StatusPreparing, 20, 34},
		{StatusReady, 10, 19},
		{StatusOutForDelivery, 5, 14},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			lowest := &RandomEstimator{intn: func(int) int { return 0 }}
			got, ok := lowest.ForStatus(now, tt.status)
			assert.True(t, ok)
			assert.Equal(t, now.Add(time.Duration(tt.min)*time.Minute), got)

			highest := &RandomEstimator{intn: func(n int) int { return n - 1 }}
			got, ok = highest.ForStatus(now, tt.status)
			assert.True(t, ok)
			assert.Equal(t, now.Add(time.Duration(tt.max)*time.Minute), got)
		})
	}
}

func TestEstimator_Initial(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	lowest := &RandomEstimator{intn: func(int) int { return 0 }}
	assert.Equal(t, now.Add(30*time.Minute), lowest.Initial(now))

	highest := &RandomEstimator{intn: func(n int) int { return n - 1 }}
	assert.Equal(t, now.Add(59*time.Minute), highest.Initial(now))
}

func TestEstimator_NoRecomputeStatuses(t *testing.T) {
	e := NewEstimator()
	now := time.Now()

	for _, s := range []Status{StatusPlaced, StatusDelivered, StatusCancelled} {
		_, ok := e.ForStatus(now, s)
		assert.False(t, ok, "%s must keep the previous estimate", s)
	}
}

func TestEstimator_RandomWithinBounds(t *testing.T) {
	e := NewEstimator()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	for range 100 {
		got := e.Initial(now)
		diff := got.Sub(now)
		assert.GreaterOrEqual(t, diff, 30*time.Minute)
		assert.Less(t, diff, 60*time.Minute)
	}
}
