package order

import (
	"math/rand/v2"
	"time"
)

// Estimator produces estimated delivery times. Randomness lives behind
// this interface so tests can substitute deterministic bounds.
type Estimator interface {
	// Initial returns the estimate attached at order creation.
	Initial(now time.Time) time.Time
	// ForStatus returns the recomputed estimate on entering status, and
	// false for statuses that keep the previous estimate.
	ForStatus(now time.Time, status Status) (time.Time, bool)
}

// window is a delivery estimate range: base + [0, spread) minutes.
type window struct {
	base   int
	spread int
}

// Estimates tighten as the order progresses through the kitchen.
var statusWindows = map[Status]window{
	StatusConfirmed:      {base: 25, spread: 20}, // 25-45 min
	StatusPreparing:      {base: 20, spread: 15}, // 20-35 min
	StatusReady:          {base: 10, spread: 10}, // 10-20 min
	StatusOutForDelivery: {base: 5, spread: 10},  // 5-15 min
}

var initialWindow = window{base: 30, spread: 30} // 30-60 min

// RandomEstimator is the production Estimator: it draws uniformly from the
// window for each milestone.
type RandomEstimator struct {
	intn func(n int) int
}

// NewEstimator returns a RandomEstimator backed by math/rand.
func NewEstimator() *RandomEstimator {
	return &RandomEstimator{intn: rand.IntN}
}

func (e *RandomEstimator) Initial(now time.Time) time.Time {
	return now.Add(e.minutes(initialWindow))
}

func (e *RandomEstimator) ForStatus(now time.Time, status Status) (time.Time, bool) {
	w, ok := statusWindows[status]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(e.minutes(w)), true
}

func (e *RandomEstimator) minutes(w window) time.Duration {
	return time.Duration(w.base+e.intn(w.spread)) * time.Minute
}
