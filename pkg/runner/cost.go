package runner

import "sync"

// CostTracker is the single cross-task mutable shared resource in the
// engine: every trial's completion adds its cost, and every trial's
// pre-check reads the running total against the budget. The check and the
// increment are guarded because parallel tasks share one tracker. The
// budget is a soft ceiling: a trial already in flight may push the total
// over before the next trial observes it and skips.
type CostTracker struct {
	mu      sync.Mutex
	spent   float64
	limit   float64
	limited bool
}

// NewCostTracker creates a tracker. A nil maxCost means unlimited spend.
func NewCostTracker(maxCost *float64) *CostTracker {
	t := &CostTracker{}
	if maxCost != nil {
		t.limited = true
		t.limit = *maxCost
	}
	return t
}

// Add records spend from a completed trial.
func (t *CostTracker) Add(cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent += cost
}

// Exceeded reports whether the budget has been met or exceeded.
func (t *CostTracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limited && t.spent >= t.limit
}

// Spent returns the cumulative recorded cost.
func (t *CostTracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}
