// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

// FakeClock satisfies workspace.Clock with a time the test controls. With
// a non-zero step every Now call moves the clock forward by step, so stage
// timings taken from it are positive and reproducible.
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFakeClock returns a clock frozen at initial, or at 2020-01-01 UTC when
// initial is zero.
func NewFakeClock(initial time.Time) *FakeClock {
	return NewSteppingClock(initial, 0)
}

// NewSteppingClock returns a clock starting at initial that advances by
// step after each reading.
func NewSteppingClock(initial time.Time, step time.Duration) *FakeClock {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FakeClock{now: initial, step: step}
}

// Now returns the current time, then applies the step.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
