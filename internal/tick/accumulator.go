// Package tick converts variable frame deltas into a bounded number of fixed
// simulation steps.
package tick

import "time"

const DefaultMaxSteps = 3

// Accumulator is a fixed-timestep accumulator. The zero value is not usable;
// construct with New.
type Accumulator struct {
	step     time.Duration
	maxDelta time.Duration
	maxSteps int
	acc      time.Duration
}

// New returns an accumulator for the given tick rate. Each frame delta is
// clamped to one tick, and at most maxSteps ticks run per Advance.
func New(tickRateHz, maxSteps int) *Accumulator {
	if tickRateHz <= 0 {
		tickRateHz = 60
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	step := time.Second / time.Duration(tickRateHz)
	return &Accumulator{step: step, maxDelta: step, maxSteps: maxSteps}
}

// WithMaxDelta overrides the per-frame delta clamp.
func (a *Accumulator) WithMaxDelta(d time.Duration) *Accumulator {
	if d > 0 {
		a.maxDelta = d
	}
	return a
}

func (a *Accumulator) Step() time.Duration    { return a.step }
func (a *Accumulator) MaxSteps() int          { return a.maxSteps }
func (a *Accumulator) Pending() time.Duration { return a.acc }

// Advance adds one frame's delta and calls fn once per whole tick, up to the
// step cap. If more than two ticks are still owed afterwards the backlog is
// dropped. It returns the number of ticks run.
func (a *Accumulator) Advance(delta time.Duration, fn func()) int {
	if delta < 0 {
		delta = 0
	}
	if delta > a.maxDelta {
		delta = a.maxDelta
	}
	a.acc += delta

	steps := 0
	for a.acc >= a.step && steps < a.maxSteps {
		a.acc -= a.step
		fn()
		steps++
	}
	if a.acc > 2*a.step {
		a.acc = 0
	}
	return steps
}

// Reset discards any accumulated time.
func (a *Accumulator) Reset() { a.acc = 0 }

// Scale multiplies a wall-clock delta by a playback rate.
func Scale(delta time.Duration, rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(delta) * rate)
}
