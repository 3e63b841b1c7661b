package replay

import (
	"math"
	"time"

	"stomparena.io/internal/sim"
	"stomparena.io/internal/tick"
)

const (
	MinSpeedExp = -3
	MaxSpeedExp = 3

	// Enough steps for one frame at the fastest rate, with slack.
	maxStepsPerFrame = 24
)

// Engine drives sim.Step from a transcript at a variable playback rate.
// Like the live client it is single-threaded and never blocks.
type Engine struct {
	cfg sim.MatchConfig
	tr  Transcript

	state sim.State
	prev  sim.InputFrame
	next  int

	acc      *tick.Accumulator
	paused   bool
	speedExp int

	observe func(sim.State)
}

func New(cfg sim.MatchConfig, tr Transcript) *Engine {
	cfg = cfg.WithDefaults()
	acc := tick.New(cfg.TickRate, maxStepsPerFrame)
	acc.WithMaxDelta(acc.Step() * (1 << MaxSpeedExp))
	return &Engine{
		cfg:   cfg,
		tr:    tr,
		state: sim.Initialize(cfg),
		acc:   acc,
	}
}

func (e *Engine) State() sim.State        { return e.state }
func (e *Engine) Tick() uint64            { return e.state.Tick }
func (e *Engine) Config() sim.MatchConfig { return e.cfg }
func (e *Engine) Paused() bool            { return e.paused }
func (e *Engine) SpeedExp() int           { return e.speedExp }

// LastButtons are the buttons fed into the step that produced State.
func (e *Engine) LastButtons() [sim.MaxPlayers]sim.Buttons {
	var b [sim.MaxPlayers]sim.Buttons
	for i := range e.prev {
		b[i] = e.prev[i].Buttons
	}
	return b
}

// Speed is the playback multiplier, 2^SpeedExp.
func (e *Engine) Speed() float64 { return math.Ldexp(1, e.speedExp) }

// Done reports whether playback has halted: the transcript is exhausted or
// the match is over.
func (e *Engine) Done() bool {
	return e.next >= len(e.tr.Ticks) || e.state.MatchOver
}

func (e *Engine) Pause() {
	e.paused = true
	e.acc.Reset()
}

func (e *Engine) Resume() { e.paused = false }

func (e *Engine) Toggle() {
	if e.paused {
		e.Resume()
	} else {
		e.Pause()
	}
}

// SetSpeed sets the playback rate to 2^exp, clamped to [MinSpeedExp, MaxSpeedExp].
func (e *Engine) SetSpeed(exp int) {
	if exp < MinSpeedExp {
		exp = MinSpeedExp
	}
	if exp > MaxSpeedExp {
		exp = MaxSpeedExp
	}
	e.speedExp = exp
}

// Observe registers fn to be called with every state the engine steps to.
func (e *Engine) Observe(fn func(sim.State)) { e.observe = fn }

func (e *Engine) Faster() { e.SetSpeed(e.speedExp + 1) }
func (e *Engine) Slower() { e.SetSpeed(e.speedExp - 1) }

// Update advances playback by one frame's wall-clock delta and returns the
// number of ticks stepped.
func (e *Engine) Update(delta time.Duration) int {
	if e.paused || e.Done() {
		return 0
	}
	if delta > e.acc.Step() {
		delta = e.acc.Step()
	}
	stepped := 0
	e.acc.Advance(tick.Scale(delta, e.Speed()), func() {
		if e.StepOnce() {
			stepped++
		}
	})
	return stepped
}

// StepOnce advances exactly one recorded tick. It returns false once
// playback is done.
func (e *Engine) StepOnce() bool {
	if e.Done() {
		return false
	}
	in := e.tr.Ticks[e.next]
	e.state = sim.Step(e.state, in, e.prev, e.cfg)
	e.prev = in
	e.next++
	if e.observe != nil {
		e.observe(e.state)
	}
	return true
}

// Run plays the rest of the transcript headlessly and returns the digest of
// every state visited, starting with the current one.
func (e *Engine) Run() []string {
	trace := []string{sim.Digest(e.state)}
	for e.StepOnce() {
		trace = append(trace, sim.Digest(e.state))
	}
	return trace
}

// Mismatch is the first tick whose replayed digest differs from the
// recorded one.
type Mismatch struct {
	Tick     uint64
	Recorded string
	Replayed string
}

// Verify compares a digest trace from Run against the transcript's recorded
// digests. Ticks without a recorded digest are skipped.
func (t Transcript) Verify(trace []string) (checked int, mm *Mismatch) {
	for i, got := range trace {
		if i >= len(t.Digests) || t.Digests[i] == "" {
			continue
		}
		checked++
		if t.Digests[i] != got {
			return checked, &Mismatch{Tick: uint64(i), Recorded: t.Digests[i], Replayed: got}
		}
	}
	return checked, nil
}
