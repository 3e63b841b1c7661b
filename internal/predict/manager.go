// Package predict runs the local player ahead of the server and reconciles
// the prediction against authoritative snapshots by rollback and replay.
package predict

import (
	"io"
	"log"

	"stomparena.io/internal/sim"
)

// DefaultHistoryCapacity covers two seconds at 60Hz.
const DefaultHistoryCapacity = 128

// Manager owns one round's prediction context. It is not safe for concurrent
// use; the host serializes PredictTick and ApplyServerState onto one goroutine.
type Manager struct {
	cfg   sim.MatchConfig
	local sim.PlayerRef
	log   *log.Logger

	predicted     sim.State
	authoritative sim.State
	lastAccepted  uint64
	lastButtons   [sim.MaxPlayers]sim.Buttons
	history       *History

	resyncs int
	dropped int
}

// NewManager starts predicting from initial, which is also taken as the first
// authoritative state.
func NewManager(cfg sim.MatchConfig, local sim.PlayerRef, initial sim.State, capacity int, logger *log.Logger) *Manager {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cfg = cfg.WithDefaults()
	return &Manager{
		cfg:           cfg,
		local:         local,
		log:           logger,
		predicted:     initial.Clone(),
		authoritative: initial.Clone(),
		lastAccepted:  initial.Tick,
		history:       NewHistory(capacity),
	}
}

func (m *Manager) Local() sim.PlayerRef                     { return m.local }
func (m *Manager) Config() sim.MatchConfig                  { return m.cfg }
func (m *Manager) Predicted() sim.State                     { return m.predicted }
func (m *Manager) PredictedTick() uint64                    { return m.predicted.Tick }
func (m *Manager) Authoritative() sim.State                 { return m.authoritative }
func (m *Manager) LastAuthoritativeTick() uint64            { return m.lastAccepted }
func (m *Manager) LastButtons() [sim.MaxPlayers]sim.Buttons { return m.lastButtons }
func (m *Manager) History() *History                        { return m.history }

// Resyncs counts reconciliations that fell back to the bare snapshot.
func (m *Manager) Resyncs() int { return m.resyncs }

// Dropped counts stale or duplicate snapshots.
func (m *Manager) Dropped() int { return m.dropped }

// PredictTick buffers in for the next tick and advances the prediction by
// one step.
func (m *Manager) PredictTick(in sim.Input) sim.State {
	tick := m.predicted.Tick + 1
	prev := m.localInput(m.predicted.Tick, m.lastAccepted)
	m.history.Push(tick, in)
	m.predicted = m.step(m.predicted, in, prev)
	return m.predicted
}

// ApplyServerState reconciles against an authoritative snapshot. It returns
// false when the snapshot is not newer than the last one accepted; nothing
// changes in that case.
func (m *Manager) ApplyServerState(snapshot sim.State, tick uint64, lastButtons [sim.MaxPlayers]sim.Buttons) bool {
	if tick <= m.lastAccepted {
		m.dropped++
		m.log.Printf("drop stale snapshot tick=%d last=%d", tick, m.lastAccepted)
		return false
	}
	target := m.predicted.Tick

	auth := snapshot.Clone()
	auth.Tick = tick
	m.authoritative = auth
	m.lastAccepted = tick
	m.lastButtons = lastButtons

	state := auth.Clone()
	for t := tick + 1; t <= target; t++ {
		in, ok := m.history.Lookup(t)
		if !ok {
			m.resyncs++
			m.log.Printf("resync: no input for tick=%d (snapshot=%d predicted=%d)", t, tick, target)
			m.history.Reset()
			m.predicted = auth.Clone()
			return true
		}
		state = m.step(state, in, m.localInput(t-1, tick))
	}
	m.predicted = state
	return true
}

// localInput is the local player's input at tick, used as the previous input
// of tick+1. At or before the authoritative tick the server's last buttons
// are what the snapshot was stepped with.
func (m *Manager) localInput(tick, authTick uint64) sim.Input {
	if tick > authTick {
		if in, ok := m.history.Lookup(tick); ok {
			return in
		}
	}
	return sim.Input{Buttons: m.lastButtons[m.local]}
}

// step advances s with the local input and the remote players' last
// authoritative buttons, which stand in for both the current and previous
// remote input.
func (m *Manager) step(s sim.State, local, localPrev sim.Input) sim.State {
	var in, prev sim.InputFrame
	for i := 0; i < sim.MaxPlayers; i++ {
		if sim.PlayerRef(i) == m.local {
			in[i], prev[i] = local, localPrev
			continue
		}
		guess := sim.Input{Buttons: m.lastButtons[i]}
		in[i], prev[i] = guess, guess
	}
	return sim.Step(s, in, prev, m.cfg)
}
