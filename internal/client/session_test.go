package client

import (
	"testing"
	"time"

	"stomparena.io/internal/input"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/sim"
)

const frame = time.Second / 60

func testConfig() sim.MatchConfig {
	return sim.MatchConfig{Seed: 1, PlayerCount: 2, TickRate: 60}.WithDefaults()
}

func serverSnapshot(cfg sim.MatchConfig, n uint64) Snapshot {
	s := sim.Initialize(cfg)
	var prev sim.InputFrame
	for s.Tick < n {
		in := sim.InputFrame{{Buttons: sim.ButtonRight}, {}}
		s = sim.Step(s, in, prev, cfg)
		prev = in
	}
	return Snapshot{Tick: n, State: s, LastButtons: [sim.MaxPlayers]sim.Buttons{prev[0].Buttons, prev[1].Buttons}}
}

type recorder struct {
	msgs []protocol.InputMsg
}

func (r *recorder) SendInput(m protocol.InputMsg) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func TestSession_QueuesUntilReady(t *testing.T) {
	cfg := testConfig()
	s := New(nil, nil, DefaultOptions(), nil)

	s.Deliver(serverSnapshot(cfg, 4))
	script := input.NewScript(sim.Input{Buttons: sim.ButtonRight})
	s.SetSource(script)

	if f := s.Update(frame); f.Steps != 0 || f.SnapshotArrived {
		t.Fatalf("NotReady session advanced: %+v", f)
	}
	if s.Phase() != NotReady || s.Manager() != nil {
		t.Fatalf("phase=%v", s.Phase())
	}

	s.Start(cfg, 0, sim.Initialize(cfg))
	if s.Phase() != Ready {
		t.Fatalf("phase after start: %v", s.Phase())
	}
	if got := s.Manager().LastAuthoritativeTick(); got != 4 {
		t.Fatalf("queued snapshot not applied: last=%d", got)
	}
	s.Update(frame)
	if script.Polled() != 1 {
		t.Fatalf("queued source not installed: polled=%d", script.Polled())
	}
}

func TestSession_UpdateStepsLeadsAndSends(t *testing.T) {
	cfg := testConfig()
	rec := &recorder{}
	s := New(input.NewScript(sim.Input{Buttons: sim.ButtonJump}), rec, DefaultOptions(), nil)
	s.Start(cfg, 0, sim.Initialize(cfg))

	f := s.Update(frame)
	if f.Steps != 1 || f.LeadTicks != 5 {
		t.Fatalf("frame: %+v", f)
	}
	if got := s.Manager().PredictedTick(); got != 6 {
		t.Fatalf("predicted tick: %d", got)
	}
	if len(rec.msgs) != 6 {
		t.Fatalf("sent %d inputs, want 6", len(rec.msgs))
	}
	for i, m := range rec.msgs {
		if m.Tick != uint64(i+1) || m.Type != protocol.TypeInput {
			t.Fatalf("msg %d: %+v", i, m)
		}
		if m.Buttons != sim.ButtonJump {
			t.Fatalf("lead tick %d not built from last input: %+v", m.Tick, m)
		}
	}
	if f.View.Predicted.Tick != 6 {
		t.Fatalf("view predicted tick: %d", f.View.Predicted.Tick)
	}
}

func TestSession_SnapshotArrivedSignal(t *testing.T) {
	cfg := testConfig()
	s := New(nil, nil, DefaultOptions(), nil)
	s.Start(cfg, 0, sim.Initialize(cfg))
	s.Update(frame)

	s.Deliver(serverSnapshot(cfg, 3))
	if f := s.Update(0); !f.SnapshotArrived {
		t.Fatalf("snapshot not signalled")
	}
	if f := s.Update(0); f.SnapshotArrived {
		t.Fatalf("signal repeated without a snapshot")
	}
	s.Deliver(serverSnapshot(cfg, 2))
	if f := s.Update(0); f.SnapshotArrived {
		t.Fatalf("stale snapshot signalled")
	}
	if got := s.Manager().View().Authoritative.Tick; got != 3 {
		t.Fatalf("authoritative tick: %d", got)
	}
}

func TestSession_DeliverKeepsLatest(t *testing.T) {
	cfg := testConfig()
	opts := DefaultOptions()
	opts.InboxSize = 2
	s := New(nil, nil, opts, nil)
	s.Start(cfg, 0, sim.Initialize(cfg))

	for n := uint64(1); n <= 5; n++ {
		s.Deliver(serverSnapshot(cfg, n))
	}
	s.Update(0)
	m := s.Manager()
	if m.LastAuthoritativeTick() != 5 || m.Dropped() != 0 {
		t.Fatalf("last=%d dropped=%d", m.LastAuthoritativeTick(), m.Dropped())
	}
}

func TestSession_ResyncReported(t *testing.T) {
	cfg := testConfig()
	opts := DefaultOptions()
	opts.HistoryCapacity = 4
	opts.Lead.Ticks = 0
	s := New(nil, nil, opts, nil)
	s.Start(cfg, 0, sim.Initialize(cfg))
	for i := 0; i < 20; i++ {
		s.Update(frame)
	}
	s.Deliver(serverSnapshot(cfg, 5))
	f := s.Update(0)
	if !f.Resynced || f.View.Predicted.Tick != 5 {
		t.Fatalf("frame: resynced=%v tick=%d", f.Resynced, f.View.Predicted.Tick)
	}
}

func TestSession_StopDiscardsOldRoundSnapshots(t *testing.T) {
	cfg := testConfig()
	s := New(nil, nil, DefaultOptions(), nil)
	s.Start(cfg, 0, sim.Initialize(cfg))
	s.Deliver(serverSnapshot(cfg, 100))
	s.Stop()

	next := cfg
	next.Seed = 2
	s.Start(next, 0, sim.Initialize(next))
	f := s.Update(frame)
	if f.SnapshotArrived {
		t.Fatalf("previous round's snapshot reported in the new round")
	}
	m := s.Manager()
	if m.LastAuthoritativeTick() != 0 || m.PredictedTick() != 6 {
		t.Fatalf("new round: last=%d predicted=%d", m.LastAuthoritativeTick(), m.PredictedTick())
	}
}

func TestSession_DropsSnapshotsForOtherMatch(t *testing.T) {
	cfg := testConfig()
	s := New(nil, nil, DefaultOptions(), nil)
	s.StartMatch("match-000002", cfg, 0, sim.Initialize(cfg))

	late := serverSnapshot(cfg, 40)
	late.Match = "match-000001"
	s.Deliver(late)
	if f := s.Update(0); f.SnapshotArrived || s.Manager().LastAuthoritativeTick() != 0 {
		t.Fatalf("foreign snapshot applied: last=%d", s.Manager().LastAuthoritativeTick())
	}

	own := serverSnapshot(cfg, 3)
	own.Match = "match-000002"
	s.Deliver(own)
	if f := s.Update(0); !f.SnapshotArrived || s.Manager().LastAuthoritativeTick() != 3 {
		t.Fatalf("own snapshot: arrived=%v last=%d", f.SnapshotArrived, s.Manager().LastAuthoritativeTick())
	}
}

func TestSession_QueuedSnapshotSignalledOnFirstFrame(t *testing.T) {
	cfg := testConfig()
	s := New(nil, nil, DefaultOptions(), nil)
	s.Deliver(serverSnapshot(cfg, 4))
	s.Update(frame)

	s.Start(cfg, 0, sim.Initialize(cfg))
	if f := s.Update(0); !f.SnapshotArrived {
		t.Fatalf("snapshot applied during Start not signalled")
	}
	if f := s.Update(0); f.SnapshotArrived {
		t.Fatalf("signal repeated")
	}
}
