package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"stomparena.io/internal/persistence/indexdb"
	tlog "stomparena.io/internal/persistence/log"
	"stomparena.io/internal/persistence/snapshot"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/sim"
)

type tickSink struct{ entries []tlog.TickEntry }

func (s *tickSink) WriteTick(e tlog.TickEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

type indexSink struct{ rows []indexdb.MatchRow }

func (s *indexSink) RecordMatch(r indexdb.MatchRow) { s.rows = append(s.rows, r) }

func testRoom(t *testing.T, sinks Sinks) *Room {
	t.Helper()
	return New(Config{
		ID:                 "m1",
		Match:              sim.MatchConfig{Seed: 1, PlayerCount: 2, TickRate: 60},
		SnapshotEveryTicks: 3,
	}, sinks, nil)
}

func joinBoth(t *testing.T, r *Room) [2]chan []byte {
	t.Helper()
	var outs [2]chan []byte
	for i := range outs {
		outs[i] = make(chan []byte, 256)
		resp := r.Admit(JoinRequest{Name: "p", Codec: protocol.CodecJSON, Out: outs[i]})
		if resp.Code != "" || resp.Player != i {
			t.Fatalf("join %d: %+v", i, resp)
		}
		if resp.Welcome.Config.Seed != r.cfg.Match.Seed || resp.Welcome.SnapshotEveryTicks != r.cfg.SnapshotEveryTicks {
			t.Fatalf("welcome: %+v", resp.Welcome)
		}
	}
	return outs
}

func drain(t *testing.T, ch chan []byte) []protocol.SnapshotMsg {
	t.Helper()
	var out []protocol.SnapshotMsg
	for {
		select {
		case b := <-ch:
			var m protocol.SnapshotMsg
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("decode: %v", err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestRoom_JoinStartsWhenFull(t *testing.T) {
	r := testRoom(t, Sinks{})
	outs := joinBoth(t, r)
	if r.Phase() != Running {
		t.Fatalf("phase: %v", r.Phase())
	}
	for i, ch := range outs {
		snaps := drain(t, ch)
		if len(snaps) != 1 || snaps[0].Tick != 0 {
			t.Fatalf("player %d start snapshot: %+v", i, snaps)
		}
	}
	if resp := r.Admit(JoinRequest{Name: "late", Codec: protocol.CodecJSON}); resp.Code != protocol.ErrRoomFull {
		t.Fatalf("third join: %+v", resp)
	}
}

func TestRoom_StepUsesBufferedInputsAndRepeats(t *testing.T) {
	r := testRoom(t, Sinks{})
	joinBoth(t, r)

	r.Submit(InputEnvelope{Player: 0, Msg: protocol.NewInputMsg(1, sim.Input{Buttons: sim.ButtonRight})})
	r.Submit(InputEnvelope{Player: 0, Msg: protocol.NewInputMsg(3, sim.Input{Buttons: sim.ButtonJump})})
	r.Submit(InputEnvelope{Player: 1, Msg: protocol.NewInputMsg(2, sim.Input{Buttons: sim.ButtonLeft | sim.ButtonRight | sim.ButtonFire})})
	for i := 0; i < 3; i++ {
		r.StepOnce()
	}

	cfg := r.Config().Match
	frames := []sim.InputFrame{
		{{Buttons: sim.ButtonRight}, {}},
		{{Buttons: sim.ButtonRight}, {Buttons: sim.ButtonFire}},
		{{Buttons: sim.ButtonJump}, {Buttons: sim.ButtonFire}},
	}
	want := sim.Initialize(cfg)
	var prev sim.InputFrame
	for _, f := range frames {
		want = sim.Step(want, f, prev, cfg)
		prev = f
	}
	if sim.Digest(r.State()) != sim.Digest(want) {
		t.Fatalf("room state diverged from direct stepping")
	}
}

func TestRoom_DropsStaleInputs(t *testing.T) {
	r := testRoom(t, Sinks{})
	joinBoth(t, r)
	r.StepOnce()
	r.StepOnce()
	r.Submit(InputEnvelope{Player: 0, Msg: protocol.NewInputMsg(2, sim.Input{Buttons: sim.ButtonJump})})
	r.Submit(InputEnvelope{Player: 1, Msg: protocol.NewInputMsg(1, sim.Input{})})
	r.Submit(InputEnvelope{Player: 1, Msg: protocol.NewInputMsg(3, sim.Input{})})
	if r.StaleInputs() != 2 {
		t.Fatalf("stale: %d", r.StaleInputs())
	}
}

func TestRoom_SnapshotCadenceAndLastButtons(t *testing.T) {
	r := testRoom(t, Sinks{})
	outs := joinBoth(t, r)
	drain(t, outs[0])

	for tick := uint64(1); tick <= 6; tick++ {
		r.Submit(InputEnvelope{Player: 1, Msg: protocol.NewInputMsg(tick, sim.Input{Buttons: sim.Buttons(tick) & sim.ButtonMask})})
		r.StepOnce()
	}
	snaps := drain(t, outs[0])
	if len(snaps) != 2 || snaps[0].Tick != 3 || snaps[1].Tick != 6 {
		t.Fatalf("snapshots: %+v", snaps)
	}
	if snaps[1].LastButtons[1] != 6 {
		t.Fatalf("last buttons: %v", snaps[1].LastButtons)
	}
	if sim.Digest(snaps[1].State) != sim.Digest(r.State()) {
		t.Fatalf("snapshot state differs from room state")
	}
}

func TestRoom_FinishRecordsMatch(t *testing.T) {
	ticks := &tickSink{}
	idx := &indexSink{}
	dir := t.TempDir()
	r := New(Config{
		ID:    "short",
		Match: sim.MatchConfig{Seed: 5, PlayerCount: 2, TickRate: 60, MatchDurationTicks: 20},
	}, Sinks{Ticks: ticks, Index: idx, CheckpointDir: dir}, nil)
	joinBoth(t, r)

	for i := 0; i < 100 && r.Phase() != Over; i++ {
		r.StepOnce()
	}
	if r.Phase() != Over || !r.State().MatchOver {
		t.Fatalf("match did not end: tick=%d", r.State().Tick)
	}
	end := r.State().Tick
	if uint64(len(ticks.entries)) != end+1 || ticks.entries[0].Config == nil {
		t.Fatalf("tick log: %d entries for end tick %d", len(ticks.entries), end)
	}
	if len(idx.rows) != 1 || idx.rows[0].EndTick != end || idx.rows[0].FinalDigest != sim.Digest(r.State()) {
		t.Fatalf("index rows: %+v", idx.rows)
	}
	cp, err := snapshot.ReadSnapshot(r.CheckpointPath())
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if cp.Header.Digest != idx.rows[0].FinalDigest {
		t.Fatalf("checkpoint digest mismatch")
	}
}

func TestRoom_Run(t *testing.T) {
	r := New(Config{
		ID:    "live",
		Match: sim.MatchConfig{Seed: 9, PlayerCount: 2, TickRate: 60, MatchDurationTicks: 30},
	}, Sinks{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	outs := [2]chan []byte{make(chan []byte, 256), make(chan []byte, 256)}
	for i := range outs {
		resp := make(chan JoinResponse, 1)
		r.Join() <- JoinRequest{Name: "p", Codec: protocol.CodecMsgpack, Out: outs[i], Resp: resp}
		if got := <-resp; got.Player != i {
			t.Fatalf("join: %+v", got)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	var last protocol.SnapshotMsg
	for b := range drainRaw(outs[0]) {
		if err := protocol.CodecMsgpack.Unmarshal(b, &last); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	if !last.State.MatchOver || last.Tick != r.State().Tick {
		t.Fatalf("final snapshot: tick=%d over=%v", last.Tick, last.State.MatchOver)
	}
}

func drainRaw(ch chan []byte) chan []byte {
	out := make(chan []byte, len(ch))
	for {
		select {
		case b := <-ch:
			out <- b
		default:
			close(out)
			return out
		}
	}
}
