package replay

import (
	"strings"
	"testing"
	"time"

	tlog "stomparena.io/internal/persistence/log"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/server/room"
	"stomparena.io/internal/sim"
)

const frame = time.Second / 60

func scripted(n int) Transcript {
	tr := Transcript{Config: sim.MatchConfig{Seed: 11, PlayerCount: 2, TickRate: 60}}
	x := uint32(2463534242)
	for i := 0; i < n; i++ {
		var f sim.InputFrame
		for p := range f {
			x ^= x << 13
			x ^= x >> 17
			x ^= x << 5
			f[p] = sim.Input{Buttons: sim.Buttons(x) & (sim.ButtonLeft | sim.ButtonJump | sim.ButtonFire), AimX: 1}
		}
		tr.Ticks = append(tr.Ticks, f)
	}
	return tr
}

func TestParse_AcceptsBothSpellings(t *testing.T) {
	src := `{"seed": 7, "ticks": [
		[{"buttons": 2, "aim_x": 0.5, "aim_y": -0.5}, {"buttons": 1, "aimX": 0.25}],
		[{"buttons": 16}]
	]}`
	tr, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tr.Config.Seed != 7 || tr.Len() != 2 {
		t.Fatalf("transcript: seed=%d len=%d", tr.Config.Seed, tr.Len())
	}
	if got := tr.Ticks[0][0]; got != (sim.Input{Buttons: 2, AimX: 0.5, AimY: -0.5}) {
		t.Fatalf("snake_case entry: %+v", got)
	}
	if got := tr.Ticks[0][1]; got != (sim.Input{Buttons: 1, AimX: 0.25}) {
		t.Fatalf("camelCase entry: %+v", got)
	}
	if got := tr.Ticks[1][1]; got != (sim.Input{}) {
		t.Fatalf("missing player should be neutral: %+v", got)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(strings.NewReader(`{"seed": 1, "ticks": []}`)); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	tr := scripted(400)
	a := New(tr.Config, tr).Run()
	b := New(tr.Config, tr).Run()
	if len(a) != len(b) {
		t.Fatalf("trace lengths %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("trace diverged at tick %d", i)
		}
	}
}

func TestEngine_MatchesDirectStepping(t *testing.T) {
	tr := scripted(50)
	e := New(tr.Config, tr)
	seen := 0
	e.Observe(func(sim.State) { seen++ })
	e.Run()
	if seen != 50 {
		t.Fatalf("observed %d ticks", seen)
	}

	cfg := tr.Config
	s := sim.Initialize(cfg)
	var prev sim.InputFrame
	for _, f := range tr.Ticks {
		s = sim.Step(s, f, prev, cfg)
		prev = f
	}
	if sim.Digest(s) != sim.Digest(e.State()) {
		t.Fatalf("replay differs from stepping the same inputs")
	}
}

func TestEngine_PauseAndSpeed(t *testing.T) {
	tr := scripted(200)
	e := New(tr.Config, tr)

	if n := e.Update(frame); n != 1 {
		t.Fatalf("1x: stepped %d", n)
	}
	e.Pause()
	if n := e.Update(frame); n != 0 || e.Tick() != 1 {
		t.Fatalf("paused: stepped %d tick %d", n, e.Tick())
	}
	e.Toggle()

	e.SetSpeed(10)
	if e.SpeedExp() != MaxSpeedExp || e.Speed() != 8 {
		t.Fatalf("speed clamp: exp=%d", e.SpeedExp())
	}
	if n := e.Update(frame); n != 8 {
		t.Fatalf("8x: stepped %d", n)
	}
	// A long stall still only counts as one frame.
	if n := e.Update(time.Second); n != 8 {
		t.Fatalf("8x after stall: stepped %d", n)
	}

	e.SetSpeed(-1)
	if n := e.Update(frame); n != 0 {
		t.Fatalf("0.5x first frame: stepped %d", n)
	}
	if n := e.Update(frame); n != 1 {
		t.Fatalf("0.5x second frame: stepped %d", n)
	}
	e.Slower()
	e.Slower()
	e.Slower()
	if e.SpeedExp() != MinSpeedExp {
		t.Fatalf("slowest: %d", e.SpeedExp())
	}
}

func TestEngine_StopsAtEnd(t *testing.T) {
	tr := scripted(5)
	e := New(tr.Config, tr)
	e.SetSpeed(MaxSpeedExp)
	if n := e.Update(frame); n != 5 || !e.Done() {
		t.Fatalf("stepped %d done=%v", n, e.Done())
	}
	if n := e.Update(frame); n != 0 || e.Tick() != 5 {
		t.Fatalf("after end: stepped %d tick %d", n, e.Tick())
	}
}

func TestEngine_StopsAtMatchOver(t *testing.T) {
	tr := scripted(40)
	tr.Config.MatchDurationTicks = 10
	e := New(tr.Config, tr)
	trace := e.Run()
	if !e.State().MatchOver || e.Tick() != 10 || len(trace) != 11 {
		t.Fatalf("tick=%d over=%v trace=%d", e.Tick(), e.State().MatchOver, len(trace))
	}
}

func TestLoad_RecordedMatchVerifies(t *testing.T) {
	dir := t.TempDir()
	ticks := tlog.NewTickLogger(dir)
	r := room.New(room.Config{
		ID:    "rec",
		Match: sim.MatchConfig{Seed: 21, PlayerCount: 2, TickRate: 60, MatchDurationTicks: 90},
	}, room.Sinks{Ticks: ticks}, nil)

	joinDirect(t, r)
	for tk := uint64(1); r.Phase() != room.Over; tk++ {
		feed(r, tk)
		r.StepOnce()
	}
	if err := ticks.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}

	tr, err := Load(ticks.Path("rec"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tr.Match != "rec" || tr.Config.Seed != 21 || tr.Len() != 90 {
		t.Fatalf("transcript: match=%q seed=%d len=%d", tr.Match, tr.Config.Seed, tr.Len())
	}
	trace := New(tr.Config, tr).Run()
	checked, mm := tr.Verify(trace)
	if mm != nil || checked != 91 {
		t.Fatalf("verify: checked=%d mismatch=%+v", checked, mm)
	}

	tr.Digests[40] = "bad"
	if _, mm := tr.Verify(trace); mm == nil || mm.Tick != 40 {
		t.Fatalf("tampered digest not caught: %+v", mm)
	}
}

func joinDirect(t *testing.T, r *room.Room) {
	t.Helper()
	for i := 0; i < 2; i++ {
		resp := r.Admit(room.JoinRequest{Name: "p", Codec: protocol.CodecJSON, Out: make(chan []byte, 512)})
		if resp.Code != "" {
			t.Fatalf("join: %+v", resp)
		}
	}
}

func feed(r *room.Room, tk uint64) {
	b := sim.ButtonRight
	if tk%20 < 10 {
		b = sim.ButtonLeft | sim.ButtonJump
	}
	r.Submit(room.InputEnvelope{Player: 0, Msg: protocol.NewInputMsg(tk, sim.Input{Buttons: b})})
	if tk%7 == 0 {
		r.Submit(room.InputEnvelope{Player: 1, Msg: protocol.NewInputMsg(tk, sim.Input{Buttons: sim.ButtonFire, AimX: -1})})
	}
}
