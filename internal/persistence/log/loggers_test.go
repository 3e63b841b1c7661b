package log

import (
	"os"
	"path/filepath"
	"testing"

	"stomparena.io/internal/sim"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	cfg := sim.MatchConfig{Seed: 3, PlayerCount: 2, TickRate: 60}.WithDefaults()
	s := sim.Initialize(cfg)
	if err := l.WriteTick(TickEntry{Match: "m1", Tick: 0, Config: &cfg, Digest: sim.Digest(s)}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	var prev sim.InputFrame
	for i := 0; i < 30; i++ {
		in := sim.InputFrame{{Buttons: sim.ButtonRight, AimX: 0.5}, {Buttons: sim.ButtonJump}}
		s = sim.Step(s, in, prev, cfg)
		prev = in
		rec := [sim.MaxPlayers]sim.Input(in)
		if err := l.WriteTick(TickEntry{Match: "m1", Tick: s.Tick, Inputs: &rec, Digest: sim.Digest(s)}); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := l.Path("m1")
	if filepath.Base(path) != "events-m1.jsonl.zst" {
		t.Fatalf("path: %s", path)
	}
	got, err := ReadTicks(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 31 {
		t.Fatalf("entries: %d", len(got))
	}
	if got[0].Config == nil || got[0].Config.Seed != 3 || got[0].Inputs != nil {
		t.Fatalf("header entry: %+v", got[0])
	}
	last := got[len(got)-1]
	if last.Tick != 30 || last.Digest != sim.Digest(s) || last.Inputs[0].AimX != 0.5 {
		t.Fatalf("last entry: %+v", last)
	}
}

func TestTickLogger_SeparateFilesPerMatch(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	_ = l.WriteTick(TickEntry{Match: "a", Tick: 1})
	_ = l.WriteTick(TickEntry{Match: "b", Tick: 1})
	_ = l.WriteTick(TickEntry{Match: "b", Tick: 2})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	a, _ := ReadTicks(l.Path("a"))
	b, _ := ReadTicks(l.Path("b"))
	if len(a) != 1 || len(b) != 2 {
		t.Fatalf("a=%d b=%d", len(a), len(b))
	}
}

func TestAuditLogger_Writes(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	if err := l.WriteAudit(AuditEntry{Match: "m1", Kind: "join", Player: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := os.ReadDir(filepath.Join(dir, "audit"))
	if err != nil || len(files) != 1 {
		t.Fatalf("audit files: %v %v", files, err)
	}
}
