package protocol

import (
	"reflect"
	"testing"

	"stomparena.io/internal/sim"
)

func TestCodec_SnapshotKeepsDigest(t *testing.T) {
	cfg := sim.MatchConfig{Seed: 7, PlayerCount: 2, TickRate: 60}.WithDefaults()
	s := sim.Initialize(cfg)
	var prev sim.InputFrame
	for i := 0; i < 120; i++ {
		in := sim.InputFrame{{Buttons: sim.ButtonRight, AimX: 0.3, AimY: 0.1}, {Buttons: sim.ButtonLeft | sim.ButtonJump}}
		s = sim.Step(s, in, prev, cfg)
		prev = in
	}
	want := sim.Digest(s)

	for _, c := range []Codec{CodecJSON, CodecMsgpack} {
		b, err := c.Marshal(SnapshotMsg{Type: TypeSnapshot, Tick: s.Tick, State: s, LastButtons: [2]sim.Buttons{1, 2}})
		if err != nil {
			t.Fatalf("%s marshal: %v", c, err)
		}
		base, err := DecodeBase(c, b)
		if err != nil || base.Type != TypeSnapshot {
			t.Fatalf("%s base: %+v %v", c, base, err)
		}
		var got SnapshotMsg
		if err := c.Unmarshal(b, &got); err != nil {
			t.Fatalf("%s unmarshal: %v", c, err)
		}
		if got.Tick != s.Tick || got.LastButtons != [2]sim.Buttons{1, 2} {
			t.Fatalf("%s header: %+v", c, got)
		}
		if d := sim.Digest(got.State); d != want {
			t.Fatalf("%s digest changed: %s != %s", c, d, want)
		}
	}
}

func TestCodec_InputMsg(t *testing.T) {
	in := sim.Input{Buttons: sim.ButtonFire, AimX: -0.25, AimY: 0.75}
	for _, c := range []Codec{CodecJSON, CodecMsgpack} {
		b, err := c.Marshal(NewInputMsg(9, in))
		if err != nil {
			t.Fatalf("%s marshal: %v", c, err)
		}
		var got InputMsg
		if err := c.Unmarshal(b, &got); err != nil {
			t.Fatalf("%s unmarshal: %v", c, err)
		}
		if got.Tick != 9 || !reflect.DeepEqual(got.Input(), in) {
			t.Fatalf("%s: %+v", c, got)
		}
	}
}

func TestParseCodec(t *testing.T) {
	if c, err := ParseCodec(""); err != nil || c != CodecJSON {
		t.Fatalf("default codec: %q %v", c, err)
	}
	if c, err := ParseCodec("msgpack"); err != nil || !c.Binary() {
		t.Fatalf("msgpack: %q %v", c, err)
	}
	if _, err := ParseCodec("xml"); err == nil {
		t.Fatalf("unknown codec accepted")
	}
}
