package input

import (
	"math"
	"testing"

	"stomparena.io/internal/sim"
)

func TestSanitize_ClampsAim(t *testing.T) {
	got := Sanitize(sim.Input{AimX: 3, AimY: 4})
	if math.Abs(got.AimX-0.6) > 1e-12 || math.Abs(got.AimY-0.8) > 1e-12 {
		t.Fatalf("aim: %+v", got)
	}
	got = Sanitize(sim.Input{AimX: math.NaN(), AimY: math.Inf(-1)})
	if got.AimX != 0 || got.AimY != 0 {
		t.Fatalf("non-finite aim: %+v", got)
	}
	in := sim.Input{AimX: 0.3, AimY: -0.4}
	if got := Sanitize(in); got != in {
		t.Fatalf("in-range aim changed: %+v", got)
	}
}

func TestSanitize_Buttons(t *testing.T) {
	got := Sanitize(sim.Input{Buttons: sim.ButtonLeft | sim.ButtonRight | sim.ButtonJump | 1<<14})
	if got.Buttons != sim.ButtonJump {
		t.Fatalf("buttons: %b", got.Buttons)
	}
	got = Sanitize(sim.Input{Buttons: sim.ButtonUp | sim.ButtonDown | sim.ButtonLeft})
	if got.Buttons != sim.ButtonLeft {
		t.Fatalf("buttons: %b", got.Buttons)
	}
}

func TestScript_RepeatsLast(t *testing.T) {
	s := NewScript(sim.Input{Buttons: sim.ButtonJump}, sim.Input{Buttons: sim.ButtonFire})
	if s.Poll().Buttons != sim.ButtonJump || s.Poll().Buttons != sim.ButtonFire {
		t.Fatalf("script order")
	}
	if s.Poll().Buttons != sim.ButtonFire || s.Polled() != 2 {
		t.Fatalf("script tail: polled=%d", s.Polled())
	}
	if (NewScript()).Poll() != (sim.Input{}) {
		t.Fatalf("empty script not neutral")
	}
}

func TestLatch_PressRelease(t *testing.T) {
	var l Latch
	l.Press(sim.ButtonRight | sim.ButtonFire)
	l.Aim(2, 0)
	got := l.Poll()
	if got.Buttons != sim.ButtonRight|sim.ButtonFire || got.AimX != 1 {
		t.Fatalf("latch: %+v", got)
	}
	l.Release(sim.ButtonFire)
	if l.Poll().Buttons != sim.ButtonRight {
		t.Fatalf("release: %b", l.Poll().Buttons)
	}
}
