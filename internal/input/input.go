// Package input is the boundary between raw device or network input and the
// simulation. Everything handed to sim.Step passes through Sanitize first.
package input

import (
	"math"

	"stomparena.io/internal/sim"
)

// Source produces the local player's input for the next tick. It is polled
// once per simulated tick by the frame loop.
type Source interface {
	Poll() sim.Input
}

// SourceFunc adapts a function to Source.
type SourceFunc func() sim.Input

func (f SourceFunc) Poll() sim.Input { return f() }

// Sanitize clamps a raw input into the domain sim.Step expects: unknown
// button bits are dropped, opposite directions cancel, and the aim vector is
// finite and no longer than 1.
func Sanitize(in sim.Input) sim.Input {
	b := in.Buttons & sim.ButtonMask
	if b.Has(sim.ButtonLeft | sim.ButtonRight) {
		b &^= sim.ButtonLeft | sim.ButtonRight
	}
	if b.Has(sim.ButtonUp | sim.ButtonDown) {
		b &^= sim.ButtonUp | sim.ButtonDown
	}

	x, y := finite(in.AimX), finite(in.AimY)
	if l := math.Hypot(x, y); l > 1 {
		x, y = x/l, y/l
	}
	return sim.Input{Buttons: b, AimX: x, AimY: y}
}

// SanitizeFrame applies Sanitize to every entry of f.
func SanitizeFrame(f sim.InputFrame) sim.InputFrame {
	for i := range f {
		f[i] = Sanitize(f[i])
	}
	return f
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
