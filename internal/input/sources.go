package input

import "stomparena.io/internal/sim"

// Latch remembers the most recent sample from a device callback so the frame
// loop can poll it at tick boundaries. It is not safe for concurrent use; the
// host feeds it from the same thread that runs the frame loop.
type Latch struct {
	cur sim.Input
}

func (l *Latch) Set(in sim.Input) { l.cur = Sanitize(in) }

func (l *Latch) Press(b sim.Buttons)   { l.cur.Buttons |= b & sim.ButtonMask }
func (l *Latch) Release(b sim.Buttons) { l.cur.Buttons &^= b }

func (l *Latch) Aim(x, y float64) {
	l.cur = Sanitize(sim.Input{Buttons: l.cur.Buttons, AimX: x, AimY: y})
}

func (l *Latch) Poll() sim.Input { return Sanitize(l.cur) }

// Script replays a fixed list of inputs, one per poll, then repeats the last
// one (or neutral if empty).
type Script struct {
	inputs []sim.Input
	next   int
}

func NewScript(inputs ...sim.Input) *Script {
	out := make([]sim.Input, len(inputs))
	for i, in := range inputs {
		out[i] = Sanitize(in)
	}
	return &Script{inputs: out}
}

func (s *Script) Poll() sim.Input {
	if len(s.inputs) == 0 {
		return sim.Input{}
	}
	if s.next >= len(s.inputs) {
		return s.inputs[len(s.inputs)-1]
	}
	in := s.inputs[s.next]
	s.next++
	return in
}

// Polled reports how many inputs have been consumed.
func (s *Script) Polled() int { return s.next }
