package predict

import "stomparena.io/internal/sim"

// Lead keeps the prediction a fixed number of ticks ahead of the last
// authoritative tick so the next snapshot always has inputs to replay.
type Lead struct {
	Ticks       int
	MaxPerFrame int
}

func DefaultLead() Lead { return Lead{Ticks: 6, MaxPerFrame: 8} }

// Catch predicts extra ticks with last, the most recent local input, until
// the lead is restored or MaxPerFrame ticks were injected. It returns the
// number injected.
func (l Lead) Catch(m *Manager, last sim.Input) int {
	if l.Ticks <= 0 || l.MaxPerFrame <= 0 {
		return 0
	}
	n := 0
	for m.LastAuthoritativeTick()+uint64(l.Ticks) > m.PredictedTick() && n < l.MaxPerFrame {
		m.PredictTick(last)
		n++
	}
	return n
}
