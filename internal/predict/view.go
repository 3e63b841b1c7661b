package predict

import "stomparena.io/internal/sim"

// View is the read-only projection handed to presentation code.
type View struct {
	Local         sim.PlayerRef
	Authoritative sim.State
	Predicted     sim.State
}

func (m *Manager) View() View {
	return View{Local: m.local, Authoritative: m.authoritative, Predicted: m.predicted}
}

// Render returns the predicted state with the local player's combat fields
// taken from the authoritative state. Movement stays predicted; damage the
// server already applied is never shown undone.
func (v View) Render() sim.State {
	out := v.Predicted.Clone()
	i := int(v.Local)
	if i < 0 || i >= sim.MaxPlayers {
		return out
	}
	auth := &v.Authoritative.Players[i]
	p := &out.Players[i]
	p.Health = auth.Health
	p.Lives = auth.Lives
	p.Flags = auth.Flags
	p.StandingOn = auth.StandingOn
	p.StoodOnBy = auth.StoodOnBy
	return out
}
