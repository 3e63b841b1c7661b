package sim

import "math"

// stepArena shrinks the live bounds symmetrically once sudden death starts.
func stepArena(s *State, cfg MatchConfig) {
	if s.Tick < cfg.SuddenDeathStartTick {
		return
	}
	s.SuddenDeath = true
	ph := cfg.Physics
	width := s.Arena.MaxX - s.Arena.MinX
	if width <= ph.MinArenaWidth {
		return
	}
	shrink := math.Min(ph.ShrinkPerTick, (width-ph.MinArenaWidth)/2)
	s.Arena.MinX += shrink
	s.Arena.MaxX -= shrink
}

// resolveMatchEnd starts the death-linger timer when a player is eliminated
// and ends the match when it expires or when the duration runs out.
func resolveMatchEnd(s *State, n int, cfg MatchConfig) {
	if s.DeathLinger > 0 {
		s.DeathLinger--
		if s.DeathLinger == 0 {
			finish(s, n)
		}
		return
	}
	for i := 0; i < n; i++ {
		p := &s.Players[i]
		if p.Lives == 0 && !p.Alive() {
			s.DeathLinger = cfg.Physics.DeathLingerTicks
			return
		}
	}
	if s.Tick >= cfg.MatchDurationTicks {
		finish(s, n)
	}
}

func finish(s *State, n int) {
	s.MatchOver = true
	s.Winner = leader(s, n)
	s.Projectiles = s.Projectiles[:0]
}

// leader ranks by lives, then health. A tie has no winner.
func leader(s *State, n int) int8 {
	best := int8(-1)
	tied := false
	for i := 0; i < n; i++ {
		p := &s.Players[i]
		if p.Lives == 0 && !p.Alive() {
			continue
		}
		if best < 0 {
			best = int8(i)
			continue
		}
		b := &s.Players[best]
		switch {
		case p.Lives > b.Lives, p.Lives == b.Lives && p.Health > b.Health:
			best = int8(i)
			tied = false
		case p.Lives == b.Lives && p.Health == b.Health:
			tied = true
		}
	}
	if tied {
		return -1
	}
	return best
}
