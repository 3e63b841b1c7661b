package sim

import "math"

// Step advances s by exactly one tick and returns the new state; s is not
// modified. prev must be the frame that was fed into the step producing s
// (the zero frame for tick 0): jump, taunt, fire and drop trigger on the
// press edge between prev and in.
//
// Step is total. Inputs must already be sanitized (see internal/input);
// the core clamps nothing itself.
//
// All products that feed a sum go through madd so the compiler cannot fuse
// them into FMA instructions on some architectures and not on others.
func Step(s State, in, prev InputFrame, cfg MatchConfig) State {
	cfg = cfg.WithDefaults()
	next := s.Clone()
	next.Tick = s.Tick + 1
	if next.MatchOver {
		return next
	}
	n := cfg.PlayerCount

	stepArena(&next, cfg)
	for i := 0; i < n; i++ {
		stepPlayer(&next, i, in[i], prev[i], cfg)
	}
	for i := 0; i < n; i++ {
		integrate(&next.Players[i], cfg.Map, cfg.Physics)
	}
	resolveStomps(&next, n, cfg.Physics)
	stepProjectiles(&next, n, cfg.Physics)
	stepPickups(&next, n, cfg)
	resolveDeaths(&next, n, cfg)
	resolveMatchEnd(&next, n, cfg)
	return next
}

func stepPlayer(s *State, i int, in, prev Input, cfg MatchConfig) {
	p := &s.Players[i]
	ph := cfg.Physics

	if !p.Alive() {
		if p.Lives > 0 && p.Respawn > 0 {
			p.Respawn--
			if p.Respawn == 0 {
				spawn(p, i, s, cfg)
			}
		}
		return
	}

	if countdown(&p.InvincibleFor) {
		p.Flags = p.Flags.Without(FlagInvincible)
	}
	if countdown(&p.TauntFor) {
		p.Flags = p.Flags.Without(FlagTaunting)
	}
	if countdown(&p.StunFor) {
		p.Flags = p.Flags.Without(FlagStunned)
	}
	countdown(&p.Cooldown)

	locked := p.Flags.Has(FlagTaunting) || p.Flags.Has(FlagStunned)
	pressed := in.Buttons.Pressed(prev.Buttons)
	if locked {
		pressed = 0
	}

	dir := 0
	if !locked {
		switch {
		case in.Buttons.Has(ButtonLeft) && !in.Buttons.Has(ButtonRight):
			dir = -1
		case in.Buttons.Has(ButtonRight) && !in.Buttons.Has(ButtonLeft):
			dir = 1
		}
	}

	switch {
	case dir != 0:
		accel := ph.RunAccel
		if !p.Grounded {
			accel = ph.AirAccel
		}
		p.Vel[0] = clamp(madd(p.Vel[0], float64(dir), accel), -ph.MaxRun, ph.MaxRun)
	case p.Grounded:
		p.Vel[0] = float64(p.Vel[0] * ph.Friction)
		if math.Abs(p.Vel[0]) < 0.05 {
			p.Vel[0] = 0
		}
	default:
		p.Vel[0] = float64(p.Vel[0] * ph.AirDrag)
	}

	switch {
	case in.AimX > 0.2:
		p.Facing = 1
	case in.AimX < -0.2:
		p.Facing = -1
	case dir != 0:
		p.Facing = int8(dir)
	}

	if pressed.Has(ButtonJump) && p.JumpsLeft > 0 {
		p.Vel[1] = ph.JumpSpeed
		p.JumpsLeft--
		p.Grounded = false
	}
	if pressed.Has(ButtonTaunt) && p.Grounded {
		p.Flags = p.Flags.With(FlagTaunting)
		p.TauntFor = ph.TauntTicks
		p.Vel[0] = 0
	}
	if pressed.Has(ButtonDrop) && p.Weapon != WeaponNone {
		dropWeapon(s, p)
	}
	if pressed.Has(ButtonFire) {
		fire(s, i, in)
	}
}

// integrate applies gravity and velocity, then lands the player on the first
// one-way platform crossed from above.
func integrate(p *PlayerState, m Map, ph Physics) {
	if !p.Alive() {
		return
	}
	p.Vel[1] = math.Max(p.Vel[1]-ph.Gravity, -ph.MaxFall)
	prevY := p.Pos[1]
	p.Pos = p.Pos.Add(p.Vel)
	p.Grounded = false
	if p.Vel[1] > 0 {
		return
	}
	half := ph.BodyWidth / 2
	for _, pl := range m.Platforms {
		if p.Pos[0]+half < pl.X || p.Pos[0]-half > pl.X+pl.W {
			continue
		}
		if prevY >= pl.Y && p.Pos[1] <= pl.Y {
			p.Pos[1] = pl.Y
			p.Vel[1] = 0
			p.Grounded = true
			p.JumpsLeft = ph.MaxJumps
			return
		}
	}
}

// madd returns a + b*c with the product rounded before the sum.
func madd(a, b, c float64) float64 {
	return a + float64(b*c)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// countdown decrements a positive timer and reports whether it just expired.
func countdown(t *int) bool {
	if *t <= 0 {
		return false
	}
	*t--
	return *t == 0
}
