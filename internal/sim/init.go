package sim

import "github.com/go-gl/mathgl/mgl64"

// Initialize builds the tick-0 state for a round. It depends only on cfg.
func Initialize(cfg MatchConfig) State {
	cfg = cfg.WithDefaults()
	ph := cfg.Physics

	s := State{
		Tick:        0,
		Projectiles: []Projectile{},
		Pickups:     []WeaponPickup{},
		Arena: Bounds{
			MinX:  cfg.Map.MinX,
			MaxX:  cfg.Map.MaxX,
			KillY: cfg.Map.KillY,
		},
		Winner:      -1,
		PickupTimer: ph.PickupFirstSpawnTicks,
		RNG:         seedRNG(cfg.Seed),
	}
	for i := range s.Players {
		p := &s.Players[i]
		p.StandingOn = NoPlayer
		p.StoodOnBy = NoPlayer
		if i >= cfg.PlayerCount {
			continue
		}
		p.Lives = cfg.InitialLives
		spawn(p, i, &s, cfg)
		p.Flags = FlagAlive
		p.InvincibleFor = 0
	}
	return s
}

// spawn places a player at its map spawn with full health and a short
// invincibility window. Lives are left untouched.
func spawn(p *PlayerState, idx int, s *State, cfg MatchConfig) {
	ph := cfg.Physics
	pos := cfg.Map.Spawns[idx]
	half := ph.BodyWidth / 2
	if pos[0] < s.Arena.MinX+half {
		pos[0] = s.Arena.MinX + half
	}
	if pos[0] > s.Arena.MaxX-half {
		pos[0] = s.Arena.MaxX - half
	}
	p.Pos = pos
	p.Vel = mgl64.Vec2{}
	p.Facing = 1
	if pos[0] > (cfg.Map.MinX+cfg.Map.MaxX)/2 {
		p.Facing = -1
	}
	p.Health = ph.MaxHealth
	p.Flags = FlagAlive | FlagInvincible
	p.InvincibleFor = ph.InvincibleTicks
	p.Weapon = WeaponNone
	p.Ammo = 0
	p.JumpsLeft = ph.MaxJumps
	p.Grounded = false
	p.StandingOn = NoPlayer
	p.StoodOnBy = NoPlayer
	p.Cooldown = 0
	p.Respawn = 0
	p.TauntFor = 0
	p.StunFor = 0
}
