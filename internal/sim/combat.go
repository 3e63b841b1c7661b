package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// minAim is the smallest aim vector length treated as an explicit aim.
const minAim = 0.2

const dropLockTicks = 30

func fire(s *State, i int, in Input) {
	p := &s.Players[i]
	stats := p.Weapon.Spec()
	if p.Weapon == WeaponNone || p.Ammo <= 0 || p.Cooldown > 0 || stats.Pellets <= 0 {
		return
	}

	dir := mgl64.Vec2{float64(p.Facing), 0}
	if aim := (mgl64.Vec2{in.AimX, in.AimY}); aim.Len() >= minAim {
		dir = aim.Normalize()
	}

	// Muzzle at chest height, just outside the body.
	origin := mgl64.Vec2{p.Pos[0], p.Pos[1] + 20}
	origin[0] = madd(origin[0], dir[0], 14)
	origin[1] = madd(origin[1], dir[1], 14)

	mid := float64(stats.Pellets-1) / 2
	for k := 0; k < stats.Pellets; k++ {
		d := rotate(dir, float64(float64(k)-mid)*stats.Spread)
		s.Projectiles = append(s.Projectiles, Projectile{
			ID:     s.nextID(),
			Owner:  PlayerRef(i),
			Weapon: p.Weapon,
			Pos:    origin,
			Vel:    mgl64.Vec2{float64(d[0] * stats.Speed), float64(d[1] * stats.Speed)},
			Damage: stats.Damage,
			TTL:    stats.TTL,
		})
	}
	p.Ammo--
	p.Cooldown = stats.Cooldown
	if p.Ammo == 0 {
		p.Weapon = WeaponNone
	}
}

func rotate(v mgl64.Vec2, angle float64) mgl64.Vec2 {
	if angle == 0 {
		return v
	}
	sin, cos := math.Sincos(angle)
	return mgl64.Vec2{
		float64(v[0]*cos) - float64(v[1]*sin),
		float64(v[0]*sin) + float64(v[1]*cos),
	}
}

// dropWeapon leaves the held weapon as a pickup at the player's feet.
func dropWeapon(s *State, p *PlayerState) {
	if p.Ammo > 0 {
		s.Pickups = append(s.Pickups, WeaponPickup{
			ID:     s.nextID(),
			Weapon: p.Weapon,
			Ammo:   p.Ammo,
			Pos:    p.Pos,
			Lock:   dropLockTicks,
		})
	}
	p.Weapon = WeaponNone
	p.Ammo = 0
	p.Cooldown = 0
}

// resolveStomps recomputes the standing links from scratch. A player whose
// feet are inside the top band of another player's body while not rising
// bounces off and damages the player below.
func resolveStomps(s *State, n int, ph Physics) {
	for i := 0; i < n; i++ {
		s.Players[i].StandingOn = NoPlayer
		s.Players[i].StoodOnBy = NoPlayer
	}
	for i := 0; i < n; i++ {
		top := &s.Players[i]
		if !top.Alive() || top.Vel[1] > 0 {
			continue
		}
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			below := &s.Players[j]
			if !below.Alive() || below.StandingOn == PlayerRef(i) {
				continue
			}
			if math.Abs(top.Pos[0]-below.Pos[0]) >= ph.BodyWidth {
				continue
			}
			head := below.Pos[1] + ph.BodyHeight
			if top.Pos[1] > head || top.Pos[1] < head-ph.StompBand {
				continue
			}
			top.Pos[1] = head
			top.Vel[1] = ph.StompBounce
			top.JumpsLeft = ph.MaxJumps
			top.StandingOn = PlayerRef(j)
			below.StoodOnBy = PlayerRef(i)
			if !below.Flags.Has(FlagInvincible) {
				below.Health -= ph.StompDamage
				below.Flags = below.Flags.With(FlagStunned).Without(FlagTaunting)
				below.StunFor = ph.StunTicks
				below.TauntFor = 0
			}
			break
		}
	}
}

func stepProjectiles(s *State, n int, ph Physics) {
	kept := s.Projectiles[:0]
	for _, pr := range s.Projectiles {
		pr.Pos = pr.Pos.Add(pr.Vel)
		pr.TTL--
		if pr.TTL <= 0 || pr.Pos[0] < s.Arena.MinX || pr.Pos[0] > s.Arena.MaxX || pr.Pos[1] < s.Arena.KillY {
			continue
		}
		if hitPlayer(s, n, pr, ph) {
			continue
		}
		kept = append(kept, pr)
	}
	s.Projectiles = kept
}

func hitPlayer(s *State, n int, pr Projectile, ph Physics) bool {
	half := ph.BodyWidth / 2
	for j := 0; j < n; j++ {
		if PlayerRef(j) == pr.Owner {
			continue
		}
		p := &s.Players[j]
		if !p.Alive() {
			continue
		}
		if pr.Pos[0] < p.Pos[0]-half || pr.Pos[0] > p.Pos[0]+half {
			continue
		}
		if pr.Pos[1] < p.Pos[1] || pr.Pos[1] > p.Pos[1]+ph.BodyHeight {
			continue
		}
		// Invincible players still absorb the shot.
		if !p.Flags.Has(FlagInvincible) {
			p.Health -= pr.Damage
			push := ph.Knockback
			if pr.Vel[0] < 0 {
				push = -push
			}
			p.Vel[0] += push
		}
		return true
	}
	return false
}

// resolveDeaths removes a life from every player who fell out, left the
// shrinking arena or ran out of health this tick.
func resolveDeaths(s *State, n int, cfg MatchConfig) {
	for i := 0; i < n; i++ {
		p := &s.Players[i]
		if !p.Alive() {
			continue
		}
		out := p.Pos[1] < s.Arena.KillY || p.Pos[0] < s.Arena.MinX || p.Pos[0] > s.Arena.MaxX
		if !out && p.Health > 0 {
			continue
		}
		kill(s, i, n, cfg.Physics)
	}
}

func kill(s *State, i, n int, ph Physics) {
	p := &s.Players[i]
	p.Flags = 0
	p.Health = 0
	if p.Lives > 0 {
		p.Lives--
	}
	p.Vel = mgl64.Vec2{}
	p.Weapon = WeaponNone
	p.Ammo = 0
	p.Cooldown = 0
	p.InvincibleFor = 0
	p.TauntFor = 0
	p.StunFor = 0
	p.Grounded = false
	p.Respawn = 0
	if p.Lives > 0 {
		p.Respawn = ph.RespawnTicks
	}
	for j := 0; j < n; j++ {
		o := &s.Players[j]
		if o.StandingOn == PlayerRef(i) {
			o.StandingOn = NoPlayer
		}
		if o.StoodOnBy == PlayerRef(i) {
			o.StoodOnBy = NoPlayer
		}
	}
	p.StandingOn = NoPlayer
	p.StoodOnBy = NoPlayer
}
