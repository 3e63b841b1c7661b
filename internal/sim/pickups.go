package sim

import "github.com/go-gl/mathgl/mgl64"

// stepPickups spawns weapons on the pickup timer and hands them to the first
// alive player (by index) touching them.
func stepPickups(s *State, n int, cfg MatchConfig) {
	ph := cfg.Physics
	if countdown(&s.PickupTimer) {
		s.PickupTimer = ph.PickupIntervalTicks
		spawnPickup(s, cfg)
	}

	kept := s.Pickups[:0]
	for _, pk := range s.Pickups {
		if pk.Lock > 0 {
			pk.Lock--
			kept = append(kept, pk)
			continue
		}
		if !collectPickup(s, n, pk, ph) {
			kept = append(kept, pk)
		}
	}
	s.Pickups = kept
}

func spawnPickup(s *State, cfg MatchConfig) {
	spots := cfg.Map.PickupSpots
	if len(spots) == 0 || len(s.Pickups) >= cfg.Physics.MaxPickups {
		return
	}
	spot := spots[s.intn(len(spots))]
	weapon := WeaponID(1 + s.intn(int(weaponCount)-1))
	for _, pk := range s.Pickups {
		if pk.Pos == spot {
			return
		}
	}
	s.Pickups = append(s.Pickups, WeaponPickup{
		ID:     s.nextID(),
		Weapon: weapon,
		Ammo:   weapon.Spec().Ammo,
		Pos:    spot,
	})
}

func collectPickup(s *State, n int, pk WeaponPickup, ph Physics) bool {
	for i := 0; i < n; i++ {
		p := &s.Players[i]
		if !p.Alive() || p.Weapon != WeaponNone {
			continue
		}
		center := mgl64.Vec2{p.Pos[0], p.Pos[1] + ph.BodyHeight/2}
		if center.Sub(pk.Pos).Len() > ph.PickupRadius+ph.BodyHeight/2 {
			continue
		}
		p.Weapon = pk.Weapon
		p.Ammo = pk.Ammo
		p.Cooldown = 0
		return true
	}
	return false
}
