package sim

type WeaponID uint8

const (
	WeaponNone WeaponID = iota
	WeaponPistol
	WeaponShotgun
	WeaponRifle

	weaponCount
)

type WeaponSpec struct {
	Speed    float64
	Damage   int
	Cooldown int
	Ammo     int
	Pellets  int
	// Spread is the angle in radians between adjacent pellets.
	Spread float64
	TTL    int
}

var weaponSpecs = [weaponCount]WeaponSpec{
	WeaponNone:    {},
	WeaponPistol:  {Speed: 11, Damage: 12, Cooldown: 14, Ammo: 12, Pellets: 1, TTL: 90},
	WeaponShotgun: {Speed: 9, Damage: 8, Cooldown: 40, Ammo: 6, Pellets: 5, Spread: 0.09, TTL: 30},
	WeaponRifle:   {Speed: 16, Damage: 22, Cooldown: 28, Ammo: 8, Pellets: 1, TTL: 80},
}

// Spec returns the fixed characteristics of w. Unknown ids behave as no weapon.
func (w WeaponID) Spec() WeaponSpec {
	if w >= weaponCount {
		return WeaponSpec{}
	}
	return weaponSpecs[w]
}

func (w WeaponID) String() string {
	switch w {
	case WeaponPistol:
		return "PISTOL"
	case WeaponShotgun:
		return "SHOTGUN"
	case WeaponRifle:
		return "RIFLE"
	default:
		return "NONE"
	}
}
