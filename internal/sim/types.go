package sim

import "github.com/go-gl/mathgl/mgl64"

// MaxPlayers is the fixed size of every per-player collection in the state.
const MaxPlayers = 2

// PlayerRef identifies a player by index. NoPlayer marks an empty link.
type PlayerRef int8

const NoPlayer PlayerRef = -1

// Buttons is the per-tick button bitmask.
type Buttons uint16

const (
	ButtonLeft Buttons = 1 << iota
	ButtonRight
	ButtonUp
	ButtonDown
	ButtonJump
	ButtonFire
	ButtonTaunt
	ButtonDrop

	ButtonMask = ButtonLeft | ButtonRight | ButtonUp | ButtonDown | ButtonJump | ButtonFire | ButtonTaunt | ButtonDrop
)

func (b Buttons) Has(x Buttons) bool { return b&x == x }

// Pressed returns the buttons that went down between prev and b.
func (b Buttons) Pressed(prev Buttons) Buttons { return b &^ prev }

// Input is one player's input for one tick.
type Input struct {
	Buttons Buttons `json:"buttons"`
	AimX    float64 `json:"aimX"`
	AimY    float64 `json:"aimY"`
}

// InputFrame holds every player's input for one tick, indexed by player.
// Entries at or beyond the match's player count are ignored.
type InputFrame [MaxPlayers]Input

// StatusFlags is the player status bitset.
type StatusFlags uint8

const (
	FlagAlive StatusFlags = 1 << iota
	FlagInvincible
	FlagTaunting
	FlagStunned
)

func (f StatusFlags) Has(x StatusFlags) bool            { return f&x == x }
func (f StatusFlags) With(x StatusFlags) StatusFlags    { return f | x }
func (f StatusFlags) Without(x StatusFlags) StatusFlags { return f &^ x }

type PlayerState struct {
	Pos       mgl64.Vec2  `json:"pos"`
	Vel       mgl64.Vec2  `json:"vel"`
	Facing    int8        `json:"facing"`
	Health    int         `json:"health"`
	Lives     int         `json:"lives"`
	Flags     StatusFlags `json:"flags"`
	Weapon    WeaponID    `json:"weapon"`
	Ammo      int         `json:"ammo"`
	JumpsLeft int         `json:"jumps_left"`
	Grounded  bool        `json:"grounded"`

	// Stomp links are back-references by index, recomputed every tick.
	StandingOn PlayerRef `json:"standing_on"`
	StoodOnBy  PlayerRef `json:"stood_on_by"`

	Cooldown      int `json:"cooldown"`
	Respawn       int `json:"respawn"`
	InvincibleFor int `json:"invincible_for"`
	TauntFor      int `json:"taunt_for"`
	StunFor       int `json:"stun_for"`
}

func (p *PlayerState) Alive() bool { return p.Flags.Has(FlagAlive) }

type Projectile struct {
	ID     uint32     `json:"id"`
	Owner  PlayerRef  `json:"owner"`
	Weapon WeaponID   `json:"weapon"`
	Pos    mgl64.Vec2 `json:"pos"`
	Vel    mgl64.Vec2 `json:"vel"`
	Damage int        `json:"damage"`
	TTL    int        `json:"ttl"`
}

type WeaponPickup struct {
	ID     uint32     `json:"id"`
	Weapon WeaponID   `json:"weapon"`
	Ammo   int        `json:"ammo"`
	Pos    mgl64.Vec2 `json:"pos"`
	// Lock counts down the ticks before a dropped weapon can be collected.
	Lock int `json:"lock"`
}

// Bounds is the live arena boundary. It shrinks during sudden death.
type Bounds struct {
	MinX  float64 `json:"min_x"`
	MaxX  float64 `json:"max_x"`
	KillY float64 `json:"kill_y"`
}

// State is a complete simulation snapshot. States are immutable by
// convention: only Step produces a new one, from a Clone of the previous.
type State struct {
	Tick        uint64                  `json:"tick"`
	Players     [MaxPlayers]PlayerState `json:"players"`
	Projectiles []Projectile            `json:"projectiles"`
	Pickups     []WeaponPickup          `json:"pickups"`
	Arena       Bounds                  `json:"arena"`

	MatchOver   bool `json:"match_over"`
	Winner      int8 `json:"winner"`
	SuddenDeath bool `json:"sudden_death"`

	DeathLinger int `json:"death_linger"`
	PickupTimer int `json:"pickup_timer"`

	RNG    uint64 `json:"rng"`
	NextID uint32 `json:"next_id"`
}

// Clone returns a deep copy; the result shares no slices with s.
func (s State) Clone() State {
	out := s
	if s.Projectiles != nil {
		out.Projectiles = make([]Projectile, len(s.Projectiles))
		copy(out.Projectiles, s.Projectiles)
	}
	if s.Pickups != nil {
		out.Pickups = make([]WeaponPickup, len(s.Pickups))
		copy(out.Pickups, s.Pickups)
	}
	return out
}
