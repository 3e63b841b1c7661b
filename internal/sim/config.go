package sim

import "github.com/go-gl/mathgl/mgl64"

// MatchConfig is fixed for the lifetime of a match.
type MatchConfig struct {
	Seed                 int64   `json:"seed" yaml:"seed"`
	Map                  Map     `json:"map" yaml:"map"`
	PlayerCount          int     `json:"player_count" yaml:"player_count"`
	TickRate             int     `json:"tick_rate" yaml:"tick_rate"`
	InitialLives         int     `json:"initial_lives" yaml:"initial_lives"`
	MatchDurationTicks   uint64  `json:"match_duration_ticks" yaml:"match_duration_ticks"`
	SuddenDeathStartTick uint64  `json:"sudden_death_start_tick" yaml:"sudden_death_start_tick"`
	Physics              Physics `json:"physics" yaml:"physics"`
}

// Map describes the arena geometry. Platforms are one-way: players land on
// the top edge when falling and pass through from below.
type Map struct {
	Name        string                 `json:"name" yaml:"name"`
	MinX        float64                `json:"min_x" yaml:"min_x"`
	MaxX        float64                `json:"max_x" yaml:"max_x"`
	KillY       float64                `json:"kill_y" yaml:"kill_y"`
	Platforms   []Platform             `json:"platforms" yaml:"platforms"`
	Spawns      [MaxPlayers]mgl64.Vec2 `json:"spawns" yaml:"spawns"`
	PickupSpots []mgl64.Vec2           `json:"pickup_spots" yaml:"pickup_spots"`
}

// Platform is a horizontal surface at height Y spanning [X, X+W].
type Platform struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
}

// Physics holds the per-tick constants of the ruleset. Units are arena
// units per tick (and per tick squared for accelerations).
type Physics struct {
	Gravity    float64 `json:"gravity" yaml:"gravity"`
	MaxFall    float64 `json:"max_fall" yaml:"max_fall"`
	RunAccel   float64 `json:"run_accel" yaml:"run_accel"`
	AirAccel   float64 `json:"air_accel" yaml:"air_accel"`
	MaxRun     float64 `json:"max_run" yaml:"max_run"`
	Friction   float64 `json:"friction" yaml:"friction"`
	AirDrag    float64 `json:"air_drag" yaml:"air_drag"`
	JumpSpeed  float64 `json:"jump_speed" yaml:"jump_speed"`
	MaxJumps   int     `json:"max_jumps" yaml:"max_jumps"`
	Knockback  float64 `json:"knockback" yaml:"knockback"`
	BodyWidth  float64 `json:"body_width" yaml:"body_width"`
	BodyHeight float64 `json:"body_height" yaml:"body_height"`

	StompBand   float64 `json:"stomp_band" yaml:"stomp_band"`
	StompBounce float64 `json:"stomp_bounce" yaml:"stomp_bounce"`
	StompDamage int     `json:"stomp_damage" yaml:"stomp_damage"`
	StunTicks   int     `json:"stun_ticks" yaml:"stun_ticks"`

	MaxHealth        int `json:"max_health" yaml:"max_health"`
	RespawnTicks     int `json:"respawn_ticks" yaml:"respawn_ticks"`
	InvincibleTicks  int `json:"invincible_ticks" yaml:"invincible_ticks"`
	TauntTicks       int `json:"taunt_ticks" yaml:"taunt_ticks"`
	DeathLingerTicks int `json:"death_linger_ticks" yaml:"death_linger_ticks"`

	PickupFirstSpawnTicks int     `json:"pickup_first_spawn_ticks" yaml:"pickup_first_spawn_ticks"`
	PickupIntervalTicks   int     `json:"pickup_interval_ticks" yaml:"pickup_interval_ticks"`
	MaxPickups            int     `json:"max_pickups" yaml:"max_pickups"`
	PickupRadius          float64 `json:"pickup_radius" yaml:"pickup_radius"`

	ShrinkPerTick float64 `json:"shrink_per_tick" yaml:"shrink_per_tick"`
	MinArenaWidth float64 `json:"min_arena_width" yaml:"min_arena_width"`
}

func DefaultPhysics() Physics {
	return Physics{
		Gravity:    0.45,
		MaxFall:    12,
		RunAccel:   0.6,
		AirAccel:   0.35,
		MaxRun:     4.5,
		Friction:   0.75,
		AirDrag:    0.96,
		JumpSpeed:  9.5,
		MaxJumps:   2,
		Knockback:  3,
		BodyWidth:  24,
		BodyHeight: 36,

		StompBand:   12,
		StompBounce: 7,
		StompDamage: 35,
		StunTicks:   20,

		MaxHealth:        100,
		RespawnTicks:     90,
		InvincibleTicks:  120,
		TauntTicks:       45,
		DeathLingerTicks: 60,

		PickupFirstSpawnTicks: 600,
		PickupIntervalTicks:   480,
		MaxPickups:            2,
		PickupRadius:          20,

		ShrinkPerTick: 0.25,
		MinArenaWidth: 240,
	}
}

var defaultMap = Map{
	Name:  "yard",
	MinX:  0,
	MaxX:  960,
	KillY: -200,
	Platforms: []Platform{
		{X: 80, Y: 0, W: 800},
		{X: 160, Y: 120, W: 200},
		{X: 600, Y: 120, W: 200},
		{X: 380, Y: 220, W: 200},
	},
	Spawns:      [MaxPlayers]mgl64.Vec2{{200, 0}, {760, 0}},
	PickupSpots: []mgl64.Vec2{{260, 120}, {700, 120}, {480, 220}},
}

// DefaultMap returns a copy of the built-in arena.
func DefaultMap() Map {
	m := defaultMap
	m.Platforms = append([]Platform(nil), defaultMap.Platforms...)
	m.PickupSpots = append([]mgl64.Vec2(nil), defaultMap.PickupSpots...)
	return m
}

// WithDefaults fills unset fields. Step and Initialize call it themselves,
// so callers only need it to inspect the effective values.
func (c MatchConfig) WithDefaults() MatchConfig {
	if c.PlayerCount <= 0 || c.PlayerCount > MaxPlayers {
		c.PlayerCount = MaxPlayers
	}
	if c.TickRate <= 0 {
		c.TickRate = 60
	}
	if c.InitialLives <= 0 {
		c.InitialLives = 3
	}
	if c.MatchDurationTicks == 0 {
		c.MatchDurationTicks = uint64(c.TickRate) * 180
	}
	if c.SuddenDeathStartTick == 0 {
		c.SuddenDeathStartTick = uint64(c.TickRate) * 120
	}
	if len(c.Map.Platforms) == 0 {
		c.Map = DefaultMap()
	}
	c.Physics.applyDefaults()
	return c
}

func (p *Physics) applyDefaults() {
	d := DefaultPhysics()
	if p.Gravity <= 0 {
		p.Gravity = d.Gravity
	}
	if p.MaxFall <= 0 {
		p.MaxFall = d.MaxFall
	}
	if p.RunAccel <= 0 {
		p.RunAccel = d.RunAccel
	}
	if p.AirAccel <= 0 {
		p.AirAccel = d.AirAccel
	}
	if p.MaxRun <= 0 {
		p.MaxRun = d.MaxRun
	}
	if p.Friction <= 0 || p.Friction >= 1 {
		p.Friction = d.Friction
	}
	if p.AirDrag <= 0 || p.AirDrag > 1 {
		p.AirDrag = d.AirDrag
	}
	if p.JumpSpeed <= 0 {
		p.JumpSpeed = d.JumpSpeed
	}
	if p.MaxJumps <= 0 {
		p.MaxJumps = d.MaxJumps
	}
	if p.Knockback <= 0 {
		p.Knockback = d.Knockback
	}
	if p.BodyWidth <= 0 {
		p.BodyWidth = d.BodyWidth
	}
	if p.BodyHeight <= 0 {
		p.BodyHeight = d.BodyHeight
	}
	if p.StompBand <= 0 {
		p.StompBand = d.StompBand
	}
	if p.StompBounce <= 0 {
		p.StompBounce = d.StompBounce
	}
	if p.StompDamage <= 0 {
		p.StompDamage = d.StompDamage
	}
	if p.StunTicks <= 0 {
		p.StunTicks = d.StunTicks
	}
	if p.MaxHealth <= 0 {
		p.MaxHealth = d.MaxHealth
	}
	if p.RespawnTicks <= 0 {
		p.RespawnTicks = d.RespawnTicks
	}
	if p.InvincibleTicks <= 0 {
		p.InvincibleTicks = d.InvincibleTicks
	}
	if p.TauntTicks <= 0 {
		p.TauntTicks = d.TauntTicks
	}
	if p.DeathLingerTicks <= 0 {
		p.DeathLingerTicks = d.DeathLingerTicks
	}
	if p.PickupFirstSpawnTicks <= 0 {
		p.PickupFirstSpawnTicks = d.PickupFirstSpawnTicks
	}
	if p.PickupIntervalTicks <= 0 {
		p.PickupIntervalTicks = d.PickupIntervalTicks
	}
	if p.MaxPickups <= 0 {
		p.MaxPickups = d.MaxPickups
	}
	if p.PickupRadius <= 0 {
		p.PickupRadius = d.PickupRadius
	}
	if p.ShrinkPerTick <= 0 {
		p.ShrinkPerTick = d.ShrinkPerTick
	}
	if p.MinArenaWidth <= 0 {
		p.MinArenaWidth = d.MinArenaWidth
	}
}
