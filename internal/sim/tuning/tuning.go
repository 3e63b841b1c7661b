package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stomparena.io/internal/sim"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// Client-side netcode.
	HistoryCapacity  int `yaml:"history_capacity"`
	LeadTicks        int `yaml:"lead_ticks"`
	LeadMaxPerFrame  int `yaml:"lead_max_per_frame"`
	MaxStepsPerFrame int `yaml:"max_steps_per_frame"`

	Match   MatchRules  `yaml:"match"`
	Physics sim.Physics `yaml:"physics"`
}

type MatchRules struct {
	Map                  string `yaml:"map"`
	InitialLives         int    `yaml:"initial_lives"`
	MatchDurationTicks   uint64 `yaml:"match_duration_ticks"`
	SuddenDeathStartTick uint64 `yaml:"sudden_death_start_tick"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         60,
		SnapshotEveryTicks: 3,
		HistoryCapacity:    128,
		LeadTicks:          6,
		LeadMaxPerFrame:    8,
		MaxStepsPerFrame:   3,
		Match: MatchRules{
			Map:                  "yard",
			InitialLives:         3,
			MatchDurationTicks:   60 * 180,
			SuddenDeathStartTick: 60 * 120,
		},
		Physics: sim.DefaultPhysics(),
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func (t *Tuning) applyDefaults() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.SnapshotEveryTicks <= 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
	if t.HistoryCapacity <= 0 {
		t.HistoryCapacity = d.HistoryCapacity
	}
	// The replay window must cover the lead or every snapshot would resync.
	if t.LeadTicks <= 0 {
		t.LeadTicks = d.LeadTicks
	}
	if t.HistoryCapacity < t.LeadTicks*2 {
		t.HistoryCapacity = t.LeadTicks * 2
	}
	if t.LeadMaxPerFrame <= 0 {
		t.LeadMaxPerFrame = d.LeadMaxPerFrame
	}
	if t.MaxStepsPerFrame <= 0 {
		t.MaxStepsPerFrame = d.MaxStepsPerFrame
	}
	if t.Match.Map == "" {
		t.Match.Map = d.Match.Map
	}
}

// MatchConfig builds the immutable match configuration from the tuning and
// the resolved arena.
func (t Tuning) MatchConfig(seed int64, m sim.Map) sim.MatchConfig {
	return sim.MatchConfig{
		Seed:                 seed,
		Map:                  m,
		PlayerCount:          sim.MaxPlayers,
		TickRate:             t.TickRateHz,
		InitialLives:         t.Match.InitialLives,
		MatchDurationTicks:   t.Match.MatchDurationTicks,
		SuddenDeathStartTick: t.Match.SuddenDeathStartTick,
		Physics:              t.Physics,
	}.WithDefaults()
}
