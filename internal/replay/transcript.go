// Package replay plays a recorded match back through the simulation with no
// network input and no prediction.
package replay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"stomparena.io/internal/input"
	tlog "stomparena.io/internal/persistence/log"
	"stomparena.io/internal/sim"
)

// Transcript is a normalized recording: the match config and one input
// frame per tick, starting at tick 1. Digests, when present, are the
// recorded state digests indexed by tick (Digests[0] is the initial state).
type Transcript struct {
	Match   string
	Config  sim.MatchConfig
	Ticks   []sim.InputFrame
	Digests []string
}

var ErrEmpty = errors.New("replay: transcript has no ticks")

// rawInput accepts both aim spellings. Missing components stay nil.
type rawInput struct {
	Buttons int64    `json:"buttons"`
	AimX    *float64 `json:"aimX"`
	AimXAlt *float64 `json:"aim_x"`
	AimY    *float64 `json:"aimY"`
	AimYAlt *float64 `json:"aim_y"`
}

func (r rawInput) normalize() sim.Input {
	in := sim.Input{Buttons: sim.Buttons(r.Buttons) & sim.ButtonMask}
	in.AimX = pick(r.AimX, r.AimXAlt)
	in.AimY = pick(r.AimY, r.AimYAlt)
	return input.Sanitize(in)
}

func pick(a, b *float64) float64 {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return 0
}

type rawTranscript struct {
	Seed   int64            `json:"seed"`
	Config *sim.MatchConfig `json:"config"`
	Ticks  [][]rawInput     `json:"ticks"`
}

// Parse reads the JSON transcript form:
//
//	{"seed": 7, "config": {...}, "ticks": [[{"buttons": 1, "aimX": 0.5}, {...}], ...]}
//
// config is optional. A non-zero seed overrides the config's.
func Parse(r io.Reader) (Transcript, error) {
	var raw rawTranscript
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}

	var t Transcript
	if raw.Config != nil {
		t.Config = *raw.Config
	}
	if raw.Seed != 0 {
		t.Config.Seed = raw.Seed
	}
	t.Ticks = make([]sim.InputFrame, len(raw.Ticks))
	for i, entry := range raw.Ticks {
		for p := 0; p < len(entry) && p < sim.MaxPlayers; p++ {
			t.Ticks[i][p] = entry[p].normalize()
		}
	}
	if len(t.Ticks) == 0 {
		return t, ErrEmpty
	}
	return t, nil
}

// FromTickLog rebuilds a transcript from a recorded tick log. The first
// entry carries the config; each later entry carries that tick's inputs.
func FromTickLog(entries []tlog.TickEntry) (Transcript, error) {
	if len(entries) == 0 {
		return Transcript{}, ErrEmpty
	}
	head := entries[0]
	if head.Tick != 0 || head.Config == nil {
		return Transcript{}, fmt.Errorf("tick log: first entry is tick %d without config", head.Tick)
	}
	t := Transcript{
		Match:   head.Match,
		Config:  *head.Config,
		Digests: []string{head.Digest},
	}
	for i, e := range entries[1:] {
		want := uint64(i + 1)
		if e.Tick != want {
			return Transcript{}, fmt.Errorf("tick log: expected tick %d, got %d", want, e.Tick)
		}
		// Recorded inputs were sanitized before they were stepped.
		var f sim.InputFrame
		if e.Inputs != nil {
			f = sim.InputFrame(*e.Inputs)
		}
		t.Ticks = append(t.Ticks, f)
		t.Digests = append(t.Digests, e.Digest)
	}
	if len(t.Ticks) == 0 {
		return t, ErrEmpty
	}
	return t, nil
}

// Load reads a transcript from a JSON file or a recorded .jsonl.zst tick log.
func Load(path string) (Transcript, error) {
	if strings.HasSuffix(path, ".jsonl.zst") {
		entries, err := tlog.ReadTicks(path)
		if err != nil {
			return Transcript{}, err
		}
		return FromTickLog(entries)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, err
	}
	return Parse(bytes.NewReader(b))
}

// Len is the number of recorded ticks.
func (t Transcript) Len() int { return len(t.Ticks) }
