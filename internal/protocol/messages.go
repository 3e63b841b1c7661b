package protocol

import "stomparena.io/internal/sim"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	Codec           string `json:"codec,omitempty"`
	Room            string `json:"room,omitempty"`
}

// WELCOME (server -> client). Config is everything the client needs to run
// the same simulation as the server.
type WelcomeMsg struct {
	Type               string          `json:"type"`
	ProtocolVersion    string          `json:"protocol_version"`
	Player             int             `json:"player"`
	Codec              string          `json:"codec"`
	Room               string          `json:"room,omitempty"`
	TickRateHz         int             `json:"tick_rate_hz"`
	SnapshotEveryTicks int             `json:"snapshot_every_ticks"`
	LeadTicks          int             `json:"lead_ticks"`
	MapDigest          string          `json:"map_digest,omitempty"`
	Config             sim.MatchConfig `json:"config"`
}

// INPUT (client -> server): the local player's input for one tick.
type InputMsg struct {
	Type    string      `json:"type"`
	Tick    uint64      `json:"tick"`
	Buttons sim.Buttons `json:"buttons"`
	AimX    float64     `json:"aimX"`
	AimY    float64     `json:"aimY"`
}

func NewInputMsg(tick uint64, in sim.Input) InputMsg {
	return InputMsg{Type: TypeInput, Tick: tick, Buttons: in.Buttons, AimX: in.AimX, AimY: in.AimY}
}

func (m InputMsg) Input() sim.Input {
	return sim.Input{Buttons: m.Buttons, AimX: m.AimX, AimY: m.AimY}
}

// SNAPSHOT (server -> client). LastButtons are the buttons each player fed
// into the step that produced State.
type SnapshotMsg struct {
	Type        string                      `json:"type"`
	Tick        uint64                      `json:"tick"`
	State       sim.State                   `json:"state"`
	LastButtons [sim.MaxPlayers]sim.Buttons `json:"lastButtons"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
