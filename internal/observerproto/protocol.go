// Package observerproto is the spectator protocol: a viewer subscribes to a
// recorded match and steers its playback.
package observerproto

import "stomparena.io/internal/protocol"

// Version is the observer protocol version (separate from the player protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeControl   = "CONTROL"
	TypeStatus    = "REPLAY_STATUS"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Match           string `json:"match"`
	SpeedExp        int    `json:"speed_exp,omitempty"`
	Paused          bool   `json:"paused,omitempty"`
}

// Control ops.
const (
	OpPause  = "pause"
	OpResume = "resume"
	OpToggle = "toggle"
	OpFaster = "faster"
	OpSlower = "slower"
	OpSpeed  = "speed"
)

// Client -> Server. Steers playback. SpeedExp is used by OpSpeed only.
type ControlMsg struct {
	Type     string `json:"type"`
	Op       string `json:"op"`
	SpeedExp int    `json:"speed_exp,omitempty"`
}

// Server -> Client. Sent after the subscription is accepted, after every
// control message, and when playback ends.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Match           string `json:"match"`
	Tick            uint64 `json:"tick"`
	Ticks           int    `json:"ticks"`
	Paused          bool   `json:"paused"`
	SpeedExp        int    `json:"speed_exp"`
	Done            bool   `json:"done"`
}

// Frames are ordinary SNAPSHOT messages, one per rendered frame.
type FrameMsg = protocol.SnapshotMsg
