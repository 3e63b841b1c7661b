package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stomparena.io/internal/protocol"
)

// Conn is the client side of a match connection. SendInput may be called
// from any goroutine; Run must be the only reader.
type Conn struct {
	conn    *websocket.Conn
	codec   protocol.Codec
	welcome protocol.WelcomeMsg

	mu sync.Mutex
}

// Dial connects, sends hello and waits for WELCOME.
func Dial(ctx context.Context, url string, hello protocol.HelloMsg) (*Conn, error) {
	codec, err := protocol.ParseCodec(hello.Codec)
	if err != nil {
		return nil, err
	}
	hello.Type = protocol.TypeHello
	if hello.ProtocolVersion == "" {
		hello.ProtocolVersion = protocol.Version
	}
	hello.Codec = string(codec)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	base, err := protocol.DecodeBase(protocol.CodecJSON, msg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	switch base.Type {
	case protocol.TypeWelcome:
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		conn.Close()
		return nil, fmt.Errorf("server refused: %s %s", e.Code, e.Message)
	default:
		conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", base.Type)
	}

	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode WELCOME: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return &Conn{conn: conn, codec: codec, welcome: w}, nil
}

func (c *Conn) Welcome() protocol.WelcomeMsg { return c.welcome }
func (c *Conn) Codec() protocol.Codec        { return c.codec }
func (c *Conn) Close() error                 { return c.conn.Close() }

func (c *Conn) SendInput(m protocol.InputMsg) error {
	m.Type = protocol.TypeInput
	b, err := c.codec.Marshal(m)
	if err != nil {
		return err
	}
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(frameType, b)
}

// Run reads snapshots until the connection closes or ctx is done. A normal
// close from the server (match over) returns nil.
func (c *Conn) Run(ctx context.Context, onSnapshot func(protocol.SnapshotMsg)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		base, err := protocol.DecodeBase(c.codec, msg)
		if err != nil || base.Type != protocol.TypeSnapshot {
			continue
		}
		var snap protocol.SnapshotMsg
		if err := c.codec.Unmarshal(msg, &snap); err != nil {
			continue
		}
		onSnapshot(snap)
	}
}
