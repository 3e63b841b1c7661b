package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"stomparena.io/internal/protocol"
	"stomparena.io/internal/server/room"
)

// Lobby hands out the room new connections should join.
type Lobby interface {
	Room() *room.Room
}

type Server struct {
	lobby Lobby
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(lobby Lobby, logger *log.Logger) *Server {
	s := &Server{
		lobby: lobby,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		rm, player, codec, out := s.handshake(conn)
		if rm == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		frameType := websocket.TextMessage
		if codec.Binary() {
			frameType = websocket.BinaryMessage
		}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-rm.Done():
					flush(conn, frameType, out)
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"), time.Now().Add(time.Second))
					cancel()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(frameType, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(codec, msg)
			if err != nil || base.Type != protocol.TypeInput {
				continue
			}
			var in protocol.InputMsg
			if err := codec.Unmarshal(msg, &in); err != nil {
				continue
			}
			select {
			case rm.Inbox() <- room.InputEnvelope{Player: player, Msg: in}:
			case <-rm.Done():
			}
		}

		leaveRoom(rm, player)
	}
}

// leaveRoom releases a seated player so the room stops writing to its
// outbound channel.
func leaveRoom(rm *room.Room, player int) {
	select {
	case rm.Leave() <- player:
	case <-rm.Done():
	}
}

// handshake reads HELLO and answers WELCOME, both as JSON text frames.
// Everything after uses the codec chosen in HELLO.
func (s *Server) handshake(conn *websocket.Conn) (*room.Room, int, protocol.Codec, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, 0, "", nil
	}

	base, err := protocol.DecodeBase(protocol.CodecJSON, msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil, 0, "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, 0, "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrVersion, Message: "bad protocol_version"})
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil, 0, "", nil
	}
	codec, err := protocol.ParseCodec(hello.Codec)
	if err != nil {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrBadCodec, Message: err.Error()})
		closeWith(conn, websocket.ClosePolicyViolation, "bad codec")
		return nil, 0, "", nil
	}
	name := strings.TrimSpace(hello.PlayerName)
	if name == "" {
		name = "player"
	}

	rm := s.lobby.Room()
	if rm == nil {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrRoomNotFound})
		return nil, 0, "", nil
	}
	out := make(chan []byte, 64)
	respCh := make(chan room.JoinResponse, 1)
	select {
	case rm.Join() <- room.JoinRequest{Name: name, Codec: codec, Out: out, Resp: respCh}:
	case <-rm.Done():
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrMatchOver})
		return nil, 0, "", nil
	}
	var resp room.JoinResponse
	select {
	case resp = <-respCh:
	case <-rm.Done():
		return nil, 0, "", nil
	}
	if resp.Code != "" {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: resp.Code})
		closeWith(conn, websocket.CloseTryAgainLater, resp.Code)
		return nil, 0, "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		// Admit already seated the player.
		leaveRoom(rm, resp.Player)
		return nil, 0, "", nil
	}
	if s.log != nil {
		s.log.Printf("player %d (%s) joined room %s codec=%s", resp.Player, name, rm.ID(), codec)
	}
	return rm, resp.Player, codec, out
}

// flush writes whatever the room queued before it stopped, so the final
// snapshot reaches the client ahead of the close frame.
func flush(conn *websocket.Conn, frameType int, out chan []byte) {
	for {
		select {
		case b := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(frameType, b); err != nil {
				return
			}
		default:
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
