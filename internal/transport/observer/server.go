package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"stomparena.io/internal/observerproto"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/replay"
)

// Resolver finds the recording for a match id.
type Resolver func(match string) (replay.Transcript, error)

// Server streams recorded matches to spectators. Each connection gets its
// own replay engine, stepped on the connection's goroutine.
type Server struct {
	resolve Resolver
	log     *log.Logger
	frame   time.Duration

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(resolve Resolver, logger *log.Logger) *Server {
	return &Server{
		resolve: resolve,
		log:     logger,
		frame:   time.Second / 60,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// WithFrameInterval sets how often playback advances and frames are sent.
func (s *Server) WithFrameInterval(d time.Duration) *Server {
	if d > 0 {
		s.frame = d
	}
	return s
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}
		tr, err := s.resolve(sub.Match)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, fmt.Sprintf("match %q: %v", sub.Match, err))
			return
		}
		_ = conn.SetReadDeadline(time.Time{})

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		if s.log != nil {
			s.log.Printf("observer %s watching match=%s ticks=%d", sid, sub.Match, tr.Len())
		}

		eng := replay.New(tr.Config, tr)
		eng.SetSpeed(sub.SpeedExp)
		if sub.Paused {
			eng.Pause()
		}

		// Reader goroutine: control messages only.
		controls := make(chan observerproto.ControlMsg, 16)
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var c observerproto.ControlMsg
				if err := json.Unmarshal(msg, &c); err != nil || c.Type != observerproto.TypeControl {
					continue
				}
				select {
				case controls <- c:
				default:
					// Drop under load; the viewer may resend.
				}
			}
		}()

		status := func() error {
			return writeJSON(conn, observerproto.StatusMsg{
				Type:            observerproto.TypeStatus,
				ProtocolVersion: observerproto.Version,
				Match:           sub.Match,
				Tick:            eng.Tick(),
				Ticks:           tr.Len(),
				Paused:          eng.Paused(),
				SpeedExp:        eng.SpeedExp(),
				Done:            eng.Done(),
			})
		}
		if err := status(); err != nil {
			return
		}

		ticker := time.NewTicker(s.frame)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-readDone:
				return
			case c := <-controls:
				apply(eng, c)
				if err := status(); err != nil {
					return
				}
			case now := <-ticker.C:
				n := eng.Update(now.Sub(last))
				last = now
				if n > 0 {
					frame := observerproto.FrameMsg{
						Type:        protocol.TypeSnapshot,
						Tick:        eng.Tick(),
						State:       eng.State(),
						LastButtons: eng.LastButtons(),
					}
					if err := writeJSON(conn, frame); err != nil {
						return
					}
				}
				if eng.Done() {
					_ = status()
					closeWith(conn, websocket.CloseNormalClosure, "replay done")
					// Let the viewer's close echo arrive before conn.Close.
					select {
					case <-readDone:
					case <-time.After(time.Second):
					}
					return
				}
			}
		}
	}
}

func apply(eng *replay.Engine, c observerproto.ControlMsg) {
	switch c.Op {
	case observerproto.OpPause:
		eng.Pause()
	case observerproto.OpResume:
		eng.Resume()
	case observerproto.OpToggle:
		eng.Toggle()
	case observerproto.OpFaster:
		eng.Faster()
	case observerproto.OpSlower:
		eng.Slower()
	case observerproto.OpSpeed:
		eng.SetSpeed(c.SpeedExp)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
