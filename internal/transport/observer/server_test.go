package observer

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stomparena.io/internal/observerproto"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/replay"
	"stomparena.io/internal/sim"
)

func recording(n int) replay.Transcript {
	tr := replay.Transcript{Match: "m1", Config: sim.MatchConfig{Seed: 5, PlayerCount: 2, TickRate: 60}}
	for i := 0; i < n; i++ {
		var f sim.InputFrame
		f[0] = sim.Input{Buttons: sim.ButtonRight, AimX: 1}
		if i%20 == 0 {
			f[1] = sim.Input{Buttons: sim.ButtonJump | sim.ButtonFire, AimX: -1}
		}
		tr.Ticks = append(tr.Ticks, f)
	}
	return tr
}

func dial(t *testing.T, tr replay.Transcript) *websocket.Conn {
	t.Helper()
	resolve := func(match string) (replay.Transcript, error) {
		if match != tr.Match {
			return replay.Transcript{}, errors.New("not found")
		}
		return tr, nil
	}
	srv := httptest.NewServer(NewServer(resolve, nil).WithFrameInterval(5 * time.Millisecond).WSHandler())
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, sub observerproto.SubscribeMsg) {
	t.Helper()
	sub.Type = observerproto.TypeSubscribe
	sub.ProtocolVersion = observerproto.Version
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

func next(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &base); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base.Type, b
}

func TestObserver_PlaysToEnd(t *testing.T) {
	tr := recording(45)
	want := replay.New(tr.Config, tr).Run()

	conn := dial(t, tr)
	subscribe(t, conn, observerproto.SubscribeMsg{Match: "m1", SpeedExp: 3})

	typ, b := next(t, conn)
	var st observerproto.StatusMsg
	if typ != observerproto.TypeStatus || json.Unmarshal(b, &st) != nil {
		t.Fatalf("first message: %s", b)
	}
	if st.Tick != 0 || st.Ticks != 45 || st.SpeedExp != 3 || st.Done {
		t.Fatalf("initial status: %+v", st)
	}

	var last observerproto.FrameMsg
	frames := 0
	for {
		typ, b := next(t, conn)
		if typ == protocol.TypeSnapshot {
			var f observerproto.FrameMsg
			if err := json.Unmarshal(b, &f); err != nil {
				t.Fatalf("frame: %v", err)
			}
			if f.Tick <= last.Tick && frames > 0 {
				t.Fatalf("frames out of order: %d after %d", f.Tick, last.Tick)
			}
			if got := sim.Digest(f.State); got != want[f.Tick] {
				t.Fatalf("frame %d digest %s, want %s", f.Tick, got, want[f.Tick])
			}
			last = f
			frames++
			continue
		}
		if err := json.Unmarshal(b, &st); err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Done {
			break
		}
	}
	if last.Tick != 45 || st.Tick != 45 {
		t.Fatalf("ended at frame %d status %d", last.Tick, st.Tick)
	}
	if frames >= 45 {
		t.Fatalf("8x playback should batch ticks, got %d frames", frames)
	}
}

func TestObserver_Controls(t *testing.T) {
	tr := recording(600)
	conn := dial(t, tr)
	subscribe(t, conn, observerproto.SubscribeMsg{Match: "m1", Paused: true})

	var st observerproto.StatusMsg
	if _, b := next(t, conn); json.Unmarshal(b, &st) != nil || !st.Paused {
		t.Fatalf("initial status: %s", b)
	}

	send := func(c observerproto.ControlMsg) observerproto.StatusMsg {
		t.Helper()
		c.Type = observerproto.TypeControl
		if err := conn.WriteJSON(c); err != nil {
			t.Fatalf("control: %v", err)
		}
		for {
			typ, b := next(t, conn)
			if typ != observerproto.TypeStatus {
				continue
			}
			var st observerproto.StatusMsg
			if err := json.Unmarshal(b, &st); err != nil {
				t.Fatalf("status: %v", err)
			}
			return st
		}
	}

	if st := send(observerproto.ControlMsg{Op: observerproto.OpSpeed, SpeedExp: 9}); st.SpeedExp != replay.MaxSpeedExp || !st.Paused {
		t.Fatalf("speed clamp: %+v", st)
	}
	if st := send(observerproto.ControlMsg{Op: observerproto.OpSlower}); st.SpeedExp != replay.MaxSpeedExp-1 {
		t.Fatalf("slower: %+v", st)
	}
	if st := send(observerproto.ControlMsg{Op: observerproto.OpToggle}); st.Paused {
		t.Fatalf("toggle should resume: %+v", st)
	}

	// Running: snapshots arrive.
	for {
		if typ, _ := next(t, conn); typ == protocol.TypeSnapshot {
			break
		}
	}
	st = send(observerproto.ControlMsg{Op: observerproto.OpPause})
	if !st.Paused || st.Tick == 0 {
		t.Fatalf("pause: %+v", st)
	}
}

func TestObserver_UnknownMatch(t *testing.T) {
	conn := dial(t, recording(5))
	subscribe(t, conn, observerproto.SubscribeMsg{Match: "nope"})
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v", addr, got)
		}
	}
}
