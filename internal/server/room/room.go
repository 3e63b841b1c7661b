// Package room runs one authoritative match: it owns the simulation state,
// steps it at the tick rate from the players' buffered inputs, and fans
// snapshots back out.
package room

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"stomparena.io/internal/input"
	"stomparena.io/internal/persistence/indexdb"
	tlog "stomparena.io/internal/persistence/log"
	"stomparena.io/internal/persistence/snapshot"
	"stomparena.io/internal/predict"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/sim"
)

type Config struct {
	ID                 string
	Match              sim.MatchConfig
	SnapshotEveryTicks int
	InputBuffer        int
	LeadTicks          int
	MapDigest          string
}

type TickRecorder interface {
	WriteTick(tlog.TickEntry) error
}

type AuditRecorder interface {
	WriteAudit(tlog.AuditEntry) error
}

type MatchIndex interface {
	RecordMatch(indexdb.MatchRow)
}

// Sinks are optional; nil members are skipped.
type Sinks struct {
	Ticks         TickRecorder
	Audit         AuditRecorder
	Index         MatchIndex
	TickLogPath   string
	CheckpointDir string
}

type Phase int

const (
	Waiting Phase = iota
	Running
	Over
)

type JoinRequest struct {
	Name  string
	Codec protocol.Codec
	Out   chan []byte
	Resp  chan JoinResponse
}

type JoinResponse struct {
	Player  int
	Welcome protocol.WelcomeMsg
	Code    string
}

type InputEnvelope struct {
	Player int
	Msg    protocol.InputMsg
}

type player struct {
	name      string
	codec     protocol.Codec
	out       chan []byte
	connected bool
}

type Room struct {
	cfg   Config
	sinks Sinks
	log   *log.Logger

	join  chan JoinRequest
	leave chan int
	inbox chan InputEnvelope
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	phase   Phase
	players [sim.MaxPlayers]*player

	state    sim.State
	prev     sim.InputFrame
	inputs   [sim.MaxPlayers]*predict.History
	consumed [sim.MaxPlayers]uint64
	stale    int

	checkpointPath string
}

func New(cfg Config, sinks Sinks, logger *log.Logger) *Room {
	cfg.Match = cfg.Match.WithDefaults()
	if cfg.SnapshotEveryTicks <= 0 {
		cfg.SnapshotEveryTicks = 3
	}
	if cfg.InputBuffer <= 0 {
		cfg.InputBuffer = predict.DefaultHistoryCapacity
	}
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("match-%d", cfg.Match.Seed)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	r := &Room{
		cfg:   cfg,
		sinks: sinks,
		log:   logger,
		join:  make(chan JoinRequest, 8),
		leave: make(chan int, 8),
		inbox: make(chan InputEnvelope, 1024),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		state: sim.Initialize(cfg.Match),
	}
	for i := range r.inputs {
		r.inputs[i] = predict.NewHistory(cfg.InputBuffer)
	}
	return r
}

func (r *Room) ID() string                  { return r.cfg.ID }
func (r *Room) Config() Config              { return r.cfg }
func (r *Room) Join() chan<- JoinRequest    { return r.join }
func (r *Room) Leave() chan<- int           { return r.leave }
func (r *Room) Inbox() chan<- InputEnvelope { return r.inbox }
func (r *Room) Stop()                       { r.once.Do(func() { close(r.stop) }) }

// Done is closed when Run returns.
func (r *Room) Done() <-chan struct{} { return r.done }

// Run owns the room until ctx is cancelled, Stop is called, or the match
// ends. Every state change happens on this goroutine.
func (r *Room) Run(ctx context.Context) error {
	defer close(r.done)
	interval := time.Second / time.Duration(r.cfg.Match.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.join:
			req.Resp <- r.Admit(req)
		case p := <-r.leave:
			r.handleLeave(p)
		case env := <-r.inbox:
			r.Submit(env)
		case <-ticker.C:
			if r.phase != Running {
				continue
			}
			r.StepOnce()
			if r.phase == Over {
				return nil
			}
		}
	}
}

// Admit seats a player. Run calls it for requests arriving on Join; callers
// that drive the room without Run may call it directly.
func (r *Room) Admit(req JoinRequest) JoinResponse {
	if r.phase == Over {
		return JoinResponse{Player: -1, Code: protocol.ErrMatchOver}
	}
	slot := -1
	for i := 0; i < r.cfg.Match.PlayerCount; i++ {
		if r.players[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return JoinResponse{Player: -1, Code: protocol.ErrRoomFull}
	}
	r.players[slot] = &player{name: req.Name, codec: req.Codec, out: req.Out, connected: true}
	r.audit("join", slot, req.Name)
	r.log.Printf("room=%s join player=%d name=%q codec=%s", r.cfg.ID, slot, req.Name, req.Codec)

	resp := JoinResponse{Player: slot, Welcome: protocol.WelcomeMsg{
		Type:               protocol.TypeWelcome,
		ProtocolVersion:    protocol.Version,
		Player:             slot,
		Codec:              string(req.Codec),
		Room:               r.cfg.ID,
		TickRateHz:         r.cfg.Match.TickRate,
		SnapshotEveryTicks: r.cfg.SnapshotEveryTicks,
		LeadTicks:          r.cfg.LeadTicks,
		MapDigest:          r.cfg.MapDigest,
		Config:             r.cfg.Match,
	}}
	if r.phase == Waiting && r.full() {
		r.begin()
	}
	return resp
}

func (r *Room) full() bool {
	for i := 0; i < r.cfg.Match.PlayerCount; i++ {
		if r.players[i] == nil {
			return false
		}
	}
	return true
}

// begin starts the clock. The tick 0 snapshot tells clients the round is on.
func (r *Room) begin() {
	r.phase = Running
	cfg := r.cfg.Match
	r.record(tlog.TickEntry{Match: r.cfg.ID, Tick: 0, Config: &cfg, Digest: sim.Digest(r.state)})
	r.audit("start", -1, "")
	r.log.Printf("room=%s start seed=%d map=%s", r.cfg.ID, cfg.Seed, cfg.Map.Name)
	r.broadcast()
}

func (r *Room) handleLeave(p int) {
	if p < 0 || p >= sim.MaxPlayers || r.players[p] == nil {
		return
	}
	// The slot stays taken; the player's last input keeps repeating.
	r.players[p].connected = false
	r.players[p].out = nil
	r.audit("leave", p, r.players[p].name)
	r.log.Printf("room=%s leave player=%d", r.cfg.ID, p)
}

// Submit buffers a player's input for its tick. Inputs for ticks the room
// already stepped are dropped.
func (r *Room) Submit(env InputEnvelope) {
	p := env.Player
	if p < 0 || p >= r.cfg.Match.PlayerCount || r.phase == Over {
		return
	}
	if env.Msg.Tick <= r.consumed[p] {
		r.stale++
		return
	}
	r.inputs[p].Push(env.Msg.Tick, input.Sanitize(env.Msg.Input()))
}

// StepOnce advances the match by one tick. A player with no input buffered
// for the tick repeats their previous one.
func (r *Room) StepOnce() {
	t := r.state.Tick + 1
	var in sim.InputFrame
	for p := 0; p < r.cfg.Match.PlayerCount; p++ {
		if v, ok := r.inputs[p].Lookup(t); ok {
			in[p] = v
		} else {
			in[p] = r.prev[p]
		}
		r.consumed[p] = t
	}
	r.state = sim.Step(r.state, in, r.prev, r.cfg.Match)
	r.prev = in

	rec := [sim.MaxPlayers]sim.Input(in)
	r.record(tlog.TickEntry{Match: r.cfg.ID, Tick: r.state.Tick, Inputs: &rec, Digest: sim.Digest(r.state)})

	if r.state.MatchOver || r.state.Tick%uint64(r.cfg.SnapshotEveryTicks) == 0 {
		r.broadcast()
	}
	if r.state.MatchOver {
		r.finish()
	}
}

func (r *Room) lastButtons() [sim.MaxPlayers]sim.Buttons {
	var b [sim.MaxPlayers]sim.Buttons
	for i := range r.prev {
		b[i] = r.prev[i].Buttons
	}
	return b
}

func (r *Room) broadcast() {
	msg := protocol.SnapshotMsg{
		Type:        protocol.TypeSnapshot,
		Tick:        r.state.Tick,
		State:       r.state,
		LastButtons: r.lastButtons(),
	}
	encoded := map[protocol.Codec][]byte{}
	for i, p := range r.players {
		if p == nil || !p.connected || p.out == nil {
			continue
		}
		b, ok := encoded[p.codec]
		if !ok {
			var err error
			b, err = p.codec.Marshal(msg)
			if err != nil {
				r.log.Printf("room=%s encode snapshot player=%d: %v", r.cfg.ID, i, err)
				continue
			}
			encoded[p.codec] = b
		}
		// A slow client misses snapshots rather than stalling the room.
		select {
		case p.out <- b:
		default:
		}
	}
}

func (r *Room) finish() {
	r.phase = Over
	r.audit("match_over", int(r.state.Winner), fmt.Sprintf("tick=%d", r.state.Tick))
	r.log.Printf("room=%s over tick=%d winner=%d stale_inputs=%d", r.cfg.ID, r.state.Tick, r.state.Winner, r.stale)

	if dir := r.sinks.CheckpointDir; dir != "" {
		path := filepath.Join(dir, fmt.Sprintf("%s-%d.snap.zst", r.cfg.ID, r.state.Tick))
		if err := snapshot.WriteSnapshot(path, snapshot.New(r.cfg.ID, r.cfg.Match, r.state, r.lastButtons())); err != nil {
			r.log.Printf("room=%s checkpoint: %v", r.cfg.ID, err)
		} else {
			r.checkpointPath = path
		}
	}
	if r.sinks.Index != nil {
		r.sinks.Index.RecordMatch(indexdb.MatchRow{
			MatchID:        r.cfg.ID,
			Seed:           r.cfg.Match.Seed,
			Map:            r.cfg.Match.Map.Name,
			EndTick:        r.state.Tick,
			Winner:         int(r.state.Winner),
			FinalDigest:    sim.Digest(r.state),
			TickLogPath:    r.sinks.TickLogPath,
			CheckpointPath: r.checkpointPath,
		})
	}
}

func (r *Room) record(e tlog.TickEntry) {
	if r.sinks.Ticks == nil {
		return
	}
	if err := r.sinks.Ticks.WriteTick(e); err != nil {
		r.log.Printf("room=%s tick log: %v", r.cfg.ID, err)
	}
}

func (r *Room) audit(kind string, p int, detail string) {
	if r.sinks.Audit == nil {
		return
	}
	_ = r.sinks.Audit.WriteAudit(tlog.AuditEntry{Match: r.cfg.ID, Tick: r.state.Tick, Kind: kind, Player: p, Detail: detail})
}

// Phase, State and CheckpointPath are for tests and for the server after
// Run returns; they are not synchronized with Run.
func (r *Room) Phase() Phase           { return r.phase }
func (r *Room) State() sim.State       { return r.state }
func (r *Room) CheckpointPath() string { return r.checkpointPath }
func (r *Room) StaleInputs() int       { return r.stale }
