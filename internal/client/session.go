// Package client is the host-side frame loop context. A Session owns one
// round's prediction state and is driven by a single goroutine calling Update.
package client

import (
	"io"
	"log"
	"time"

	"stomparena.io/internal/input"
	"stomparena.io/internal/predict"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/sim"
	"stomparena.io/internal/tick"
)

type Phase int

const (
	NotReady Phase = iota
	Ready
)

func (p Phase) String() string {
	if p == Ready {
		return "ready"
	}
	return "not_ready"
}

// Snapshot is an authoritative state as delivered by the transport. Match,
// when set, names the round it belongs to; a session started with
// StartMatch drops snapshots tagged for another round.
type Snapshot struct {
	Match       string
	Tick        uint64
	State       sim.State
	LastButtons [sim.MaxPlayers]sim.Buttons
}

func SnapshotFromMsg(m protocol.SnapshotMsg) Snapshot {
	return Snapshot{Tick: m.Tick, State: m.State, LastButtons: m.LastButtons}
}

// Sender forwards each predicted tick's local input to the server.
type Sender interface {
	SendInput(protocol.InputMsg) error
}

type SenderFunc func(protocol.InputMsg) error

func (f SenderFunc) SendInput(m protocol.InputMsg) error { return f(m) }

type Options struct {
	HistoryCapacity  int
	MaxStepsPerFrame int
	Lead             predict.Lead
	InboxSize        int
}

func DefaultOptions() Options {
	return Options{
		HistoryCapacity:  predict.DefaultHistoryCapacity,
		MaxStepsPerFrame: tick.DefaultMaxSteps,
		Lead:             predict.DefaultLead(),
		InboxSize:        4,
	}
}

// Frame is what one Update produced.
type Frame struct {
	Steps           int
	LeadTicks       int
	SnapshotArrived bool
	Resynced        bool
	View            predict.View
}

type Session struct {
	opts Options
	log  *log.Logger
	src  input.Source
	send Sender

	phase   Phase
	pending []func(*Session)
	inbox   chan Snapshot

	match string
	mgr   *predict.Manager
	acc   *tick.Accumulator
	last  sim.Input

	// Set while Start drains queued snapshots; reported on the next frame.
	carryArrived bool
	carryResync  bool
}

// New returns a NotReady session. Calls that need a running round are
// queued until Start.
func New(src input.Source, send Sender, opts Options, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 4
	}
	if src == nil {
		src = input.SourceFunc(func() sim.Input { return sim.Input{} })
	}
	return &Session{
		opts:  opts,
		log:   logger,
		src:   src,
		send:  send,
		inbox: make(chan Snapshot, opts.InboxSize),
	}
}

func (s *Session) Phase() Phase { return s.phase }

// Manager is nil until Start.
func (s *Session) Manager() *predict.Manager { return s.mgr }

// Deliver hands a snapshot over from the transport goroutine. It never
// blocks: when the inbox is full the oldest queued snapshot is discarded.
func (s *Session) Deliver(snap Snapshot) {
	for {
		select {
		case s.inbox <- snap:
			return
		default:
		}
		select {
		case <-s.inbox:
		default:
		}
	}
}

// Do runs op now if the session is Ready, otherwise queues it for Start.
func (s *Session) Do(op func(*Session)) {
	if s.phase == Ready {
		op(s)
		return
	}
	s.pending = append(s.pending, op)
}

// SetSource replaces the local input source.
func (s *Session) SetSource(src input.Source) {
	s.Do(func(s *Session) { s.src = src })
}

// Start begins the round from initial and drains everything queued while the
// session was NotReady, in arrival order.
func (s *Session) Start(cfg sim.MatchConfig, local sim.PlayerRef, initial sim.State) {
	s.StartMatch("", cfg, local, initial)
}

// StartMatch is Start for a named round. Snapshots tagged with a different
// Match are discarded.
func (s *Session) StartMatch(match string, cfg sim.MatchConfig, local sim.PlayerRef, initial sim.State) {
	cfg = cfg.WithDefaults()
	s.match = match
	s.mgr = predict.NewManager(cfg, local, initial, s.opts.HistoryCapacity, s.log)
	s.acc = tick.New(cfg.TickRate, s.opts.MaxStepsPerFrame)
	s.last = sim.Input{}
	s.phase = Ready

	s.carryArrived, s.carryResync = false, false

	queued := s.pending
	s.pending = nil
	for _, op := range queued {
		op(s)
	}
	s.carryResync = s.mgr.Resyncs() > 0
	s.log.Printf("round started match=%q player=%d tick=%d queued=%d", match, local, initial.Tick, len(queued))
}

// Stop ends the round. The session goes back to NotReady and drops the
// prediction context along with every snapshot still in the inbox.
func (s *Session) Stop() {
	s.phase = NotReady
	s.mgr = nil
	s.acc = nil
	s.pending = nil
	s.match = ""
	s.carryArrived, s.carryResync = false, false
	s.drainInbox(func(Snapshot) {})
}

// Update advances the frame loop by delta of wall-clock time.
func (s *Session) Update(delta time.Duration) Frame {
	if s.phase != Ready {
		s.drainInbox(func(snap Snapshot) {
			s.pending = append(s.pending, func(s *Session) {
				if s.apply(snap) {
					s.carryArrived = true
				}
			})
		})
		return Frame{}
	}

	f := Frame{SnapshotArrived: s.carryArrived, Resynced: s.carryResync}
	s.carryArrived, s.carryResync = false, false
	resyncs := s.mgr.Resyncs()
	s.drainInbox(func(snap Snapshot) {
		if s.apply(snap) {
			f.SnapshotArrived = true
		}
	})
	if s.mgr.Resyncs() != resyncs {
		f.Resynced = true
		s.log.Printf("resync to authoritative tick=%d", s.mgr.LastAuthoritativeTick())
	}

	f.Steps = s.acc.Advance(delta, func() {
		in := input.Sanitize(s.src.Poll())
		s.last = in
		s.mgr.PredictTick(in)
		s.forward(s.mgr.PredictedTick(), in)
	})

	from := s.mgr.PredictedTick()
	f.LeadTicks = s.opts.Lead.Catch(s.mgr, s.last)
	for t := from + 1; t <= s.mgr.PredictedTick(); t++ {
		in, _ := s.mgr.History().Lookup(t)
		s.forward(t, in)
	}

	f.View = s.mgr.View()
	return f
}

func (s *Session) drainInbox(fn func(Snapshot)) {
	for {
		select {
		case snap := <-s.inbox:
			fn(snap)
		default:
			return
		}
	}
}

func (s *Session) apply(snap Snapshot) bool {
	if snap.Match != "" && s.match != "" && snap.Match != s.match {
		s.log.Printf("drop snapshot tick=%d for match=%q (current %q)", snap.Tick, snap.Match, s.match)
		return false
	}
	return s.mgr.ApplyServerState(snap.State, snap.Tick, snap.LastButtons)
}

func (s *Session) forward(t uint64, in sim.Input) {
	if s.send == nil {
		return
	}
	if err := s.send.SendInput(protocol.NewInputMsg(t, in)); err != nil {
		s.log.Printf("send input tick=%d: %v", t, err)
	}
}
