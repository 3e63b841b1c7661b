package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"stomparena.io/internal/persistence/archive"
	"stomparena.io/internal/server/room"
	"stomparena.io/internal/sim"
)

type lobbyConfig struct {
	BaseSeed           int64
	Match              sim.MatchConfig
	SnapshotEveryTicks int
	InputBuffer        int
	LeadTicks          int
	MapDigest          string
	CheckpointDir      string
	ArchiveDir         string // archive finished matches under <dir>/archives when set
}

type matchUploader interface {
	EnqueueMatch(match string, paths ...string)
}

type tickSink interface {
	room.TickRecorder
	Path(match string) string
	Close() error
}

// lobby runs matches one after another. New connections always join the
// room that is currently waiting or running.
type lobby struct {
	cfg   lobbyConfig
	ticks tickSink
	audit room.AuditRecorder
	index room.MatchIndex
	log   *log.Logger

	uploads matchUploader

	mu  sync.Mutex
	cur *room.Room
	n   int64

	started  atomic.Uint64
	finished atomic.Uint64
}

func newLobby(cfg lobbyConfig, ticks tickSink, audit room.AuditRecorder, index room.MatchIndex, logger *log.Logger) *lobby {
	return &lobby{cfg: cfg, ticks: ticks, audit: audit, index: index, log: logger}
}

// Room returns the current room, creating it if needed.
func (l *lobby) Room() *room.Room {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil {
		l.cur = l.newRoomLocked()
	}
	return l.cur
}

func (l *lobby) newRoomLocked() *room.Room {
	l.n++
	mc := l.cfg.Match
	mc.Seed = l.cfg.BaseSeed + l.n
	id := fmt.Sprintf("match-%06d", l.n)

	sinks := room.Sinks{Audit: l.audit, Index: l.index, CheckpointDir: l.cfg.CheckpointDir}
	if l.ticks != nil {
		sinks.Ticks = l.ticks
		sinks.TickLogPath = l.ticks.Path(id)
	}
	return room.New(room.Config{
		ID:                 id,
		Match:              mc,
		SnapshotEveryTicks: l.cfg.SnapshotEveryTicks,
		InputBuffer:        l.cfg.InputBuffer,
		LeadTicks:          l.cfg.LeadTicks,
		MapDigest:          l.cfg.MapDigest,
	}, sinks, l.log)
}

// Run drives rooms until ctx is done.
func (l *lobby) Run(ctx context.Context) error {
	for {
		rm := l.Room()
		l.started.Add(1)
		err := rm.Run(ctx)

		// Closing flushes the match's tick log; the next match opens its own.
		if l.ticks != nil {
			if cerr := l.ticks.Close(); cerr != nil {
				l.log.Printf("tick log close: %v", cerr)
			}
		}
		if rm.Phase() == room.Over {
			l.finished.Add(1)
			l.log.Printf("match %s finished at tick %d winner=%d", rm.ID(), rm.State().Tick, rm.State().Winner)
			l.archive(rm)
		}

		l.mu.Lock()
		if l.cur == rm {
			l.cur = nil
		}
		l.mu.Unlock()

		if err != nil || ctx.Err() != nil {
			return err
		}
	}
}

func (l *lobby) archive(rm *room.Room) {
	if l.cfg.ArchiveDir == "" || rm.CheckpointPath() == "" {
		return
	}
	var tickPath string
	if l.ticks != nil {
		tickPath = l.ticks.Path(rm.ID())
	}
	files, err := archive.ArchiveMatch(l.cfg.ArchiveDir, rm.CheckpointPath(), tickPath)
	if err != nil {
		l.log.Printf("match %s archive: %v", rm.ID(), err)
		return
	}
	if l.uploads != nil {
		l.uploads.EnqueueMatch(rm.ID(), files...)
	}
}

type lobbyStats struct {
	Started  uint64 `json:"started"`
	Finished uint64 `json:"finished"`
	Current  string `json:"current,omitempty"`
}

func (l *lobby) Stats() lobbyStats {
	s := lobbyStats{Started: l.started.Load(), Finished: l.finished.Load()}
	l.mu.Lock()
	if l.cur != nil {
		s.Current = l.cur.ID()
	}
	l.mu.Unlock()
	return s
}
