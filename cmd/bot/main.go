package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"stomparena.io/internal/client"
	"stomparena.io/internal/predict"
	"stomparena.io/internal/protocol"
	"stomparena.io/internal/sim"
	"stomparena.io/internal/transport/ws"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "player name")
		codec = flag.String("codec", "json", "wire codec: json or msgpack")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "input randomness seed")
		fps   = flag.Int("fps", 60, "frame loop rate")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := ws.Dial(dialCtx, *url, protocol.HelloMsg{PlayerName: *name, Codec: *codec})
	dialCancel()
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	w := conn.Welcome()
	logger.Printf("WELCOME player=%d room=%s tick_rate=%d seed=%d codec=%s", w.Player, w.Room, w.TickRateHz, w.Config.Seed, w.Codec)

	opts := client.DefaultOptions()
	if w.LeadTicks > 0 {
		opts.Lead = predict.Lead{Ticks: w.LeadTicks, MaxPerFrame: predict.DefaultLead().MaxPerFrame}
	}
	sess := client.New(newWanderer(*seed), conn, opts, logger)

	first := make(chan protocol.SnapshotMsg, 1)
	runErr := make(chan error, 1)
	// final is only read after runErr delivers.
	var final protocol.SnapshotMsg
	go func() {
		started := false
		runErr <- conn.Run(ctx, func(m protocol.SnapshotMsg) {
			final = m
			if !started {
				started = true
				first <- m
				return
			}
			snap := client.SnapshotFromMsg(m)
			snap.Match = w.Room
			sess.Deliver(snap)
		})
	}()

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()
	report := time.NewTicker(time.Second)
	defer report.Stop()

	last := time.Now()
	var frames, resyncs int
	for {
		select {
		case err := <-runErr:
			summarize(logger, sess, final, frames, resyncs)
			if err != nil && ctx.Err() == nil {
				logger.Fatalf("connection: %v", err)
			}
			return
		case m := <-first:
			sess.StartMatch(w.Room, w.Config, sim.PlayerRef(w.Player), m.State)
			last = time.Now()
		case <-report.C:
			if mgr := sess.Manager(); mgr != nil {
				logger.Printf("predicted=%d authoritative=%d lead=%d resyncs=%d dropped=%d",
					mgr.PredictedTick(), mgr.LastAuthoritativeTick(), int64(mgr.PredictedTick())-int64(mgr.LastAuthoritativeTick()), mgr.Resyncs(), mgr.Dropped())
			}
		case now := <-ticker.C:
			f := sess.Update(now.Sub(last))
			last = now
			frames++
			if f.Resynced {
				resyncs++
			}
		}
	}
}

func summarize(logger *log.Logger, sess *client.Session, final protocol.SnapshotMsg, frames, resyncs int) {
	mgr := sess.Manager()
	if mgr == nil {
		logger.Printf("disconnected before the match started")
		return
	}
	logger.Printf("match over=%v winner=%d tick=%d frames=%d resyncs=%d dropped=%d",
		final.State.MatchOver, final.State.Winner, final.Tick, frames, resyncs, mgr.Dropped())
}

// wanderer is a scripted opponent: it holds a direction for a while, hops
// now and then, and fires along its heading.
type wanderer struct {
	r    *rand.Rand
	hold int
	dir  sim.Buttons
}

func newWanderer(seed int64) *wanderer {
	return &wanderer{r: rand.New(rand.NewSource(seed))}
}

func (w *wanderer) Poll() sim.Input {
	if w.hold <= 0 {
		w.hold = 20 + w.r.Intn(40)
		switch w.r.Intn(3) {
		case 0:
			w.dir = sim.ButtonLeft
		case 1:
			w.dir = sim.ButtonRight
		default:
			w.dir = 0
		}
	}
	w.hold--

	in := sim.Input{Buttons: w.dir}
	if w.r.Intn(25) == 0 {
		in.Buttons |= sim.ButtonJump
	}
	if w.r.Intn(15) == 0 {
		in.Buttons |= sim.ButtonFire
	}
	switch w.dir {
	case sim.ButtonLeft:
		in.AimX = -1
	case sim.ButtonRight:
		in.AimX = 1
	}
	return in
}
