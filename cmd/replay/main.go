package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stomparena.io/internal/persistence/indexdb"
	tlog "stomparena.io/internal/persistence/log"
	"stomparena.io/internal/persistence/snapshot"
	"stomparena.io/internal/replay"
	"stomparena.io/internal/sim"
)

func main() {
	var (
		path       = flag.String("transcript", "", "transcript .json or recorded events-<match>.jsonl.zst")
		dataDir    = flag.String("data", "", "server data dir; with -match, locates the recording and index")
		matchID    = flag.String("match", "", "match id to replay from -data")
		checkpoint = flag.String("checkpoint", "", "final .snap.zst to compare against (optional)")
		realtime   = flag.Bool("realtime", false, "play back on the wall clock instead of as fast as possible")
		speed      = flag.Int("speed", 0, "playback speed exponent for -realtime (2^speed, -3..3)")
		trace      = flag.Bool("trace", false, "print the digest of every tick")
	)
	flag.Parse()

	p := *path
	if p == "" && *dataDir != "" && *matchID != "" {
		p = tlog.NewTickLogger(*dataDir).Path(*matchID)
	}
	if p == "" {
		fmt.Fprintln(os.Stderr, "missing -transcript (or -data with -match)")
		os.Exit(2)
	}

	tr, err := replay.Load(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load transcript:", err)
		os.Exit(1)
	}
	fmt.Printf("transcript %s match=%q seed=%d ticks=%d recorded_digests=%d\n",
		filepath.Base(p), tr.Match, tr.Config.Seed, tr.Len(), len(tr.Digests))

	eng := replay.New(tr.Config, tr)
	var digests []string
	if *realtime {
		digests = playRealtime(eng, *speed)
	} else {
		digests = eng.Run()
	}
	if *trace {
		for i, d := range digests {
			fmt.Printf("%d %s\n", i, d)
		}
	}

	final := eng.State()
	fmt.Printf("replayed to tick=%d over=%v winner=%d digest=%s\n", final.Tick, final.MatchOver, final.Winner, sim.Digest(final))

	if len(tr.Digests) > 0 {
		checked, mm := tr.Verify(digests)
		if mm != nil {
			fmt.Fprintf(os.Stderr, "digest mismatch at tick %d: recorded=%s replayed=%s\n", mm.Tick, mm.Recorded, mm.Replayed)
			os.Exit(1)
		}
		fmt.Printf("replay ok: checked=%d ticks\n", checked)
	}

	if *dataDir != "" && tr.Match != "" {
		if err := checkIndex(*dataDir, tr.Match, final); err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
	}

	if *checkpoint != "" {
		cp, err := snapshot.ReadSnapshot(*checkpoint)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read checkpoint:", err)
			os.Exit(1)
		}
		if cp.Header.Tick != final.Tick || cp.Header.Digest != sim.Digest(final) {
			fmt.Fprintf(os.Stderr, "checkpoint mismatch: checkpoint tick=%d digest=%s replay tick=%d digest=%s\n",
				cp.Header.Tick, cp.Header.Digest, final.Tick, sim.Digest(final))
			os.Exit(1)
		}
		fmt.Printf("checkpoint ok: %s\n", filepath.Base(*checkpoint))
	}
}

// playRealtime drives the engine from a frame clock the way a spectator
// view would.
func playRealtime(eng *replay.Engine, speed int) []string {
	eng.SetSpeed(speed)
	digests := []string{sim.Digest(eng.State())}
	eng.Observe(func(s sim.State) { digests = append(digests, sim.Digest(s)) })

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	last := time.Now()
	for !eng.Done() {
		now := <-ticker.C
		eng.Update(now.Sub(last))
		last = now
	}
	return digests
}

func checkIndex(dataDir, match string, final sim.State) error {
	dbPath := filepath.Join(dataDir, "index", "matches.sqlite")
	if _, err := os.Stat(dbPath); err != nil {
		return nil
	}
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := idx.TickDigest(ctx, match, final.Tick)
	if err != nil {
		return fmt.Errorf("tick %d: %w", final.Tick, err)
	}
	if d != sim.Digest(final) {
		return fmt.Errorf("indexed digest for tick %d differs: %s", final.Tick, d)
	}
	fmt.Printf("index ok: match=%s tick=%d\n", match, final.Tick)
	return nil
}
