package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stomparena.io/internal/persistence/indexdb"
	"stomparena.io/internal/persistence/r2s3"
	tlog "stomparena.io/internal/persistence/log"
	"stomparena.io/internal/replay"
	"stomparena.io/internal/server/room"
	"stomparena.io/internal/sim/catalogs"
	"stomparena.io/internal/sim/tuning"
	"stomparena.io/internal/transport/observer"
	"stomparena.io/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "base seed; match n uses seed+n")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		mapName    = flag.String("map", "", "arena name (default: tuning match.map)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite match index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	name := strings.TrimSpace(*mapName)
	if name == "" {
		name = tune.Match.Map
	}
	arena, err := cats.Map(name)
	if err != nil {
		logger.Fatalf("map: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	tickLog := tlog.NewTickLogger(*dataDir)
	auditLog := tlog.NewAuditLogger(*dataDir)
	defer tickLog.Close()
	defer auditLog.Close()

	var index room.MatchIndex
	if idx != nil {
		index = idx
	}
	lb := newLobby(lobbyConfig{
		BaseSeed:           *seed,
		Match:              tune.MatchConfig(0, arena),
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		InputBuffer:        tune.HistoryCapacity,
		LeadTicks:          tune.LeadTicks,
		MapDigest:          cats.Maps.Digest,
		CheckpointDir:      filepath.Join(*dataDir, "checkpoints"),
		ArchiveDir:         *dataDir,
	}, multiTickLogger{a: tickLog, b: idx}, multiAuditLogger{a: auditLog, b: idx}, index,
		log.New(os.Stdout, "[room] ", log.LstdFlags|log.Lmicroseconds))

	uploads, err := openArchiveUploader(logger)
	if err != nil {
		logger.Fatalf("archive uploader: %v", err)
	}
	if uploads != nil {
		defer uploads.Close()
		lb.uploads = uploads
	}

	ctx, cancel := signalContext()
	defer cancel()

	lobbyDone := make(chan struct{})
	go func() {
		defer close(lobbyDone)
		if err := lb.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("lobby stopped: %v", err)
		}
	}()

	mux := newMux(lb, idx, uploads, recordedMatch(tickLog), logger)
	mux.HandleFunc("/v1/ws", ws.NewServer(lb, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s map=%s tick_rate=%d", *addr, arena.Name, tune.TickRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Sinks close after the last room has been archived.
	<-lobbyDone
}

// recordedMatch resolves a match id to its tick log under the data dir.
func recordedMatch(tl *tlog.TickLogger) observer.Resolver {
	return func(match string) (replay.Transcript, error) {
		match = strings.TrimSpace(match)
		if match == "" || filepath.Base(match) != match || strings.HasPrefix(match, ".") {
			return replay.Transcript{}, fmt.Errorf("bad match id %q", match)
		}
		return replay.Load(tl.Path(match))
	}
}

func newMux(lb *lobby, idx *indexdb.SQLiteIndex, uploads *r2s3.Uploader, replays observer.Resolver, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s := lb.Stats()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP stomparena_matches_started_total Matches the lobby has opened.\n")
		fmt.Fprintf(rw, "# TYPE stomparena_matches_started_total counter\n")
		fmt.Fprintf(rw, "stomparena_matches_started_total %d\n", s.Started)

		fmt.Fprintf(rw, "# HELP stomparena_matches_finished_total Matches played to the end.\n")
		fmt.Fprintf(rw, "# TYPE stomparena_matches_finished_total counter\n")
		fmt.Fprintf(rw, "stomparena_matches_finished_total %d\n", s.Finished)

		if uploads != nil {
			us := uploads.Stats()
			fmt.Fprintf(rw, "# HELP stomparena_archive_uploads_total Archived match files mirrored to object storage.\n")
			fmt.Fprintf(rw, "# TYPE stomparena_archive_uploads_total counter\n")
			fmt.Fprintf(rw, "stomparena_archive_uploads_total{result=%q} %d\n", "ok", us.UploadedTotal)
			fmt.Fprintf(rw, "stomparena_archive_uploads_total{result=%q} %d\n", "failed", us.FailedTotal)
			fmt.Fprintf(rw, "stomparena_archive_uploads_total{result=%q} %d\n", "dropped", us.DroppedTotal)
		}

		if idx == nil {
			return
		}
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP stomparena_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE stomparena_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "stomparena_index_queue_depth %d\n", st.QueueDepth)

		fmt.Fprintf(rw, "# HELP stomparena_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE stomparena_index_dropped_total counter\n")
		fmt.Fprintf(rw, "stomparena_index_dropped_total{kind=%q} %d\n", "tick", st.DropTickTotal)
		fmt.Fprintf(rw, "stomparena_index_dropped_total{kind=%q} %d\n", "audit", st.DropAuditTotal)
		fmt.Fprintf(rw, "stomparena_index_dropped_total{kind=%q} %d\n", "match", st.DropMatchTotal)
	})

	if envBool("STOMP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/lobby", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(lb.Stats())
		})
		mux.HandleFunc("/admin/v1/matches", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if idx == nil {
				http.Error(rw, "index disabled", http.StatusServiceUnavailable)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := idx.ListMatches(r.Context(), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rows)
		})
		if replays != nil {
			mux.HandleFunc("/admin/v1/replay/ws", observer.NewServer(replays, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds)).WSHandler())
		}
	} else {
		logger.Printf("admin endpoints disabled (STOMP_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("STOMP_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
