package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	persistlog "botbeats.net/rbot/internal/persistence/log"
	"botbeats.net/rbot/internal/persistence/matchdb"
	"botbeats.net/rbot/internal/sim"
	"botbeats.net/rbot/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "", "arena config yaml (empty for defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 0, "override the configured seed (0 keeps it)")
		disableDB  = flag.Bool("disable_db", false, "disable the match index db")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[arena] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := sim.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	arena := sim.New(cfg, logger)

	tickLog := persistlog.NewTickLogger(*dataDir, cfg.ID)
	defer tickLog.Close()
	arena.SetTickLogger(tickLog)

	if !*disableDB {
		idx, err := matchdb.OpenSQLite(filepath.Join(*dataDir, "index", cfg.ID+".db"))
		if err != nil {
			logger.Fatalf("open match index: %v", err)
		}
		defer idx.Close()
		arena.SetIndex(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := arena.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("arena stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := arena.Metrics()

		fmt.Fprintf(rw, "# HELP botbeats_arena_tick Current arena tick.\n")
		fmt.Fprintf(rw, "# TYPE botbeats_arena_tick gauge\n")
		fmt.Fprintf(rw, "botbeats_arena_tick{arena=%q} %d\n", cfg.ID, m.Tick)

		fmt.Fprintf(rw, "# HELP botbeats_arena_robots Current number of robots in the arena.\n")
		fmt.Fprintf(rw, "# TYPE botbeats_arena_robots gauge\n")
		fmt.Fprintf(rw, "botbeats_arena_robots{arena=%q} %d\n", cfg.ID, m.Robots)

		fmt.Fprintf(rw, "# HELP botbeats_arena_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE botbeats_arena_queue_depth gauge\n")
		fmt.Fprintf(rw, "botbeats_arena_queue_depth{arena=%q,queue=%q} %d\n", cfg.ID, "inbox", m.InboxDepth)
		fmt.Fprintf(rw, "botbeats_arena_queue_depth{arena=%q,queue=%q} %d\n", cfg.ID, "join", m.JoinDepth)
		fmt.Fprintf(rw, "botbeats_arena_queue_depth{arena=%q,queue=%q} %d\n", cfg.ID, "leave", m.LeaveDepth)
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(arena, logger).Handler())

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

	logger.Printf("arena %s listening on %s (tick %d Hz, radius %.0f)", cfg.ID, *addr, cfg.TickRateHz, cfg.Radius)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
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
