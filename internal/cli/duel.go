package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentduel/agentduel/api"
	"github.com/agentduel/agentduel/internal/config"
	"github.com/agentduel/agentduel/observe"
	otelsink "github.com/agentduel/agentduel/observe/otel"
	auditstore "github.com/agentduel/agentduel/observe/store"
	auditsqlite "github.com/agentduel/agentduel/observe/store/sqlite"
	"github.com/agentduel/agentduel/run"
	"github.com/agentduel/agentduel/runtimeconfig"
	"github.com/agentduel/agentduel/session"
	"github.com/agentduel/agentduel/state"
	statefactory "github.com/agentduel/agentduel/state/factory"
	"github.com/agentduel/agentduel/stream"
	"github.com/agentduel/agentduel/transport"
)

func runDuel(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)
	if opts.configPath == "" {
		fmt.Println("duel requires --config=FILE")
		return
	}

	cfg, err := runtimeconfig.Load(opts.configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if opts.addr != "" {
		cfg.ListenAddr = opts.addr
	}

	sessions, err := session.NewClient(
		cfg.SessionEndpoint,
		session.WithAPIKey(config.Getenv("DUEL_SESSION_API_KEY", "")),
	)
	if err != nil {
		log.Fatalf("session client: %v", err)
	}

	subscriber, err := transport.NewSSEClient(cfg.StreamEndpoint)
	if err != nil {
		log.Fatalf("stream client: %v", err)
	}

	auditStore, err := auditsqlite.New(cfg.AuditDBPath)
	if err != nil {
		log.Printf("audit store unavailable: %v", err)
	}
	var async *observe.AsyncSink
	if auditStore != nil {
		async = observe.NewAsyncSink(observe.SinkFunc(auditStore.SaveEvent), 512)
		defer func() {
			async.Close()
			_ = auditStore.Close()
		}()

		sweeper, err := auditsqlite.NewSweeper(auditStore, "@hourly", cfg.AuditRetention())
		if err != nil {
			log.Printf("audit retention disabled: %v", err)
		} else {
			sweeper.Start()
			defer sweeper.Stop()
		}
	}
	var tracing trace.TracerProvider
	if config.GetenvBool("DUEL_OTEL_ENABLED", false) {
		tracing = otel.GetTracerProvider()
		log.Println("[otel] span sink enabled")
	}
	sink := buildSink(async, tracing)

	snapshots, err := statefactory.FromEnv()
	if err != nil {
		log.Printf("state store unavailable: %v", err)
	} else {
		defer snapshots.Close()
	}

	var audit auditstore.Store
	if auditStore != nil {
		audit = auditStore
	}

	duelID := uuid.NewString()
	source := &duelSource{}
	server, err := api.NewServer(api.Config{Source: source, Audit: audit})
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	// The publisher closes over the source so the duel can be built after
	// the server; runners publish nothing until Start.
	base := run.Config{
		Sessions:   sessions,
		Cache:      session.NewCache(),
		Subscriber: subscriber,
		Dialer:     transport.NewWSClient(),
		LiveView:   sessions,
		Sink:       sink,
		Timeout:    cfg.Timeout(),
		OnSnapshot: func(runID string, snap stream.Snapshot) {
			server.Publish(runID, snap)
			if snapshots != nil {
				persistSnapshot(snapshots, source.duel, duelID, cfg.Goal, runID, snap)
			}
		},
	}

	duel, err := run.NewDuel(cfg.Goal, cfg.LeftProvider, cfg.RightProvider, base)
	if err != nil {
		log.Fatalf("duel: %v", err)
	}
	source.duel = duel

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}
	go func() {
		log.Printf("[api] listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[api] server stopped: %v", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	log.Printf("[duel] %s: %s vs %s", cfg.Goal, cfg.LeftProvider, cfg.RightProvider)
	duel.Start(runCtx)

	settled := make(chan struct{})
	go func() {
		_ = duel.Wait(runCtx)
		close(settled)
	}()

	select {
	case <-sig:
		log.Println("[duel] interrupted, stopping both runs")
		duel.Stop()
		<-settled
	case <-settled:
	}

	left, right := duel.Snapshots()
	printOutcome("left", cfg.LeftProvider, left)
	printOutcome("right", cfg.RightProvider, right)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// buildSink assembles the audit fan-out: the async store sink when the audit
// database opened, plus an OTel span sink when a tracer provider is given.
func buildSink(async *observe.AsyncSink, tp trace.TracerProvider) observe.Sink {
	var sinks []observe.Sink
	if async != nil {
		sinks = append(sinks, async)
	}
	if tp != nil {
		sinks = append(sinks, otelsink.NewSink(tp))
	}
	return observe.NewMultiSink(sinks...)
}

func persistSnapshot(store state.Store, duel *run.Duel, duelID, goal, runID string, snap stream.Snapshot) {
	side := string(run.SideLeft)
	provider := duel.Runner(run.SideLeft).Provider()
	if duel.Runner(run.SideRight).ID() == runID {
		side = string(run.SideRight)
		provider = duel.Runner(run.SideRight).Provider()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.SaveSnapshot(ctx, state.SnapshotRecord{
		RunID:    runID,
		DuelID:   duelID,
		Side:     side,
		Provider: provider,
		Goal:     goal,
		Snapshot: snap,
	}); err != nil {
		log.Printf("snapshot save failed: %v", err)
	}
}

func printOutcome(side, provider string, snap stream.Snapshot) {
	switch {
	case snap.Error != "":
		log.Printf("[%s/%s] failed after %d steps: %s", side, provider, len(snap.Steps), snap.Error)
	case snap.IsFinished:
		final := ""
		if n := len(snap.Steps); n > 0 {
			final = snap.Steps[n-1].Text
		}
		log.Printf("[%s/%s] finished in %d steps: %s", side, provider, len(snap.Steps), final)
	default:
		log.Printf("[%s/%s] stopped mid-run at %d steps", side, provider, len(snap.Steps))
	}
}

// duelSource adapts a Duel to the API's RunSource.
type duelSource struct {
	duel *run.Duel
}

func (s *duelSource) Goal() string { return s.duel.Goal() }

func (s *duelSource) Runs() []api.RunInfo {
	left := s.duel.Runner(run.SideLeft)
	right := s.duel.Runner(run.SideRight)
	return []api.RunInfo{
		{RunID: left.ID(), Side: string(run.SideLeft), Provider: left.Provider()},
		{RunID: right.ID(), Side: string(run.SideRight), Provider: right.Provider()},
	}
}

func (s *duelSource) RunSnapshot(runID string) (stream.Snapshot, bool) {
	for _, side := range []run.Side{run.SideLeft, run.SideRight} {
		if r := s.duel.Runner(side); r.ID() == runID {
			return r.Snapshot(), true
		}
	}
	return stream.Snapshot{}, false
}

func (s *duelSource) Uptime() time.Duration { return s.duel.Uptime() }
