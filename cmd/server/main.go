// Package main provides the reward engine service: a scheduled reward
// cycle over campaigns fetched from the publisher, with snapshots in
// PostgreSQL, cycle audits in ClickHouse, and an early-cycle trigger
// driven by publisher WebSocket notifications.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"reward-engine/internal/aggregation"
	"reward-engine/internal/config"
	"reward-engine/internal/distribution"
	"reward-engine/internal/domain"
	"reward-engine/internal/emission"
	evalstub "reward-engine/internal/evaluator/stub"
	"reward-engine/internal/identity"
	"reward-engine/internal/observability"
	"reward-engine/internal/orchestrator"
	"reward-engine/internal/publisher"
	pubstub "reward-engine/internal/publisher/stub"
	"reward-engine/internal/registry"
	"reward-engine/internal/storage"
	chstore "reward-engine/internal/storage/clickhouse"
	"reward-engine/internal/storage/memory"
	"reward-engine/internal/storage/migrations"
	pgstore "reward-engine/internal/storage/postgres"
)

// Server holds the running service state.
type Server struct {
	cfg     config.Config
	orch    *orchestrator.Orchestrator
	metrics *observability.Metrics
	logger  *log.Logger

	// triggers carries early-cycle requests from the WS subscriber.
	triggers chan string

	mu           sync.Mutex
	lastCycleRun time.Time
	cycleRunning bool
	cycleRuns    int
	startedAt    time.Time
}

func main() {
	dev := flag.Bool("dev", false, "Use in-memory stores and stub collaborators")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if !*dev {
		if cfg.CampaignsEndpoint == "" {
			logger.Fatal("CAMPAIGNS_ENDPOINT is required (use -dev for stub collaborators)")
		}
		if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
			logger.Fatal("POSTGRES_DSN and CLICKHOUSE_DSN are required (use -dev for in-memory storage)")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("")

	snapshots, audits, cleanup, err := createStores(ctx, cfg, *dev, metrics)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	source := createCampaignSource(cfg, *dev)
	reg := createRegistry(*dev)

	rates, err := emission.NewFixedRateSource(cfg.TotalDailyEmissionUSD)
	if err != nil {
		logger.Fatalf("Rate source error: %v", err)
	}

	dist, err := distribution.NewService(distribution.TreasuryConfig{
		Pct:           cfg.TreasuryPct,
		ParticipantID: cfg.TreasuryParticipantID,
	})
	if err != nil {
		logger.Fatalf("Distribution error: %v", err)
	}

	var identityFilter func(string) bool
	if !*dev {
		identityFilter = identity.ValidParticipantID
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Campaigns:        source,
		Registry:         reg,
		Snapshots:        snapshots,
		Audits:           audits,
		Aggregation:      aggregation.NewService(cfg.EmissionsPeriodDays),
		Emission:         emission.NewService(rates),
		Distribution:     dist,
		Window:           cfg.Window(),
		EvaluatorTimeout: cfg.EvaluatorTimeout,
		IdentityFilter:   identityFilter,
		Metrics:          metrics,
		Verbose:          true,
	})
	if err != nil {
		logger.Fatalf("Orchestrator error: %v", err)
	}

	server := &Server{
		cfg:       cfg,
		orch:      orch,
		metrics:   metrics,
		logger:    logger,
		triggers:  make(chan string, 16),
		startedAt: time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	// Early-cycle trigger from publisher notifications.
	if !*dev && cfg.CampaignsWSEndpoint != "" {
		sub, err := publisher.NewWSSubscriber(ctx, cfg.CampaignsWSEndpoint, nil)
		if err != nil {
			logger.Printf("Campaign update subscription unavailable: %v", err)
		} else {
			defer sub.Close()
			go server.forwardUpdates(ctx, sub)
		}
	}

	go server.startHTTPServer(cfg.MetricsAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores wires PostgreSQL snapshots and ClickHouse audits, or
// memory stores in dev mode. Migrations run at startup.
func createStores(ctx context.Context, cfg config.Config, dev bool, metrics *observability.Metrics) (storage.SnapshotStore, storage.AuditStore, func(), error) {
	if dev {
		return memory.NewSnapshotStore(), memory.NewAuditStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	snapshots := pgstore.NewSnapshotStore(pool,
		pgstore.WithCorruptionHook(metrics.CorruptSnapshots.Inc))
	return snapshots, chstore.NewAuditStore(chConn), cleanup, nil
}

// createCampaignSource returns the HTTP publisher client, or a canned
// stub in dev mode.
func createCampaignSource(cfg config.Config, dev bool) publisher.CampaignSource {
	if !dev {
		return publisher.NewHTTPClient(cfg.CampaignsEndpoint)
	}

	endDate := time.Now().UTC().AddDate(0, 0, -cfg.DelayDays)
	return pubstub.NewCampaignSource(
		&domain.Campaign{ID: "dev-brief-1", Pool: "main", Platform: "youtube", BudgetUSD: 7000, EndDate: endDate},
	)
}

// createRegistry registers platform evaluators. Real evaluator
// capabilities plug in here; dev mode runs on stubs.
func createRegistry(dev bool) *registry.Registry {
	reg := registry.New()
	if dev {
		reg.Register(evalstub.New("youtube").WithResult("dev-brief-1", &domain.EvaluationResult{
			CampaignID: "dev-brief-1",
			Participants: []domain.ParticipantResult{
				{ParticipantID: "alice", IdentitySet: []string{"@alice"}, EngagementUnits: 3, RawScore: 0.6},
				{ParticipantID: "bob", IdentitySet: []string{"@bob"}, EngagementUnits: 1, RawScore: 0.4},
			},
		}))
	}
	return reg
}

// Run executes the cycle scheduler until the context is cancelled.
// A cycle runs immediately at startup, then on every tick, plus early
// whenever the publisher signals a campaign change.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting cycle scheduler (interval: %v)...", s.cfg.CycleInterval)

	s.runCycle(ctx, "startup")

	ticker := time.NewTicker(s.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx, "schedule")
		case campaignID := <-s.triggers:
			s.logger.Printf("Campaign update for %s, running early cycle", campaignID)
			s.runCycle(ctx, "publisher_update")
		}
	}
}

// forwardUpdates feeds publisher notifications into the trigger channel.
func (s *Server) forwardUpdates(ctx context.Context, sub *publisher.WSSubscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-sub.Updates():
			if !ok {
				return
			}
			select {
			case s.triggers <- update.CampaignID:
			default:
				// A trigger is already pending; the next cycle will
				// pick up this change too.
			}
		}
	}
}

// runCycle executes one cycle, skipping if one is already in flight.
func (s *Server) runCycle(ctx context.Context, trigger string) {
	s.mu.Lock()
	if s.cycleRunning {
		s.mu.Unlock()
		s.logger.Println("Cycle already running, skipping...")
		return
	}
	s.cycleRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cycleRunning = false
		s.lastCycleRun = time.Now()
		s.cycleRuns++
		s.mu.Unlock()
	}()

	s.metrics.CycleTriggers.WithLabelValues(trigger).Inc()

	start := time.Now()
	weights, audits, err := s.orch.RunCycle(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Printf("Cycle error: %v", err)
		return
	}

	s.logger.Printf("Cycle completed in %v: %d campaigns audited, %d participants weighted, sum=%.9f",
		time.Since(start).Round(time.Millisecond), len(audits), weights.NonZero(), weights.Sum())
}

// startHTTPServer serves health, metrics, and status endpoints.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	LastCycleRun time.Time `json:"last_cycle_run,omitempty"`
	CycleRuns    int       `json:"cycle_runs"`
	CycleRunning bool      `json:"cycle_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.startedAt).String(),
		LastCycleRun: s.lastCycleRun,
		CycleRuns:    s.cycleRuns,
		CycleRunning: s.cycleRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
