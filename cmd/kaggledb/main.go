package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaggledb-core/api"
	"kaggledb-core/browser"
	"kaggledb-core/cache"
	"kaggledb-core/catalog"
	"kaggledb-core/config"
	"kaggledb-core/llm"
	"kaggledb-core/orchestrator"
	"kaggledb-core/platform"
	"kaggledb-core/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfgPath := "./config.yaml"
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "database_path", cfg.DatabasePath, "log_level", cfg.LogLevel)

	switch cfg.LogLevel {
	case "debug":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
	case "warn":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))
	case "error":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	}

	// Initialize catalog
	store, err := catalog.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to initialize catalog", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("catalog initialized", "database_path", cfg.DatabasePath)

	var c cache.Cache
	if cfg.RedisAddr != "" {
		c = cache.NewRedis(cfg.RedisAddr)
		slog.Info("cache backend selected", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		c = cache.NewMemory()
		slog.Info("cache backend selected", "backend", "memory")
	}

	fetcher := browser.New(cfg.ScraperHeadless)
	defer fetcher.Close()

	gateway := llm.New(
		cfg.OpenAIAPIKey,
		cfg.LLMModel,
		&http.Client{Timeout: 60 * time.Second},
		cfg.LLMMaxRetries,
		time.Duration(cfg.LLMRetryDelaySeconds*float64(time.Second)),
	)

	scrapeDelay := time.Duration(cfg.ScraperDelaySeconds * float64(time.Second))
	orch := orchestrator.New(fetcher, c, gateway, store, cfg.PlatformBaseURL, cfg.DiscussionPages, scrapeDelay)

	var platformClient platform.Client
	if cfg.KaggleUsername != "" && cfg.KaggleKey != "" {
		platformClient = platform.NewClient(cfg.KaggleUsername, cfg.KaggleKey, &http.Client{Timeout: 30 * time.Second})
		slog.Info("platform API discovery enabled", "user", cfg.KaggleUsername)
	}

	// Initialize scheduler
	sched, err := scheduler.New("UTC")
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	sweep := newSweeper(store, orch, platformClient, cfg.DiscussionPages)
	if err := sched.ScheduleInterval(cfg.SweepIntervalMinutes, sweep.Run); err != nil {
		slog.Error("failed to schedule sweep", "error", err)
		os.Exit(1)
	}
	sched.Start()
	slog.Info("scheduler started", "sweep_interval_minutes", cfg.SweepIntervalMinutes)

	// Start read/trigger HTTP API
	server := api.New(store, orch, c)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server}
	go func() {
		slog.Info("http api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http api stopped with error", "error", err)
		}
	}()

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http api shutdown error", "error", err)
	}

	sched.Stop()
	slog.Info("shutdown complete")
}

// sweeper drives one periodic pass over tracked competitions: discover
// new ones via the platform API (when credentials are configured),
// refresh metadata and enrichment for active ones, and pull discussions
// plus notebooks for favorites. Grounded on the teacher's single
// injected digestFunc closure, generalized from "one digest" to "one
// sweep with several sub-steps over the tracked competition set."
type sweeper struct {
	store    *catalog.Store
	orch     *orchestrator.Orchestrator
	platform platform.Client
	pages    int
}

func newSweeper(store *catalog.Store, orch *orchestrator.Orchestrator, p platform.Client, pages int) *sweeper {
	return &sweeper{store: store, orch: orch, platform: p, pages: pages}
}

func (s *sweeper) Run() {
	ctx := context.Background()

	if s.platform != nil {
		s.discoverNew(ctx)
	}

	comps, err := s.store.ListCompetitions(catalog.CompetitionFilter{Status: "active", Limit: 500})
	if err != nil {
		slog.Error("sweep: listing active competitions failed", "error", err)
		return
	}

	for _, comp := range comps {
		if _, err := s.orch.IngestCompetitionMetadata(ctx, comp.ID); err != nil {
			slog.Error("sweep: refresh metadata failed", "comp_id", comp.ID, "error", err)
			continue
		}
		if err := s.orch.EnrichCompetition(ctx, comp.ID); err != nil {
			slog.Error("sweep: enrich failed", "comp_id", comp.ID, "error", err)
		}
		if !comp.IsFavorite {
			continue
		}
		if _, _, err := s.orch.IngestDiscussions(ctx, comp.ID, s.pages); err != nil {
			slog.Error("sweep: ingest discussions failed", "comp_id", comp.ID, "error", err)
		}
		if _, err := s.orch.FetchNotebooks(ctx, comp.ID); err != nil {
			slog.Error("sweep: fetch notebooks failed", "comp_id", comp.ID, "error", err)
		}
	}
	slog.Info("sweep complete", "competitions", len(comps))
}

func (s *sweeper) discoverNew(ctx context.Context) {
	refs, err := s.platform.ListCompetitions(ctx, "", 1)
	if err != nil {
		slog.Error("sweep: platform discovery failed", "error", err)
		return
	}
	for _, ref := range refs {
		if existing, _ := s.store.GetCompetition(ref.ID); existing != nil {
			continue
		}
		if _, err := s.orch.IngestCompetitionMetadata(ctx, ref.ID); err != nil {
			slog.Error("sweep: ingest new competition failed", "comp_id", ref.ID, "error", err)
		}
	}
}
