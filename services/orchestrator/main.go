package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/config"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/conversation"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/events"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/flow"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/jobs"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/matching"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/metrics"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/router"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/session"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/store"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/turn"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Environment, cfg.LogRedact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("invalid REDIS_URL", "error", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to Redis", "error", err)
	}
	log.Info("connected to Redis")

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", "error", err)
	}

	schemes := store.NewSchemeRepo(db, log)
	if cfg.CatalogSeedFile != "" {
		if err := seedCatalog(ctx, schemes, cfg.CatalogSeedFile); err != nil {
			log.Fatal("failed to seed catalog", "file", cfg.CatalogSeedFile, "error", err)
		}
	}

	bus := events.NewBus(rdb, log)
	profiles := store.NewProfileRepo(db, log, bus)
	applications := store.NewApplicationRepo(db, log, bus)

	catalog := matching.NewCachedCatalog(schemes, cfg.CatalogCacheTTL)
	schemes.OnChange(catalog.Invalidate)
	engine := matching.NewEngine(catalog, log)

	sessionOpts := session.Options{
		TTL:       cfg.SessionTTL,
		Retention: cfg.SessionRetention,
	}
	var sessions session.Store = session.NewRedisStore(rdb, sessionOpts)
	if cfg.SessionBackend == "memory" {
		log.Warn("using in-process session store, sessions are not shared between instances")
		sessions = session.NewMemoryStore(sessionOpts)
	}
	convo := conversation.NewManager(sessions, log)

	machine, err := flow.NewMachine(flow.Deps{
		Conversation: convo,
		Matcher:      engine,
		Profiles:     profiles,
		Applications: applications,
		Forms:        flow.ProfileFormFiller{},
	}, flow.DefaultTable(), log)
	if err != nil {
		log.Fatal("invalid flow table", "error", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	delivery := router.NewRedisDelivery(rdb, m, log)

	processor := turn.NewProcessor(turn.Deps{
		Locks:        session.NewLocks(),
		Conversation: convo,
		Machine:      machine,
		Extractor:    router.NewHTTPExtractor(cfg.CognitiveCoreURL, log),
		Matcher:      engine,
		Profiles:     profiles,
		Delivery:     delivery,
		Metrics:      m,
	}, turn.Options{
		DedupWindow:    cfg.DedupWindow,
		ExtractTimeout: cfg.ExtractTimeout,
	}, log)

	if err := bus.Start(ctx, processor); err != nil {
		log.Fatal("failed to subscribe to events", "error", err)
	}

	r := router.New(rdb, processor, delivery, cfg.ConsumerName, log)
	if err := r.EnsureConsumerGroup(ctx); err != nil {
		log.Fatal("failed to create consumer group", "error", err)
	}
	go r.ConsumeLoop(ctx)

	scheduler, err := jobs.NewScheduler(catalog, cfg.CatalogRefreshInterval, m, log)
	if err != nil {
		log.Fatal("failed to create scheduler", "error", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		cancel()
		if err := scheduler.Shutdown(); err != nil {
			log.Warn("scheduler shutdown failed", "error", err)
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("orchestrator listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", "error", err)
	}
}

func seedCatalog(ctx context.Context, schemes *store.SchemeRepo, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = schemes.ImportYAML(ctx, f)
	return err
}
