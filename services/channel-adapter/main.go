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

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/channel-adapter/config"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/channel-adapter/handlers"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
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

	wsHandler := handlers.NewWSHandler(rdb, handlers.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultLanguage: cfg.DefaultLanguage,
		MaxMessageBytes: cfg.MaxMessageBytes,

		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
	}, prometheus.DefaultRegisterer, log)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info("channel adapter listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", "error", err)
	}
}
