package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/config"
	"github.com/Carlos-paez/formaciones/internal/event"
	"github.com/Carlos-paez/formaciones/internal/store"
	"github.com/Carlos-paez/formaciones/internal/watch"
	"github.com/Carlos-paez/formaciones/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	dbPath := flag.String("db", "", "Override database path")
	flag.Parse()

	// .env is optional; real env vars still win inside config.Load.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("path", cfg.Store.Path), zap.Error(err))
	}
	defer st.Close()

	engine := alert.NewEngine(cfg.Alerts.WarningOffsets, cfg.Alerts.ToleranceMinutes)
	dedup := alert.NewDedup(cfg.Alerts.DedupCapacity, cfg.Alerts.DedupMaxAge)

	broadcaster := ws.NewBroadcaster(func() ([]event.View, error) {
		listCtx, listCancel := context.WithTimeout(ctx, cfg.Watch.StoreTimeout)
		defer listCancel()
		sessions, err := st.List(listCtx)
		if err != nil {
			return nil, err
		}
		return event.Views(sessions, event.At(time.Now())), nil
	}, logger)

	watcher := watch.New(cfg, st, engine, dedup, broadcaster, logger)
	go watcher.Start(ctx)

	server := ws.NewServer(st, broadcaster, engine, watcher, logger)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		st.Close()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
