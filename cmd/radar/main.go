package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foresynth/radar/internal/alerts"
	"github.com/foresynth/radar/internal/cache"
	"github.com/foresynth/radar/internal/config"
	"github.com/foresynth/radar/internal/feed"
	"github.com/foresynth/radar/internal/polymarket/dataapi"
	"github.com/foresynth/radar/internal/polymarket/gammaapi"
	"github.com/foresynth/radar/internal/processor"
	"github.com/foresynth/radar/internal/radar"
	"github.com/foresynth/radar/internal/server"
	"github.com/foresynth/radar/internal/server/ws"
	"github.com/foresynth/radar/internal/source"
	"github.com/foresynth/radar/internal/storage"
	"github.com/sirupsen/logrus"
)

// signalStore is implemented by both the MySQL and the in-memory store
type signalStore interface {
	processor.Store
	source.Directory
	server.Pinger
}

func main() {
	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting radar service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	log.WithFields(logrus.Fields{
		"environment":       cfg.Environment,
		"source_mode":       cfg.SourceMode,
		"store_mode":        cfg.StoreMode,
		"poll_interval_sec": cfg.PollIntervalSec,
		"alert_mode":        cfg.AlertMode,
		"alert_min_score":   cfg.AlertMinScore,
		"scoring":           cfg.Scoring,
	}).Info("Configuration loaded")

	// Initialize store
	store, closeStore := openStore(cfg, log)
	defer closeStore()

	// Initialize feed cache
	feedCache := cache.New(cfg.RedisURL, log)
	if closer, ok := feedCache.(io.Closer); ok {
		defer closer.Close()
	}
	feedSvc := feed.NewService(store, feedCache, cfg.FeedCacheTTL, log)

	// Initialize scoring
	scorer := radar.NewScorer(cfg.Scoring.Weights())
	engine := radar.NewEngine(scorer, radar.NewFeatureCache(cfg.FeatureCacheSize), cfg.ScoringWorkers)

	// Initialize observation source
	src := createSource(cfg, store, log)

	log.WithField("source", src.Name()).Info("Observation source initialized")

	// Initialize alert sender
	alertSender := createAlertSender(cfg, log)

	log.WithField("alert_mode", cfg.AlertMode).Info("Alert sender initialized")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live stream hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// Initialize processor
	proc := processor.New(cfg, src, scorer, engine, store, feedSvc, alertSender, hub, log)

	// Start HTTP server (API + health + metrics)
	srv := server.New(cfg.HTTPPort, feedSvc, proc, store, hub, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start polling loop
	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	log.Info("Starting ingest loop")

	// Process immediately on startup
	if _, err := proc.RunCycle(ctx); err != nil {
		log.WithError(err).Error("Error running ingest cycle")
	}

	for {
		select {
		case <-ticker.C:
			if _, err := proc.RunCycle(ctx); err != nil {
				log.WithError(err).Error("Error running ingest cycle")
			}
		case sig := <-sigChan:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("HTTP server shutdown failed")
			}
			shutdownCancel()

			log.Info("Graceful shutdown complete")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, shutting down")
			return
		}
	}
}

func openStore(cfg *config.Config, log *logrus.Logger) (signalStore, func()) {
	if cfg.StoreMode == config.StoreModeMemory {
		log.Info("Using in-memory signal store")
		return storage.NewMemoryStore(), func() {}
	}

	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Run auto-migration
	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}

	log.Info("Database migrations complete")

	return db, func() { db.Close() }
}

func createSource(cfg *config.Config, store source.Directory, log *logrus.Logger) source.Source {
	if cfg.SourceMode == config.SourceModeMock {
		return source.NewMock(cfg.MockSeed, cfg.MockBatchSize)
	}

	return source.NewLive(
		dataapi.NewClient(cfg),
		gammaapi.NewClient(cfg),
		store,
		source.LiveOptions{
			MinTradeUSD: cfg.MinTradeUSD,
			FetchLimit:  cfg.TradeFetchLimit,
			Workers:     cfg.ScoringWorkers,
		},
		log,
	)
}

func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	modes := cfg.AlertModes()

	senders := []alerts.Sender{}
	for _, mode := range modes {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			if len(cfg.DiscordWebhookURLs) == 0 {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URLS not set")
				continue
			}
			// One sender per webhook URL
			for _, url := range cfg.DiscordWebhookURLs {
				senders = append(senders, alerts.NewDiscordSender(url))
			}
		case "smtp":
			if cfg.SMTPHost == "" {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
				continue
			}
			senders = append(senders, alerts.NewSMTPSender(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
			))
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	switch len(senders) {
	case 0:
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	case 1:
		return senders[0]
	default:
		return alerts.NewMultiSender(senders...)
	}
}
