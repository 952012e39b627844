package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"vitrine/internal/api"
	"vitrine/internal/bot"
	"vitrine/internal/config"
	"vitrine/internal/deeplink"
	"vitrine/internal/storage"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid LOG_LEVEL, falling back to info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"badgerdb_path":   cfg.BadgerDBPath,
		"api_base_url":    cfg.APIBaseURL,
		"deeplink_source": cfg.DeepLinkSource,
	}).Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize Components ---
	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()
	if cfg.BadgerGCInterval > 0 {
		go repo.RunGC(ctx, cfg.BadgerGCInterval)
	}

	if cfg.APIToken != "" {
		if err := repo.SaveSession(ctx, cfg.APIToken, nil); err != nil {
			log.WithError(err).Warn("Failed to seed session token")
		}
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, repo, log)

	var source deeplink.URLSource = deeplink.NativeSource{}
	if cfg.DeepLinkSource == config.SourceWeb {
		browserSource, err := deeplink.NewBrowserSource(log, cfg.DeepLinkWebHosts, cfg.DeepLinkPageTimeout)
		if err != nil {
			log.Fatalf("Failed to initialize web deep-link source: %v", err)
		}
		defer func() {
			if err := browserSource.Close(); err != nil {
				log.WithError(err).Error("Error closing browser")
			}
		}()
		source = browserSource
	}

	botHandler, err := bot.NewHandler(cfg, bot.ShellDeps{
		Catalog: client,
		Remote:  client,
		LikedStores: func(scope string) storage.LikedStore {
			return repo.LikedStore(scope)
		},
		Source:         source,
		InternalMarker: cfg.DeepLinkInternalMarker,
		DispatchDelay:  cfg.DeepLinkDispatchDelay,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot handler: %v", err)
	}

	// --- Application Startup ---
	log.Info("Starting Vitrine...")
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		botHandler.Start(ctx)
	}()

	log.Info("Vitrine is running. Press Ctrl+C to exit.")
	<-ctx.Done()

	log.Info("Shutting down Vitrine...")
	stop()
	// Handlers and pending dispatches still write to the database.
	<-botDone
	log.Info("Vitrine shut down gracefully.")
}
