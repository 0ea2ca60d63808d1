package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"scholarsift/scholarworker/config"
	"scholarsift/scholarworker/helpers"
	"scholarsift/scholarworker/internal"
	"scholarsift/scholarworker/internal/crawler"
	"scholarsift/scholarworker/logger"
	"scholarsift/scholarworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("seed_urls", len(cfg.SeedURLs)).
		Dur("crawl_interval", cfg.CrawlInterval).
		Bool("run_once", cfg.RunOnce).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	deps, err := internal.NewDependencies(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer deps.Cleanup()

	scraper := crawler.CreateScraper(cfg, deps.Cache)

	w := worker.NewWorker(
		ctx,
		scraper,
		cfg.SeedURLs,
		deps.Publisher,
		helpers.NewLogger(cfg.ErrorLogFile),
		cfg.CrawlInterval,
	)
	w.LogSamples(cfg.Environment != "production")

	if cfg.RunOnce {
		go func() {
			sig := <-sigChan
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		}()
		result := w.RunOnce()
		log.Info().
			Int("records", len(result.Records)).
			Int("failures", len(result.Failures)).
			Msg("Single run finished")
		return
	}

	// Start worker in a goroutine
	workerDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting scholarship worker")
		w.Start()
		close(workerDone)
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case <-workerDone:
		log.Info().Msg("Worker exited")
	}

	log.Info().Msg("Shutting down gracefully...")
}
