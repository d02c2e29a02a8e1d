package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/httpclient"
	"github.com/koelfx/koel/internal/jobs"
	"github.com/koelfx/koel/internal/scraping"
	"github.com/koelfx/koel/internal/services/cache"
	"github.com/koelfx/koel/internal/services/progress"
	"github.com/koelfx/koel/internal/storage/postgres"
	"github.com/koelfx/koel/internal/useragent"
	"github.com/koelfx/koel/internal/worker"
)

// runWorker wires the full scraping stack and consumes tasks until
// interrupted.
func runWorker(cfg *common.Config, logger arbor.ILogger) error {
	ctx := context.Background()

	if err := useragent.Init(cfg.Scraper.UserAgentsFile); err != nil {
		return fmt.Errorf("failed to load user agent pool: %w", err)
	}

	store, err := postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cacheService, err := cache.NewService(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer cacheService.Close()

	tracker := progress.NewTracker(cacheService, logger)

	client := httpclient.New(time.Duration(cfg.Scraper.RequestTimeout), useragent.Default(), logger)

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
	defer queueClient.Close()

	orchestrator := jobs.NewOrchestrator(jobs.Options{
		Store:    store,
		Tracker:  tracker,
		Cache:    cacheService,
		Enqueuer: queueClient,
		// A fresh manager per job keeps the rate-limit clock job-scoped.
		NewScraper: func() jobs.Scraper {
			return scraping.NewManager(client, cfg.Scraper.SourcePriority, time.Duration(cfg.Scraper.RateLimitDelay), logger)
		},
		Groups:          cfg.Groups,
		MaxRetries:      cfg.Scraper.MaxRetries,
		RetentionMonths: cfg.Retention.Months,
		PartitionsAhead: cfg.Retention.PartitionsAhead,
		Logger:          logger,
	})

	srv := worker.New(cfg.Redis, cfg.Queue, orchestrator, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		srv.Shutdown()
		return <-errChan
	case err := <-errChan:
		return err
	}
}
