package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/scheduler"
)

// runScheduler runs the cron loop until interrupted.
func runScheduler(cfg *common.Config, logger arbor.ILogger) error {
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
	defer queueClient.Close()

	svc := scheduler.NewService(queueClient, cfg.Scheduler, logger)
	if err := svc.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	svc.Stop()
	return nil
}
