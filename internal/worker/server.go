// Package worker runs the task queue consumer.
package worker

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/jobs"
	"github.com/koelfx/koel/internal/scraping"
)

// Server wraps the asynq consumer and its handler routing.
type Server struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger arbor.ILogger
}

// RetryDelay picks the queue-level backoff for a failed task. A
// single-currency task whose every source failed waits longer before the next
// attempt; everything else retries on the standard delay.
func RetryDelay(n int, err error, t *asynq.Task) time.Duration {
	if t.Type() == jobs.TypeScrapeSingle {
		var asfe *scraping.AllSourcesFailedError
		if errors.As(err, &asfe) {
			return jobs.EscalatedRetryDelay
		}
	}
	return jobs.RetryDelay
}

// New builds the consumer over the shared Redis broker and registers the
// orchestrator's handlers.
func New(redisCfg common.RedisConfig, queueCfg common.QueueConfig, orchestrator *jobs.Orchestrator, logger arbor.ILogger) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisCfg.Addr,
			DB:       redisCfg.DB,
			Password: redisCfg.Password,
		},
		asynq.Config{
			Concurrency: queueCfg.Concurrency,
			Queues: map[string]int{
				jobs.QueueRates:       6,
				jobs.QueueMaintenance: 1,
			},
			RetryDelayFunc: RetryDelay,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeScrapeAll, orchestrator.HandleScrapeAll)
	mux.HandleFunc(jobs.TypeScrapeGroup, orchestrator.HandleScrapeGroup)
	mux.HandleFunc(jobs.TypeScrapeSingle, orchestrator.HandleScrapeSingle)
	mux.HandleFunc(jobs.TypeCleanup, orchestrator.HandleCleanup)
	mux.HandleFunc(jobs.TypeCreatePartition, orchestrator.HandleCreatePartition)

	return &Server{srv: srv, mux: mux, logger: logger}
}

// Run blocks consuming tasks until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info().Msg("Worker started")
	return s.srv.Run(s.mux)
}

// Shutdown waits for in-flight tasks and stops the consumer.
func (s *Server) Shutdown() {
	s.logger.Info().Msg("Worker shutting down")
	s.srv.Shutdown()
}
