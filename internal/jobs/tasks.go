// Package jobs defines the queue task surface and the handlers that execute
// scraping and maintenance work.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names. The rates queue carries scraping work, the maintenance
// queue carries housekeeping.
const (
	TypeScrapeAll       = "rates:scrape_all"
	TypeScrapeGroup     = "rates:scrape_group"
	TypeScrapeSingle    = "rates:scrape_single"
	TypeCleanup         = "maintenance:cleanup"
	TypeCreatePartition = "maintenance:create_partition"
)

// Queue names.
const (
	QueueRates       = "rates"
	QueueMaintenance = "maintenance"
)

// Retry backoff for re-enqueued scraping work. The escalated delay applies
// when every source failed for a single-currency task.
const (
	RetryDelay          = 5 * time.Minute
	EscalatedRetryDelay = 15 * time.Minute
)

// MaxTaskRetries bounds queue-level redelivery per task.
const MaxTaskRetries = 3

// ScrapeGroupPayload names the currency group to sweep.
type ScrapeGroupPayload struct {
	Group string `json:"group"`
}

// ScrapeSinglePayload identifies the base currency to re-scrape.
type ScrapeSinglePayload struct {
	CurrencyID int `json:"currency_id"`
}

// NewScrapeAllTask builds the full-sweep task.
func NewScrapeAllTask() *asynq.Task {
	return asynq.NewTask(TypeScrapeAll, nil, asynq.Queue(QueueRates), asynq.MaxRetry(MaxTaskRetries))
}

// NewScrapeGroupTask builds a group-sweep task.
func NewScrapeGroupTask(group string) (*asynq.Task, error) {
	payload, err := json.Marshal(ScrapeGroupPayload{Group: group})
	if err != nil {
		return nil, fmt.Errorf("failed to encode group payload: %w", err)
	}
	return asynq.NewTask(TypeScrapeGroup, payload, asynq.Queue(QueueRates), asynq.MaxRetry(MaxTaskRetries)), nil
}

// NewScrapeSingleTask builds a single-currency retry task.
func NewScrapeSingleTask(currencyID int) (*asynq.Task, error) {
	payload, err := json.Marshal(ScrapeSinglePayload{CurrencyID: currencyID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode currency payload: %w", err)
	}
	return asynq.NewTask(TypeScrapeSingle, payload, asynq.Queue(QueueRates), asynq.MaxRetry(MaxTaskRetries)), nil
}

// NewCleanupTask builds the weekly maintenance task.
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeCleanup, nil, asynq.Queue(QueueMaintenance), asynq.MaxRetry(MaxTaskRetries))
}

// NewCreatePartitionTask builds the partition pre-creation task.
func NewCreatePartitionTask() *asynq.Task {
	return asynq.NewTask(TypeCreatePartition, nil, asynq.Queue(QueueMaintenance), asynq.MaxRetry(MaxTaskRetries))
}
