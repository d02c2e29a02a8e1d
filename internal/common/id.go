package common

import (
	"time"

	"github.com/google/uuid"
)

// NewJobID generates a job identifier for one scheduled execution.
// Format: <kind>_<yyyymmddhhmmss> in UTC, e.g. "scrape_rates_20250529120000".
func NewJobID(kind string, now time.Time) string {
	return kind + "_" + now.UTC().Format("20060102150405")
}

// NewWorkerID generates a unique correlation ID for a worker process.
// Format: worker_<uuid>
func NewWorkerID() string {
	return "worker_" + uuid.New().String()
}
