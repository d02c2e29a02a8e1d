package models

import "time"

// Job status values. A job is terminal in either completed or failed; there
// is no resumption.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobRecord is the cache-resident lifecycle record for one scraping job,
// stored under "job:<id>" and left to expire on its TTL.
type JobRecord struct {
	Status              string     `json:"status"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	DurationSeconds     float64    `json:"duration,omitempty"`
	CompletedCurrencies []string   `json:"completed_currencies"`
	FailedCurrencies    []string   `json:"failed_currencies"`
	RetryCount          int        `json:"retry_count"`
}

// HasCurrency reports whether code already appears in the given list.
// Completion and failure marking are idempotent.
func HasCurrency(list []string, code string) bool {
	for _, c := range list {
		if c == code {
			return true
		}
	}
	return false
}
