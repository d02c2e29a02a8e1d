// Package progress records job lifecycle and per-currency retry state in the
// shared cache so that concurrent worker processes observe a consistent view
// of a scraping job.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/models"
	"github.com/koelfx/koel/internal/services/cache"
)

const (
	// jobTTL keeps job records visible long enough for operators to inspect
	// them; records are never deleted explicitly outside maintenance.
	jobTTL = 24 * time.Hour
	// retryTTL bounds the lifetime of per-currency retry counters.
	retryTTL = 24 * time.Hour

	// DefaultMaxRetries bounds per-currency retry attempts.
	DefaultMaxRetries = 3
)

// Tracker implements the progress-tracking operations over the cache
// service.
type Tracker struct {
	cache  *cache.Service
	logger arbor.ILogger
}

// NewTracker creates a progress tracker.
func NewTracker(cacheService *cache.Service, logger arbor.ILogger) *Tracker {
	return &Tracker{cache: cacheService, logger: logger}
}

func jobKey(jobID string) string { return "job:" + jobID }

func retryKey(jobID, code string) string {
	return fmt.Sprintf("retry:%s:%s", jobID, code)
}

// StartJob initialises the job record with status running and empty
// completion and failure lists.
func (t *Tracker) StartJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	record := &models.JobRecord{
		Status:              models.JobStatusRunning,
		StartTime:           time.Now().UTC(),
		CompletedCurrencies: []string{},
		FailedCurrencies:    []string{},
	}
	if err := t.cache.SetJSON(ctx, jobKey(jobID), record, jobTTL); err != nil {
		return nil, fmt.Errorf("failed to start job %s: %w", jobID, err)
	}
	t.logger.Info().Str("job_id", jobID).Msg("Job started")
	return record, nil
}

// GetJob returns the current job record, or nil when the record has expired
// or never existed.
func (t *Tracker) GetJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	var record models.JobRecord
	err := t.cache.GetJSON(ctx, jobKey(jobID), &record)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkCurrencyComplete appends code to the job's completion list.
// Idempotent.
func (t *Tracker) MarkCurrencyComplete(ctx context.Context, jobID, code string) error {
	return t.updateJob(ctx, jobID, func(record *models.JobRecord) {
		if !models.HasCurrency(record.CompletedCurrencies, code) {
			record.CompletedCurrencies = append(record.CompletedCurrencies, code)
		}
	})
}

// MarkCurrencyFailed appends code to the job's failure list. Idempotent.
func (t *Tracker) MarkCurrencyFailed(ctx context.Context, jobID, code string) error {
	return t.updateJob(ctx, jobID, func(record *models.JobRecord) {
		if !models.HasCurrency(record.FailedCurrencies, code) {
			record.FailedCurrencies = append(record.FailedCurrencies, code)
		}
	})
}

// ShouldRetryCurrency reports whether a failed currency still has retry
// budget. The counter update uses the cache's atomic increment, so
// concurrent jobs on the same key cannot double-spend the budget: the first
// maxRetries calls return true, every later call returns false.
func (t *Tracker) ShouldRetryCurrency(ctx context.Context, jobID, code string, maxRetries int) (bool, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	key := retryKey(jobID, code)
	n, err := t.cache.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to update retry counter for %s: %w", key, err)
	}
	if n == 1 {
		if err := t.cache.Expire(ctx, key, retryTTL); err != nil {
			t.logger.Warn().Err(err).Str("key", key).Msg("Failed to set retry counter TTL")
		}
	}
	return n <= int64(maxRetries), nil
}

// CompleteJob sets the terminal status and records end time and duration.
func (t *Tracker) CompleteJob(ctx context.Context, jobID, status string) error {
	err := t.updateJob(ctx, jobID, func(record *models.JobRecord) {
		now := time.Now().UTC()
		record.Status = status
		record.EndTime = &now
		record.DurationSeconds = now.Sub(record.StartTime).Seconds()
	})
	if err != nil {
		return err
	}
	t.logger.Info().Str("job_id", jobID).Str("status", status).Msg("Job completed")
	return nil
}

func (t *Tracker) updateJob(ctx context.Context, jobID string, mutate func(*models.JobRecord)) error {
	var record models.JobRecord
	err := t.cache.GetJSON(ctx, jobKey(jobID), &record)
	if errors.Is(err, cache.ErrCacheMiss) {
		// The record expired; job state is advisory, so this is not fatal.
		t.logger.Warn().Str("job_id", jobID).Msg("Job record missing, skipping update")
		return nil
	}
	if err != nil {
		return err
	}

	mutate(&record)
	return t.cache.SetJSON(ctx, jobKey(jobID), &record, jobTTL)
}
