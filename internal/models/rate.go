package models

import "time"

// ExchangeRate is a single stored observation of a base->target rate.
// The triple (base, target, created_at) is the natural key; the physical
// table is range-partitioned by created_at at month granularity.
type ExchangeRate struct {
	ID               int       `db:"id" json:"id"`
	BaseCurrencyID   int       `db:"base_currency_id" json:"base_currency_id"`
	TargetCurrencyID int       `db:"target_currency_id" json:"target_currency_id"`
	Rate             float64   `db:"rate" json:"rate"`
	Source           string    `db:"source" json:"source"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// RateObservation is one row of a pending bulk upsert. CreatedAt carries the
// wall-clock (UTC) at the moment the base currency's scrape completed.
type RateObservation struct {
	BaseCurrencyID   int
	TargetCurrencyID int
	Rate             float64
	Source           string
	CreatedAt        time.Time
}

// ScrapeResult is the transient outcome of one successful failsafe sweep for
// a base currency. It is produced by the scraper manager and consumed by the
// orchestrator; it is never persisted as-is.
type ScrapeResult struct {
	Rates     map[string]float64 `json:"rates"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
}
