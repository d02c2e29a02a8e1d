package common

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewJobID(t *testing.T) {
	at := time.Date(2026, 8, 24, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "scrape_rates_20260824123045", NewJobID("scrape_rates", at))
}

func TestNewJobIDConvertsToUTC(t *testing.T) {
	at := time.Date(2026, 8, 24, 22, 0, 0, 0, time.FixedZone("AEST", 10*3600))
	assert.Equal(t, "scrape_primary_20260824120000", NewJobID("scrape_primary", at))
}

func TestNewWorkerID(t *testing.T) {
	a := NewWorkerID()
	b := NewWorkerID()

	assert.True(t, strings.HasPrefix(a, "worker_"))
	assert.NotEqual(t, a, b)
}
