package scraping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/koelfx/koel/internal/common"
)

// stubScraper returns canned rates, or an error, and counts extracts.
type stubScraper struct {
	name     string
	rates    map[string]float64
	err      error
	extracts *int
}

func (s *stubScraper) SourceName() string { return s.name }

func (s *stubScraper) Extract(ctx context.Context) ([]byte, error) {
	if s.extracts != nil {
		*s.extracts++
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ok"), nil
}

func (s *stubScraper) Transform(raw []byte) (map[string]float64, error) {
	return s.rates, nil
}

// multiStub registers a multi-pair descriptor backed by a stubScraper.
func multiStub(name string, rates map[string]float64, err error, extracts *int) Descriptor {
	return Descriptor{
		Name:       name,
		Capability: CapabilityMultiPair,
		New: func(p Params) (Scraper, error) {
			return &stubScraper{name: name, rates: rates, err: err, extracts: extracts}, nil
		},
	}
}

// singleStub registers a single-pair descriptor. rates maps target code to
// value; targets absent from the map fail the fetch.
func singleStub(name string, rates map[string]float64, err error, extracts *int) Descriptor {
	return Descriptor{
		Name:       name,
		Capability: CapabilitySinglePair,
		New: func(p Params) (Scraper, error) {
			if err != nil {
				return &stubScraper{name: name, err: err, extracts: extracts}, nil
			}
			value, ok := rates[p.TargetCode]
			if !ok {
				return &stubScraper{name: name, err: ErrEmptyResult, extracts: extracts}, nil
			}
			return &stubScraper{
				name:     name,
				rates:    map[string]float64{p.TargetCode: value},
				extracts: extracts,
			}, nil
		},
	}
}

func newTestManager(sources map[string]Descriptor, priority []string) *Manager {
	return &Manager{
		sources:  sources,
		priority: priority,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		logger:   common.GetLogger(),
	}
}

func TestScrapeFirstSourceWins(t *testing.T) {
	var firstCalls, secondCalls int
	m := newTestManager(map[string]Descriptor{
		"first":  multiStub("first", map[string]float64{"EUR": 0.85}, nil, &firstCalls),
		"second": multiStub("second", map[string]float64{"EUR": 0.99}, nil, &secondCalls),
	}, []string{"first", "second"})

	result, err := m.Scrape(context.Background(), Request{BaseCode: "USD"})
	require.NoError(t, err)

	assert.Equal(t, "first", result.Source)
	assert.InDelta(t, 0.85, result.Rates["EUR"], 1e-9)
	assert.Equal(t, 1, firstCalls)
	assert.Zero(t, secondCalls, "lower priority source must not be fetched")
	assert.False(t, result.Timestamp.IsZero())
}

func TestScrapeFallsThroughToNextSource(t *testing.T) {
	m := newTestManager(map[string]Descriptor{
		"broken":  multiStub("broken", nil, errors.New("status 403"), nil),
		"working": multiStub("working", map[string]float64{"EUR": 0.85}, nil, nil),
	}, []string{"broken", "working"})

	result, err := m.Scrape(context.Background(), Request{BaseCode: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "working", result.Source)
}

func TestScrapeEmptyResultCountsAsFailure(t *testing.T) {
	m := newTestManager(map[string]Descriptor{
		"empty":   multiStub("empty", map[string]float64{}, nil, nil),
		"working": multiStub("working", map[string]float64{"EUR": 0.85}, nil, nil),
	}, []string{"empty", "working"})

	result, err := m.Scrape(context.Background(), Request{BaseCode: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "working", result.Source)
}

func TestScrapeFallsBackToSinglePairPhase(t *testing.T) {
	m := newTestManager(map[string]Descriptor{
		"multi":  multiStub("multi", nil, errors.New("blocked"), nil),
		"single": singleStub("single", map[string]float64{"EUR": 0.85, "GBP": 0.74}, nil, nil),
	}, []string{"multi", "single"})

	result, err := m.Scrape(context.Background(), Request{
		BaseCode:    "USD",
		TargetCodes: []string{"EUR", "GBP"},
	})
	require.NoError(t, err)

	assert.Equal(t, "single", result.Source)
	assert.Len(t, result.Rates, 2)
	assert.InDelta(t, 0.74, result.Rates["GBP"], 1e-9)
}

func TestScrapeSinglePairIsAllOrNothing(t *testing.T) {
	// "partial" only covers EUR, so it must be rejected entirely and the
	// sweep moves to "complete".
	m := newTestManager(map[string]Descriptor{
		"multi":    multiStub("multi", nil, errors.New("blocked"), nil),
		"partial":  singleStub("partial", map[string]float64{"EUR": 0.85}, nil, nil),
		"complete": singleStub("complete", map[string]float64{"EUR": 0.86, "GBP": 0.75}, nil, nil),
	}, []string{"multi", "partial", "complete"})

	result, err := m.Scrape(context.Background(), Request{
		BaseCode:    "USD",
		TargetCodes: []string{"EUR", "GBP"},
	})
	require.NoError(t, err)

	assert.Equal(t, "complete", result.Source)
	assert.InDelta(t, 0.86, result.Rates["EUR"], 1e-9)
}

func TestScrapeAllSourcesFailed(t *testing.T) {
	m := newTestManager(map[string]Descriptor{
		"multi":  multiStub("multi", nil, errors.New("blocked"), nil),
		"single": singleStub("single", nil, errors.New("timeout"), nil),
	}, []string{"multi", "single"})

	_, err := m.Scrape(context.Background(), Request{
		BaseCode:    "USD",
		TargetCodes: []string{"EUR"},
	})

	var asfe *AllSourcesFailedError
	require.ErrorAs(t, err, &asfe)
	assert.Equal(t, "USD", asfe.BaseCode)
	// Errors from both phases are carried.
	assert.Len(t, asfe.Errors, 2)
}

func TestScrapeWithoutTargetsStopsAfterMultiPhase(t *testing.T) {
	var singleCalls int
	m := newTestManager(map[string]Descriptor{
		"multi":  multiStub("multi", nil, errors.New("blocked"), nil),
		"single": singleStub("single", map[string]float64{"EUR": 0.85}, nil, &singleCalls),
	}, []string{"multi", "single"})

	_, err := m.Scrape(context.Background(), Request{BaseCode: "USD"})

	var asfe *AllSourcesFailedError
	require.ErrorAs(t, err, &asfe)
	assert.Zero(t, singleCalls)
}

func TestScrapeSkipsSourcesMissingDescriptors(t *testing.T) {
	needsName := Descriptor{
		Name:          "needs-name",
		Capability:    CapabilityMultiPair,
		NeedsBaseName: true,
		New: func(p Params) (Scraper, error) {
			t.Fatal("constructor must not run when the base name is missing")
			return nil, nil
		},
	}
	m := newTestManager(map[string]Descriptor{
		"needs-name": needsName,
		"working":    multiStub("working", map[string]float64{"EUR": 0.85}, nil, nil),
	}, []string{"needs-name", "working"})

	result, err := m.Scrape(context.Background(), Request{BaseCode: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "working", result.Source)
}

func TestScrapeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newTestManager(map[string]Descriptor{
		"multi": multiStub("multi", map[string]float64{"EUR": 0.85}, nil, nil),
	}, []string{"multi"})

	_, err := m.Scrape(ctx, Request{BaseCode: "USD"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterFirstRequestDoesNotWait(t *testing.T) {
	m := NewManager(nil, nil, 500*time.Millisecond, common.GetLogger())

	start := time.Now()
	require.NoError(t, m.limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"the initial token must be available immediately")

	// The second acquisition pays the configured delay.
	start = time.Now()
	require.NoError(t, m.limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(nil, nil, 0, common.GetLogger())

	assert.Equal(t, DefaultPriority, m.priority)
	assert.Len(t, m.sources, len(DefaultPriority))
}
