package scraping

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/koelfx/koel/internal/httpclient"
	"github.com/koelfx/koel/internal/models"
)

// DefaultRateLimitDelay is the minimum spacing between consecutive outbound
// requests initiated by one manager.
const DefaultRateLimitDelay = 1200 * time.Millisecond

// Request names the base currency to sweep and the descriptors available for
// URL construction. TargetCodes enables the single-pair phase; when nil the
// sweep stops after the multi-pair phase.
type Request struct {
	BaseCode       string
	BaseName       string
	BaseNamePlural string
	TargetCodes    []string
}

// Manager executes the priority-ordered failsafe sweep over the source
// registry for one base currency at a time. The rate-limit clock is scoped
// to the manager instance, so construct one per job.
type Manager struct {
	sources  map[string]Descriptor
	priority []string
	limiter  *rate.Limiter
	client   *httpclient.Client
	logger   arbor.ILogger
}

// NewManager creates a manager over the built-in source registry. A zero
// delay falls back to DefaultRateLimitDelay; an empty priority list falls
// back to DefaultPriority.
func NewManager(client *httpclient.Client, priority []string, delay time.Duration, logger arbor.ILogger) *Manager {
	if delay <= 0 {
		delay = DefaultRateLimitDelay
	}
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	return &Manager{
		sources:  Sources(),
		priority: priority,
		// Burst 1 leaves the initial token available, so the first request
		// of a job never waits.
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		client:  client,
		logger:  logger,
	}
}

// Scrape runs the full failsafe: the multi-pair sweep first, then, when
// target codes were supplied, the single-pair sweep. The first non-empty
// success wins; there is no averaging across sources.
func (m *Manager) Scrape(ctx context.Context, req Request) (*models.ScrapeResult, error) {
	result, err := m.ScrapeMultiPair(ctx, req)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiErr, ok := err.(*AllSourcesFailedError)
	if !ok {
		return nil, err
	}
	if len(req.TargetCodes) == 0 {
		return nil, multiErr
	}

	result, err = m.ScrapeSinglePair(ctx, req)
	if err == nil {
		return result, nil
	}
	if singleErr, ok := err.(*AllSourcesFailedError); ok {
		return nil, &AllSourcesFailedError{
			BaseCode: req.BaseCode,
			Errors:   append(multiErr.Errors, singleErr.Errors...),
		}
	}
	return nil, err
}

// ScrapeMultiPair sweeps the multi-pair sources in priority order and
// returns the first non-empty result.
func (m *Manager) ScrapeMultiPair(ctx context.Context, req Request) (*models.ScrapeResult, error) {
	var errs []SourceError

	for _, name := range m.priority {
		source, ok := m.sources[name]
		if !ok {
			m.logger.Warn().Str("source", name).Msg("Source not found in configured registry")
			continue
		}
		if source.Capability != CapabilityMultiPair {
			continue
		}
		if m.missingDescriptors(source, req) {
			m.logger.Warn().Str("source", name).Msg("Skipping source due to missing required parameters")
			continue
		}

		rates, err := m.scrapeOnce(ctx, source, req, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn().Err(err).Str("source", name).Str("base", req.BaseCode).Msg("Source failed")
			errs = append(errs, SourceError{Source: name, Err: err})
			continue
		}

		return &models.ScrapeResult{
			Rates:     rates,
			Source:    name,
			Timestamp: time.Now().UTC(),
		}, nil
	}

	return nil, &AllSourcesFailedError{BaseCode: req.BaseCode, Errors: errs}
}

// ScrapeSinglePair sweeps the single-pair sources in priority order,
// fetching every requested target from one source before moving on. A
// source succeeds only when it returned every target; a partial per-target
// failure aborts the source.
func (m *Manager) ScrapeSinglePair(ctx context.Context, req Request) (*models.ScrapeResult, error) {
	var errs []SourceError

	for _, name := range m.priority {
		source, ok := m.sources[name]
		if !ok {
			continue
		}
		if source.Capability != CapabilitySinglePair {
			continue
		}
		if m.missingDescriptors(source, req) {
			m.logger.Warn().Str("source", name).Msg("Skipping source due to missing required parameters")
			continue
		}

		rates, err := m.scrapeAllTargets(ctx, source, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn().Err(err).Str("source", name).Str("base", req.BaseCode).Msg("Source failed")
			errs = append(errs, SourceError{Source: name, Err: err})
			continue
		}

		return &models.ScrapeResult{
			Rates:     rates,
			Source:    name,
			Timestamp: time.Now().UTC(),
		}, nil
	}

	return nil, &AllSourcesFailedError{BaseCode: req.BaseCode, Errors: errs}
}

// scrapeAllTargets runs one single-pair source across every requested
// target. The first missing or failed target fails the whole source.
func (m *Manager) scrapeAllTargets(ctx context.Context, source Descriptor, req Request) (map[string]float64, error) {
	rates := make(map[string]float64, len(req.TargetCodes))
	for _, target := range req.TargetCodes {
		targetRates, err := m.scrapeOnce(ctx, source, req, target)
		if err != nil {
			return nil, err
		}
		rate, ok := targetRates[target]
		if !ok {
			return nil, SourceError{Source: source.Name, Err: ErrEmptyResult}
		}
		rates[target] = rate
	}
	if len(rates) == 0 {
		return nil, ErrEmptyResult
	}
	return rates, nil
}

// scrapeOnce performs one rate-limited extract+transform cycle. An empty
// mapping is treated as failure.
func (m *Manager) scrapeOnce(ctx context.Context, source Descriptor, req Request, target string) (map[string]float64, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	scraper, err := source.New(Params{
		BaseCode:       req.BaseCode,
		TargetCode:     target,
		BaseName:       req.BaseName,
		BaseNamePlural: req.BaseNamePlural,
		Client:         m.client,
	})
	if err != nil {
		return nil, err
	}

	raw, err := scraper.Extract(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := scraper.Transform(raw)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, ErrEmptyResult
	}
	return rates, nil
}

func (m *Manager) missingDescriptors(source Descriptor, req Request) bool {
	return (source.NeedsBaseName && req.BaseName == "") ||
		(source.NeedsBasePlural && req.BaseNamePlural == "")
}
