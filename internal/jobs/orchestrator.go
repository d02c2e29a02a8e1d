package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/models"
	"github.com/koelfx/koel/internal/scraping"
	"github.com/koelfx/koel/internal/storage/postgres"
)

// invalidationPatterns are the cache namespaces swept by the cleanup task.
var invalidationPatterns = []string{
	"job:*", "retry:*", "currencies:*", "currency:*",
	"exchange_rates:*", "exchange_rate:*",
}

// Store is the persistence surface the handlers need.
type Store interface {
	ListCurrencies(ctx context.Context) ([]models.Currency, error)
	GetCurrency(ctx context.Context, id int) (*models.Currency, error)
	ListCurrenciesByCodes(ctx context.Context, codes []string) ([]models.Currency, error)
	SaveRates(ctx context.Context, rows []models.RateObservation) error
	EnsureUpcomingPartitions(ctx context.Context, monthsAhead int) error
	RetentionSweep(ctx context.Context, retentionMonths int) ([]string, error)
}

// Tracker is the job progress surface the handlers need.
type Tracker interface {
	StartJob(ctx context.Context, jobID string) (*models.JobRecord, error)
	MarkCurrencyComplete(ctx context.Context, jobID, code string) error
	MarkCurrencyFailed(ctx context.Context, jobID, code string) error
	ShouldRetryCurrency(ctx context.Context, jobID, code string, maxRetries int) (bool, error)
	CompleteJob(ctx context.Context, jobID, status string) error
}

// Invalidator sweeps cache namespaces.
type Invalidator interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// Enqueuer submits follow-up tasks. Satisfied by asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scraper runs the failsafe sweep for one base currency. Satisfied by
// scraping.Manager.
type Scraper interface {
	Scrape(ctx context.Context, req scraping.Request) (*models.ScrapeResult, error)
}

// ScraperFactory builds a fresh scraper per job, so each job gets its own
// rate-limit clock.
type ScraperFactory func() Scraper

// Options wires an Orchestrator.
type Options struct {
	Store           Store
	Tracker         Tracker
	Cache           Invalidator
	Enqueuer        Enqueuer
	NewScraper      ScraperFactory
	Groups          common.GroupsConfig
	MaxRetries      int
	RetentionMonths int
	PartitionsAhead int
	Logger          arbor.ILogger
}

// Orchestrator implements the task handlers.
type Orchestrator struct {
	store      Store
	tracker    Tracker
	cache      Invalidator
	enqueuer   Enqueuer
	newScraper ScraperFactory
	groups     common.GroupsConfig
	maxRetries int
	retention  int
	ahead      int
	logger     arbor.ILogger
}

// NewOrchestrator creates the handler set.
func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		store:      opts.Store,
		tracker:    opts.Tracker,
		cache:      opts.Cache,
		enqueuer:   opts.Enqueuer,
		newScraper: opts.NewScraper,
		groups:     opts.Groups,
		maxRetries: opts.MaxRetries,
		retention:  opts.RetentionMonths,
		ahead:      opts.PartitionsAhead,
		logger:     opts.Logger,
	}
}

// HandleScrapeAll sweeps every catalog currency as a base against every
// other as a target, batching all observations into one write at the end.
func (o *Orchestrator) HandleScrapeAll(ctx context.Context, _ *asynq.Task) error {
	jobID := common.NewJobID("scrape_rates", time.Now())

	currencies, err := o.store.ListCurrencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load currencies: %w", err)
	}
	if len(currencies) == 0 {
		return fmt.Errorf("no currencies in catalog: %w", asynq.SkipRetry)
	}

	return o.runSweep(ctx, jobID, currencies, currencies)
}

// HandleScrapeGroup sweeps one named group of base currencies against the
// full catalog of targets.
func (o *Orchestrator) HandleScrapeGroup(ctx context.Context, t *asynq.Task) error {
	var payload ScrapeGroupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid group payload: %v: %w", err, asynq.SkipRetry)
	}

	codes, err := GroupCodes(o.groups, payload.Group)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	bases, err := o.store.ListCurrenciesByCodes(ctx, codes)
	if err != nil {
		return fmt.Errorf("failed to load group currencies: %w", err)
	}
	if len(bases) == 0 {
		return fmt.Errorf("no currencies found for group %s: %w", payload.Group, asynq.SkipRetry)
	}

	targets, err := o.store.ListCurrencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load currencies: %w", err)
	}

	jobID := common.NewJobID("scrape_"+payload.Group, time.Now())
	return o.runSweep(ctx, jobID, bases, targets)
}

// HandleScrapeSingle re-scrapes one base currency against the full catalog
// and writes its observations in one transaction. When every source fails
// the error escalates the worker's retry backoff.
func (o *Orchestrator) HandleScrapeSingle(ctx context.Context, t *asynq.Task) error {
	var payload ScrapeSinglePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid currency payload: %v: %w", err, asynq.SkipRetry)
	}

	base, err := o.store.GetCurrency(ctx, payload.CurrencyID)
	if errors.Is(err, postgres.ErrCurrencyNotFound) {
		return fmt.Errorf("currency %d not found: %w", payload.CurrencyID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to load currency %d: %w", payload.CurrencyID, err)
	}

	targets, err := o.store.ListCurrencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load currencies: %w", err)
	}

	result, err := o.newScraper().Scrape(ctx, scrapeRequest(*base, targets))
	if err != nil {
		return fmt.Errorf("failed to scrape %s: %w", base.Code, err)
	}

	batch := observations(*base, targets, result)
	if err := o.store.SaveRates(ctx, batch); err != nil {
		return fmt.Errorf("failed to save rates for %s: %w", base.Code, err)
	}

	o.logger.Info().Str("base", base.Code).Int("rates", len(batch)).Str("source", result.Source).Msg("Single currency scrape complete")
	return nil
}

// HandleCleanup invalidates the derived cache namespaces and runs the
// partition retention sweep.
func (o *Orchestrator) HandleCleanup(ctx context.Context, _ *asynq.Task) error {
	for _, pattern := range invalidationPatterns {
		if _, err := o.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", pattern, err)
		}
	}

	dropped, err := o.store.RetentionSweep(ctx, o.retention)
	if err != nil {
		return fmt.Errorf("retention sweep failed: %w", err)
	}

	o.logger.Info().Int("dropped_partitions", len(dropped)).Msg("Maintenance cleanup complete")
	return nil
}

// HandleCreatePartition pre-creates partitions for the upcoming months.
func (o *Orchestrator) HandleCreatePartition(ctx context.Context, _ *asynq.Task) error {
	if err := o.store.EnsureUpcomingPartitions(ctx, o.ahead); err != nil {
		return fmt.Errorf("failed to create partitions: %w", err)
	}
	return nil
}

// runSweep executes the failsafe for each base in turn, accumulating the
// whole job's observations into one batch written at the end. Failed bases
// are marked and, while retry budget remains, re-enqueued as single-currency
// tasks.
func (o *Orchestrator) runSweep(ctx context.Context, jobID string, bases, targets []models.Currency) error {
	if _, err := o.tracker.StartJob(ctx, jobID); err != nil {
		return err
	}

	scraper := o.newScraper()
	var batch []models.RateObservation

	for _, base := range bases {
		result, err := scraper.Scrape(ctx, scrapeRequest(base, targets))
		if err != nil {
			if ctx.Err() != nil {
				o.tracker.CompleteJob(context.WithoutCancel(ctx), jobID, models.JobStatusFailed)
				return ctx.Err()
			}

			o.logger.Warn().Err(err).Str("job_id", jobID).Str("base", base.Code).Msg("All sources failed for base currency")
			if err := o.tracker.MarkCurrencyFailed(ctx, jobID, base.Code); err != nil {
				o.logger.Warn().Err(err).Str("base", base.Code).Msg("Failed to record currency failure")
			}
			o.enqueueRetry(ctx, jobID, base)
			continue
		}

		batch = append(batch, observations(base, targets, result)...)
		if err := o.tracker.MarkCurrencyComplete(ctx, jobID, base.Code); err != nil {
			o.logger.Warn().Err(err).Str("base", base.Code).Msg("Failed to record currency completion")
		}
	}

	if err := o.store.SaveRates(ctx, batch); err != nil {
		o.tracker.CompleteJob(ctx, jobID, models.JobStatusFailed)
		return fmt.Errorf("failed to save job batch: %w", err)
	}

	if err := o.tracker.CompleteJob(ctx, jobID, models.JobStatusCompleted); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to finalise job record")
	}

	o.logger.Info().Str("job_id", jobID).Int("bases", len(bases)).Int("rates", len(batch)).Msg("Scraping job complete")
	return nil
}

// enqueueRetry schedules a delayed single-currency task while the base still
// has retry budget.
func (o *Orchestrator) enqueueRetry(ctx context.Context, jobID string, base models.Currency) {
	retry, err := o.tracker.ShouldRetryCurrency(ctx, jobID, base.Code, o.maxRetries)
	if err != nil {
		o.logger.Warn().Err(err).Str("base", base.Code).Msg("Failed to check retry budget")
		return
	}
	if !retry {
		o.logger.Warn().Str("base", base.Code).Str("job_id", jobID).Msg("Retry budget exhausted")
		return
	}

	task, err := NewScrapeSingleTask(base.ID)
	if err != nil {
		o.logger.Warn().Err(err).Str("base", base.Code).Msg("Failed to build retry task")
		return
	}
	if _, err := o.enqueuer.EnqueueContext(ctx, task, asynq.ProcessIn(RetryDelay)); err != nil {
		o.logger.Warn().Err(err).Str("base", base.Code).Msg("Failed to enqueue retry task")
		return
	}
	o.logger.Info().Str("base", base.Code).Str("delay", RetryDelay.String()).Msg("Scheduled single currency retry")
}

// scrapeRequest builds the failsafe request for one base, targeting every
// other catalog currency.
func scrapeRequest(base models.Currency, targets []models.Currency) scraping.Request {
	codes := make([]string, 0, len(targets))
	for _, t := range targets {
		if t.ID == base.ID {
			continue
		}
		codes = append(codes, t.Code)
	}
	return scraping.Request{
		BaseCode:       base.Code,
		BaseName:       base.Name,
		BaseNamePlural: base.NamePlural,
		TargetCodes:    codes,
	}
}

// observations converts a sweep result into upsert rows, skipping
// self-conversion and any target the result does not cover.
func observations(base models.Currency, targets []models.Currency, result *models.ScrapeResult) []models.RateObservation {
	rows := make([]models.RateObservation, 0, len(result.Rates))
	for _, target := range targets {
		if target.ID == base.ID {
			continue
		}
		rate, ok := result.Rates[target.Code]
		if !ok {
			continue
		}
		rows = append(rows, models.RateObservation{
			BaseCurrencyID:   base.ID,
			TargetCurrencyID: target.ID,
			Rate:             rate,
			Source:           result.Source,
			CreatedAt:        result.Timestamp,
		})
	}
	return rows
}
