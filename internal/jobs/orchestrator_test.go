package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/models"
	"github.com/koelfx/koel/internal/scraping"
	"github.com/koelfx/koel/internal/storage/postgres"
)

type fakeStore struct {
	currencies []models.Currency
	saved      [][]models.RateObservation
	saveErr    error
	sweeps     []int
	dropped    []string
	ensured    []int
}

func (f *fakeStore) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	return f.currencies, nil
}

func (f *fakeStore) GetCurrency(ctx context.Context, id int) (*models.Currency, error) {
	for _, c := range f.currencies {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, postgres.ErrCurrencyNotFound
}

func (f *fakeStore) ListCurrenciesByCodes(ctx context.Context, codes []string) ([]models.Currency, error) {
	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		set[models.NormalizeCode(code)] = true
	}
	var out []models.Currency
	for _, c := range f.currencies {
		if set[c.Code] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveRates(ctx context.Context, rows []models.RateObservation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rows)
	return nil
}

func (f *fakeStore) EnsureUpcomingPartitions(ctx context.Context, monthsAhead int) error {
	f.ensured = append(f.ensured, monthsAhead)
	return nil
}

func (f *fakeStore) RetentionSweep(ctx context.Context, retentionMonths int) ([]string, error) {
	f.sweeps = append(f.sweeps, retentionMonths)
	return f.dropped, nil
}

type fakeTracker struct {
	started   []string
	completed map[string]string
	failed    []string
	done      []string
	budget    int
	asked     int
}

func (f *fakeTracker) StartJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	f.started = append(f.started, jobID)
	return &models.JobRecord{Status: models.JobStatusRunning}, nil
}

func (f *fakeTracker) MarkCurrencyComplete(ctx context.Context, jobID, code string) error {
	f.done = append(f.done, code)
	return nil
}

func (f *fakeTracker) MarkCurrencyFailed(ctx context.Context, jobID, code string) error {
	f.failed = append(f.failed, code)
	return nil
}

func (f *fakeTracker) ShouldRetryCurrency(ctx context.Context, jobID, code string, maxRetries int) (bool, error) {
	f.asked++
	return f.asked <= f.budget, nil
}

func (f *fakeTracker) CompleteJob(ctx context.Context, jobID, status string) error {
	if f.completed == nil {
		f.completed = make(map[string]string)
	}
	f.completed[jobID] = status
	return nil
}

type fakeInvalidator struct {
	patterns []string
}

func (f *fakeInvalidator) DeletePattern(ctx context.Context, pattern string) (int, error) {
	f.patterns = append(f.patterns, pattern)
	return 1, nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

// fakeScraper succeeds for every base except those listed in fail.
type fakeScraper struct {
	rates map[string]map[string]float64
	fail  map[string]bool
}

func (f *fakeScraper) Scrape(ctx context.Context, req scraping.Request) (*models.ScrapeResult, error) {
	if f.fail[req.BaseCode] {
		return nil, &scraping.AllSourcesFailedError{BaseCode: req.BaseCode}
	}
	return &models.ScrapeResult{
		Rates:     f.rates[req.BaseCode],
		Source:    "trading-economics",
		Timestamp: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}, nil
}

func catalog() []models.Currency {
	return []models.Currency{
		{ID: 1, Code: "USD", Name: "US Dollar", NamePlural: "US Dollars"},
		{ID: 2, Code: "EUR", Name: "Euro", NamePlural: "Euros"},
		{ID: 3, Code: "GBP", Name: "British Pound", NamePlural: "British Pounds"},
	}
}

func newTestOrchestrator(store *fakeStore, tracker *fakeTracker, scraper Scraper) (*Orchestrator, *fakeInvalidator, *fakeEnqueuer) {
	cache := &fakeInvalidator{}
	enqueuer := &fakeEnqueuer{}
	o := NewOrchestrator(Options{
		Store:           store,
		Tracker:         tracker,
		Cache:           cache,
		Enqueuer:        enqueuer,
		NewScraper:      func() Scraper { return scraper },
		Groups:          common.GroupsConfig{},
		MaxRetries:      3,
		RetentionMonths: 6,
		PartitionsAhead: 2,
		Logger:          common.GetLogger(),
	})
	return o, cache, enqueuer
}

func TestHandleScrapeAllBatchesAllBases(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	tracker := &fakeTracker{}
	scraper := &fakeScraper{rates: map[string]map[string]float64{
		"USD": {"EUR": 0.85, "GBP": 0.74},
		"EUR": {"USD": 1.17, "GBP": 0.87},
		"GBP": {"USD": 1.35, "EUR": 1.15},
	}}
	o, _, _ := newTestOrchestrator(store, tracker, scraper)

	err := o.HandleScrapeAll(context.Background(), NewScrapeAllTask())
	require.NoError(t, err)

	// One batched write covering every pair.
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 6)
	assert.ElementsMatch(t, []string{"USD", "EUR", "GBP"}, tracker.done)
	require.Len(t, tracker.started, 1)
	assert.Equal(t, models.JobStatusCompleted, tracker.completed[tracker.started[0]])
}

func TestHandleScrapeAllSkipsSelfConversion(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	tracker := &fakeTracker{}
	scraper := &fakeScraper{rates: map[string]map[string]float64{
		// A source echoing the base must not produce a self-pair row.
		"USD": {"USD": 1.0, "EUR": 0.85},
		"EUR": {"USD": 1.17},
		"GBP": {"USD": 1.35},
	}}
	o, _, _ := newTestOrchestrator(store, tracker, scraper)

	require.NoError(t, o.HandleScrapeAll(context.Background(), NewScrapeAllTask()))

	require.Len(t, store.saved, 1)
	for _, row := range store.saved[0] {
		assert.NotEqual(t, row.BaseCurrencyID, row.TargetCurrencyID)
	}
}

func TestHandleScrapeAllEmptyCatalogSkipsRetry(t *testing.T) {
	store := &fakeStore{}
	tracker := &fakeTracker{}
	o, _, _ := newTestOrchestrator(store, tracker, &fakeScraper{})

	err := o.HandleScrapeAll(context.Background(), NewScrapeAllTask())
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, tracker.started)
}

func TestHandleScrapeAllFailedBaseSchedulesRetry(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	tracker := &fakeTracker{budget: 3}
	scraper := &fakeScraper{
		rates: map[string]map[string]float64{
			"USD": {"EUR": 0.85, "GBP": 0.74},
			"GBP": {"USD": 1.35, "EUR": 1.15},
		},
		fail: map[string]bool{"EUR": true},
	}
	o, _, enqueuer := newTestOrchestrator(store, tracker, scraper)

	require.NoError(t, o.HandleScrapeAll(context.Background(), NewScrapeAllTask()))

	assert.Equal(t, []string{"EUR"}, tracker.failed)
	require.Len(t, enqueuer.tasks, 1)
	assert.Equal(t, TypeScrapeSingle, enqueuer.tasks[0].Type())

	// The job still completes; the failed base is simply absent from the batch.
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 4)
	assert.Equal(t, models.JobStatusCompleted, tracker.completed[tracker.started[0]])
}

func TestHandleScrapeAllRespectsRetryBudget(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	tracker := &fakeTracker{budget: 0}
	scraper := &fakeScraper{fail: map[string]bool{"USD": true, "EUR": true, "GBP": true}}
	o, _, enqueuer := newTestOrchestrator(store, tracker, scraper)

	require.NoError(t, o.HandleScrapeAll(context.Background(), NewScrapeAllTask()))
	assert.Empty(t, enqueuer.tasks)
}

func TestHandleScrapeGroupUnknownGroup(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	o, _, _ := newTestOrchestrator(store, &fakeTracker{}, &fakeScraper{})

	task, err := NewScrapeGroupTask("tertiary")
	require.NoError(t, err)

	err = o.HandleScrapeGroup(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleScrapeGroupSweepsOnlyGroupBases(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	tracker := &fakeTracker{}
	scraper := &fakeScraper{rates: map[string]map[string]float64{
		"USD": {"EUR": 0.85, "GBP": 0.74},
		"EUR": {"USD": 1.17, "GBP": 0.87},
		"GBP": {"USD": 1.35, "EUR": 1.15},
	}}
	o, _, _ := newTestOrchestrator(store, tracker, scraper)

	task, err := NewScrapeGroupTask(GroupPrimary)
	require.NoError(t, err)
	require.NoError(t, o.HandleScrapeGroup(context.Background(), task))

	// All three test currencies belong to the default primary group, so all
	// are swept as bases against the full catalog.
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 6)
	require.Len(t, tracker.started, 1)
	assert.Contains(t, tracker.started[0], "scrape_primary")
}

func TestHandleScrapeSingleUnknownCurrency(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	o, _, _ := newTestOrchestrator(store, &fakeTracker{}, &fakeScraper{})

	task, err := NewScrapeSingleTask(99)
	require.NoError(t, err)

	err = o.HandleScrapeSingle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleScrapeSingleSavesRates(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	scraper := &fakeScraper{rates: map[string]map[string]float64{
		"EUR": {"USD": 1.17, "GBP": 0.87},
	}}
	o, _, _ := newTestOrchestrator(store, &fakeTracker{}, scraper)

	task, err := NewScrapeSingleTask(2)
	require.NoError(t, err)
	require.NoError(t, o.HandleScrapeSingle(context.Background(), task))

	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 2)
	for _, row := range store.saved[0] {
		assert.Equal(t, 2, row.BaseCurrencyID)
		assert.Equal(t, "trading-economics", row.Source)
	}
}

func TestHandleScrapeSinglePropagatesAllSourcesFailed(t *testing.T) {
	store := &fakeStore{currencies: catalog()}
	scraper := &fakeScraper{fail: map[string]bool{"EUR": true}}
	o, _, _ := newTestOrchestrator(store, &fakeTracker{}, scraper)

	task, err := NewScrapeSingleTask(2)
	require.NoError(t, err)

	err = o.HandleScrapeSingle(context.Background(), task)
	var asfe *scraping.AllSourcesFailedError
	assert.ErrorAs(t, err, &asfe)
	assert.Empty(t, store.saved)
}

func TestHandleCleanupInvalidatesAndSweeps(t *testing.T) {
	store := &fakeStore{dropped: []string{"exchange_rates_2026_01"}}
	o, cache, _ := newTestOrchestrator(store, &fakeTracker{}, &fakeScraper{})

	require.NoError(t, o.HandleCleanup(context.Background(), NewCleanupTask()))

	assert.Equal(t, invalidationPatterns, cache.patterns)
	assert.Equal(t, []int{6}, store.sweeps)
}

func TestHandleCreatePartition(t *testing.T) {
	store := &fakeStore{}
	o, _, _ := newTestOrchestrator(store, &fakeTracker{}, &fakeScraper{})

	require.NoError(t, o.HandleCreatePartition(context.Background(), NewCreatePartitionTask()))
	assert.Equal(t, []int{2}, store.ensured)
}

func TestRunSweepSaveFailureMarksJobFailed(t *testing.T) {
	store := &fakeStore{currencies: catalog(), saveErr: errors.New("connection reset")}
	tracker := &fakeTracker{}
	scraper := &fakeScraper{rates: map[string]map[string]float64{
		"USD": {"EUR": 0.85},
		"EUR": {"USD": 1.17},
		"GBP": {"USD": 1.35},
	}}
	o, _, _ := newTestOrchestrator(store, tracker, scraper)

	err := o.HandleScrapeAll(context.Background(), NewScrapeAllTask())
	require.Error(t, err)
	assert.Equal(t, models.JobStatusFailed, tracker.completed[tracker.started[0]])
}
