package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/models"
	"github.com/koelfx/koel/internal/storage/postgres"
)

// runSeed loads the currency catalog file and upserts it into the database.
func runSeed(cfg *common.Config, logger arbor.ILogger) error {
	path := cfg.Scraper.CurrenciesFile
	if path == "" {
		path = "currencies.json"
	}

	currencies, err := loadCatalog(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SeedCurrencies(ctx, currencies)
}

// loadCatalog reads the JSON currency catalog. Entries without a name are
// skipped rather than rejected, so partial catalogs remain usable.
func loadCatalog(path string) ([]models.Currency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var raw []models.Currency
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	currencies := raw[:0]
	for _, c := range raw {
		if c.Name == "" || c.Code == "" {
			continue
		}
		currencies = append(currencies, c)
	}
	if len(currencies) == 0 {
		return nil, fmt.Errorf("catalog %s contains no usable currencies", path)
	}
	return currencies, nil
}
