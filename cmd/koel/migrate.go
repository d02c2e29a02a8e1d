package main

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/storage/postgres"
)

// runMigrate applies the embedded schema migrations and exits.
func runMigrate(cfg *common.Config, logger arbor.ILogger) error {
	store, err := postgres.Open(context.Background(), cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Migrate()
}
