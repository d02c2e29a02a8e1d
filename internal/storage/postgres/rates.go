package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/koelfx/koel/internal/models"
)

// upsertRates emits one multi-row upsert for the given observations. It never
// owns the session: callers decide whether ext is a plain pool handle or a
// transaction. A conflict on (base, target, created_at) refreshes rate and
// source, so re-delivered jobs do not duplicate rows.
func upsertRates(ctx context.Context, ext sqlx.ExtContext, rows []models.RateObservation) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO exchange_rates
		(base_currency_id, target_currency_id, rate, source, created_at) VALUES `)

	args := make([]interface{}, 0, len(rows)*5)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, row.BaseCurrencyID, row.TargetCurrencyID, row.Rate, row.Source, row.CreatedAt)
	}

	sb.WriteString(` ON CONFLICT (base_currency_id, target_currency_id, created_at)
		DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source`)

	if _, err := ext.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert %d exchange rates: %w", len(rows), err)
	}
	return nil
}

// SaveRates writes the observations in a single transaction.
func (s *Store) SaveRates(ctx context.Context, rows []models.RateObservation) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rate transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertRates(ctx, tx, rows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rate transaction: %w", err)
	}

	s.logger.Debug().Int("rows", len(rows)).Msg("Exchange rates saved")
	return nil
}

// SaveRatesIn writes the observations on an existing transaction, for jobs
// that batch multiple bases into one session.
func (s *Store) SaveRatesIn(ctx context.Context, tx *sqlx.Tx, rows []models.RateObservation) error {
	return upsertRates(ctx, tx, rows)
}
