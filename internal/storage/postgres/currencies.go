package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/koelfx/koel/internal/models"
)

// ErrCurrencyNotFound is returned when a lookup matches no catalog row.
var ErrCurrencyNotFound = errors.New("postgres: currency not found")

// ListCurrencies returns the full catalog ordered by code.
func (s *Store) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	var currencies []models.Currency
	err := s.db.SelectContext(ctx, &currencies,
		`SELECT id, code, name, COALESCE(name_plural, '') AS name_plural, symbol,
		        decimal_digits, COALESCE(icon, '') AS icon, created_at, updated_at
		 FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	return currencies, nil
}

// GetCurrency returns a single catalog row by ID.
func (s *Store) GetCurrency(ctx context.Context, id int) (*models.Currency, error) {
	var currency models.Currency
	err := s.db.GetContext(ctx, &currency,
		`SELECT id, code, name, COALESCE(name_plural, '') AS name_plural, symbol,
		        decimal_digits, COALESCE(icon, '') AS icon, created_at, updated_at
		 FROM currencies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCurrencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency %d: %w", id, err)
	}
	return &currency, nil
}

// ListCurrenciesByCodes returns catalog rows for the given codes. Unknown
// codes are silently absent from the result.
func (s *Store) ListCurrenciesByCodes(ctx context.Context, codes []string) ([]models.Currency, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(codes))
	for i, code := range codes {
		normalized[i] = models.NormalizeCode(code)
	}

	query, args, err := sqlx.In(
		`SELECT id, code, name, COALESCE(name_plural, '') AS name_plural, symbol,
		        decimal_digits, COALESCE(icon, '') AS icon, created_at, updated_at
		 FROM currencies WHERE code IN (?) ORDER BY code`, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to build currency query: %w", err)
	}

	var currencies []models.Currency
	if err := s.db.SelectContext(ctx, &currencies, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list currencies by code: %w", err)
	}
	return currencies, nil
}

// SeedCurrencies upserts catalog rows keyed by code. Existing rows are
// refreshed in place, so re-running the seeder is safe.
func (s *Store) SeedCurrencies(ctx context.Context, currencies []models.Currency) error {
	if len(currencies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO currencies (code, name, name_plural, symbol, decimal_digits, icon)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''))
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			name_plural = EXCLUDED.name_plural,
			symbol = EXCLUDED.symbol,
			decimal_digits = EXCLUDED.decimal_digits,
			icon = EXCLUDED.icon,
			updated_at = now()`

	for _, c := range currencies {
		code := models.NormalizeCode(c.Code)
		if _, err := tx.ExecContext(ctx, query,
			code, c.Name, c.NamePlural, c.Symbol, c.DecimalDigits, c.Icon); err != nil {
			return fmt.Errorf("failed to seed currency %s: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	s.logger.Info().Int("count", len(currencies)).Msg("Currency catalog seeded")
	return nil
}
