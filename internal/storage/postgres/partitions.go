package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"
)

// retentionDaysPerMonth approximates one month of retention. The sweep keeps
// any partition whose range starts within retentionMonths * 30 days.
const retentionDaysPerMonth = 30

var partitionNameRe = regexp.MustCompile(`^exchange_rates_(\d{4})_(\d{2})$`)

// PartitionName returns the child table name for the month containing t.
func PartitionName(t time.Time) string {
	return fmt.Sprintf("exchange_rates_%04d_%02d", t.UTC().Year(), int(t.UTC().Month()))
}

// PartitionRange returns the half-open [start, end) bounds for the month
// containing t.
func PartitionRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ParsePartitionMonth extracts the month start from a partition table name.
// The second return is false when the name does not follow the convention.
func ParsePartitionMonth(name string) (time.Time, bool) {
	m := partitionNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006_01", m[1]+"_"+m[2])
	if err != nil || t.Month() == 0 {
		return time.Time{}, false
	}
	return t, true
}

// CreateMonthPartition creates the child table for the month containing t.
// Returns true when a table was created, false when it already existed.
func (s *Store) CreateMonthPartition(ctx context.Context, t time.Time) (bool, error) {
	name := PartitionName(t)

	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)`, name)
	if err != nil {
		return false, fmt.Errorf("failed to check partition %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	start, end := PartitionRange(t)
	query := fmt.Sprintf(
		`CREATE TABLE %s PARTITION OF exchange_rates FOR VALUES FROM ('%s') TO ('%s')`,
		pq.QuoteIdentifier(name),
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return false, fmt.Errorf("failed to create partition %s: %w", name, err)
	}

	s.logger.Info().Str("partition", name).Msg("Created exchange rate partition")
	return true, nil
}

// EnsureUpcomingPartitions creates partitions for the current month and
// monthsAhead following months.
func (s *Store) EnsureUpcomingPartitions(ctx context.Context, monthsAhead int) error {
	return s.ensureUpcomingPartitionsAt(ctx, time.Now().UTC(), monthsAhead)
}

func (s *Store) ensureUpcomingPartitionsAt(ctx context.Context, now time.Time, monthsAhead int) error {
	// Anchor to the first of the month before stepping: AddDate on a late
	// day-of-month (Jan 31 + 1 month = Mar 2) would skip short months.
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= monthsAhead; i++ {
		if _, err := s.CreateMonthPartition(ctx, start.AddDate(0, i, 0)); err != nil {
			return err
		}
	}
	return nil
}

// RetentionSweep drops partitions whose month started before the retention
// window and runs VACUUM ANALYZE on everything that survives, plus the parent
// table and the currency catalog. Returns the dropped table names.
func (s *Store) RetentionSweep(ctx context.Context, retentionMonths int) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		`SELECT tablename FROM pg_tables
		 WHERE schemaname = 'public' AND tablename LIKE 'exchange_rates_%'
		 ORDER BY tablename`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionMonths*retentionDaysPerMonth)

	var dropped, kept []string
	for _, name := range names {
		start, ok := ParsePartitionMonth(name)
		if !ok {
			continue
		}
		if start.Before(cutoff) {
			query := fmt.Sprintf("DROP TABLE %s", pq.QuoteIdentifier(name))
			if _, err := s.db.ExecContext(ctx, query); err != nil {
				return dropped, fmt.Errorf("failed to drop partition %s: %w", name, err)
			}
			s.logger.Info().Str("partition", name).Msg("Dropped expired exchange rate partition")
			dropped = append(dropped, name)
			continue
		}
		kept = append(kept, name)
	}

	vacuumTargets := append(kept, "exchange_rates", "currencies")
	for _, table := range vacuumTargets {
		query := fmt.Sprintf("VACUUM ANALYZE %s", pq.QuoteIdentifier(table))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return dropped, fmt.Errorf("failed to vacuum %s: %w", table, err)
		}
	}

	s.logger.Info().Int("dropped", len(dropped)).Int("kept", len(kept)).Msg("Retention sweep complete")
	return dropped, nil
}
