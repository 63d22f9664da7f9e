package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CtxWeights/internal/domain/models"
	pkgch "CtxWeights/pkg/clickhouse"
	applogger "CtxWeights/pkg/logger"
)

// CHCalendarSource implements CalendarSource backed by ClickHouse. Actual,
// forecast and previous are nullable in the feed and stay nil-able in the
// model so classification can tell missing from zero.
type CHCalendarSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCalendarSource(ch *pkgch.Client, table string) (*CHCalendarSource, error) {
	if err := validIdent(table); err != nil {
		return nil, fmt.Errorf("calendar table: %w", err)
	}
	return &CHCalendarSource{db: ch.DB(), table: table}, nil
}

// SetLogger injects a structured logger.
func (s *CHCalendarSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCalendarSource) LoadCalendar(ctx context.Context) ([]models.CalendarRow, error) {
	start := time.Now()
	const qtpl = `
        SELECT event_id, event_time, importance, actual, forecast, previous
        FROM %s
        ORDER BY event_time ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_calendar query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	defer rows.Close()

	out := make([]models.CalendarRow, 0, 1024)
	for rows.Next() {
		var (
			r                          models.CalendarRow
			actual, forecast, previous sql.NullFloat64
		)
		if err := rows.Scan(&r.EventID, &r.Time, &r.Importance, &actual, &forecast, &previous); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse load_calendar scan error",
					applogger.String("table", s.table),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan calendar row: %w", err)
		}
		// Driver sessions may return zoned timestamps; snapshot lookups
		// key on UTC instants.
		r.Time = r.Time.UTC()
		r.Actual = nullableFloat(actual)
		r.Forecast = nullableFloat(forecast)
		r.Previous = nullableFloat(previous)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_calendar rows error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse load_calendar ok",
			applogger.String("table", s.table),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHCalendarSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// validIdent restricts table and column names to what the configuration
// is allowed to pick, since identifiers cannot be bound as parameters.
func validIdent(s string) error {
	if s == "" {
		return fmt.Errorf("empty identifier")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return fmt.Errorf("invalid identifier %q", s)
		}
	}
	return nil
}
