package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
	pkgch "CtxWeights/pkg/clickhouse"
	applogger "CtxWeights/pkg/logger"
)

// PriceTables names the ClickHouse tables one price source reads: the
// wide market history table with one close column per instrument, and the
// per-instrument rates tables, where the daily variant carries a suffix.
type PriceTables struct {
	HistoryTable string
	RatesPrefix  string
}

// CHPriceSource implements PriceSource backed by ClickHouse.
type CHPriceSource struct {
	db     *sql.DB
	tables PriceTables
	l      *applogger.Logger
}

func NewCHPriceSource(ch *pkgch.Client, tables PriceTables) (*CHPriceSource, error) {
	if err := validIdent(tables.HistoryTable); err != nil {
		return nil, fmt.Errorf("history table: %w", err)
	}
	if err := validIdent(tables.RatesPrefix); err != nil {
		return nil, fmt.Errorf("rates prefix: %w", err)
	}
	return &CHPriceSource{db: ch.DB(), tables: tables}, nil
}

// SetLogger injects a structured logger.
func (s *CHPriceSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceSource) LoadHistory(ctx context.Context, instrument string) ([]models.PriceRow, error) {
	start := time.Now()
	col := strings.ToLower(instrument)
	if err := validIdent(col); err != nil {
		return nil, fmt.Errorf("instrument column: %w", err)
	}
	const qtpl = `
        SELECT event_time, %s
        FROM %s
        WHERE %s IS NOT NULL
        ORDER BY event_time ASC
    `
	q := fmt.Sprintf(qtpl, col, s.tables.HistoryTable, col)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_history query error",
				applogger.String("table", s.tables.HistoryTable),
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceRow, 0, 4096)
	for rows.Next() {
		var r models.PriceRow
		if err := rows.Scan(&r.Time, &r.Value); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse load_history scan error",
					applogger.String("table", s.tables.HistoryTable),
					applogger.String("instrument", instrument),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		r.Time = r.Time.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_history rows error",
				applogger.String("table", s.tables.HistoryTable),
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse load_history ok",
			applogger.String("table", s.tables.HistoryTable),
			applogger.String("instrument", instrument),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPriceSource) LoadCandles(ctx context.Context, instrument string, g domrepo.Granularity) ([]models.Candle, error) {
	start := time.Now()
	table := s.tables.RatesPrefix + strings.ToLower(instrument) + g.Suffix()
	if err := validIdent(table); err != nil {
		return nil, fmt.Errorf("rates table: %w", err)
	}
	const qtpl = `
        SELECT bucket, open, close, high, low, indicator
        FROM %s
        ORDER BY bucket ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_candles query error",
				applogger.String("table", table),
				applogger.String("instrument", instrument),
				applogger.Int("granularity", int(g)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 4096)
	for rows.Next() {
		var (
			c   models.Candle
			ind sql.NullFloat64
		)
		if err := rows.Scan(&c.Time, &c.Open, &c.Close, &c.High, &c.Low, &ind); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse load_candles scan error",
					applogger.String("table", table),
					applogger.String("instrument", instrument),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Time = c.Time.UTC()
		if ind.Valid {
			c.Indicator = ind.Float64
			c.HasIndicator = true
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_candles rows error",
				applogger.String("table", table),
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse load_candles ok",
			applogger.String("table", table),
			applogger.String("instrument", instrument),
			applogger.Int("granularity", int(g)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPriceSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
