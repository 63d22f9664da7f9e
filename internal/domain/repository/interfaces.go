package repository

import (
	"context"

	"CtxWeights/internal/domain/models"
)

// CalendarSource is the bulk calendar/event feed, pulled at build time only.
type CalendarSource interface {
	LoadCalendar(ctx context.Context) ([]models.CalendarRow, error)
	Health(ctx context.Context) error
}

// PriceSource is the bulk price feed, pulled at build time only.
type PriceSource interface {
	// LoadHistory returns the close series for one instrument column of the
	// shared market history table, ordered by time ascending.
	LoadHistory(ctx context.Context, instrument string) ([]models.PriceRow, error)
	// LoadCandles returns the full candle set for one instrument at one
	// granularity, ordered by time ascending.
	LoadCandles(ctx context.Context, instrument string, g Granularity) ([]models.Candle, error)
	Health(ctx context.Context) error
}

// AlertSink receives build failures and rebuild summaries for external
// monitoring. Implemented by the Kafka publisher; a no-op is used when
// alerting is disabled.
type AlertSink interface {
	ReportFailure(ctx context.Context, stage string, err error)
	ReportRebuild(ctx context.Context, summary map[string]interface{})
}

type Metrics interface {
	RecordQuery(outcome string)
	RecordQueryLatency(seconds float64)
	RecordRebuild(status string)
	RecordSnapshotStats(observations, contexts, codes int)
	RecordCacheHit(hit bool)
}
