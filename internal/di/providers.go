package di

import (
	"fmt"
	"time"

	"CtxWeights/internal/domain/repository"
	"CtxWeights/internal/engine"
	"CtxWeights/internal/handler/api"
	internalrepo "CtxWeights/internal/repository"
	"CtxWeights/internal/snapshot"
	"CtxWeights/internal/usecase"
	pkgcache "CtxWeights/pkg/cache"
	pkgch "CtxWeights/pkg/clickhouse"
	"CtxWeights/pkg/config"
	xhttp "CtxWeights/pkg/http"
	pkgkafka "CtxWeights/pkg/kafka"
	applogger "CtxWeights/pkg/logger"
	"CtxWeights/pkg/metrics"
	"CtxWeights/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCalendarSource creates the ClickHouse calendar source.
func ProvideCalendarSource(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.CalendarSource, error) {
	src, err := internalrepo.NewCHCalendarSource(ch, cfg.Tables.Calendar)
	if err != nil {
		return nil, err
	}
	src.SetLogger(l)
	return src, nil
}

// ProvidePriceSource creates the ClickHouse price source.
func ProvidePriceSource(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.PriceSource, error) {
	src, err := internalrepo.NewCHPriceSource(ch, internalrepo.PriceTables{
		HistoryTable: cfg.Tables.MarketHistory,
		RatesPrefix:  cfg.Tables.RatesPrefix,
	})
	if err != nil {
		return nil, err
	}
	src.SetLogger(l)
	return src, nil
}

// ProvideAlerting creates the alert sink, owning a Kafka producer when
// alerting is enabled.
func ProvideAlerting(cfg *config.Config, l *applogger.Logger) (*internalrepo.Alerting, error) {
	if !cfg.Alerts.Enabled {
		return internalrepo.NewAlerting(internalrepo.NoopAlertSink{}, nil), nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Alerts.Brokers),
		pkgkafka.WithCompression(cfg.Alerts.Compression),
		pkgkafka.WithRequiredAcks(cfg.Alerts.RequiredAcks),
	)
	if err != nil {
		return nil, fmt.Errorf("alert producer: %w", err)
	}
	sink := internalrepo.NewKafkaAlertSink(producer, cfg.Alerts.Topic, l)

	// Aggregated error logs ship to the same monitoring topic.
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Alerts.Topic,
		Publisher:      internalrepo.NewLogPublisher(producer),
	})

	return internalrepo.NewAlerting(sink, producer), nil
}

// ProvideAlertSink exposes the sink interface from the bundle.
func ProvideAlertSink(a *internalrepo.Alerting) repository.AlertSink {
	return a.Sink
}

// ProvideCacheService creates the response cache, or nil when disabled.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if cfg.Cache.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
			pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			pkgcache.WithRedisPrefix("ctxweights"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return pkgcache.NewLayeredCache(rc), nil
	}
	return pkgcache.NewMemoryCache(), nil
}

// ProvideBuilder creates the snapshot builder.
func ProvideBuilder(cal repository.CalendarSource, prices repository.PriceSource, cfg *config.Config, l *applogger.Logger) *snapshot.Builder {
	return snapshot.NewBuilder(cal, prices, snapshot.Config{
		Instruments:       cfg.Snapshot.Instruments,
		Thresholds:        cfg.Snapshot.Thresholds,
		DefaultThreshold:  cfg.Snapshot.DefaultThreshold,
		ShortWindow:       cfg.Snapshot.ShortWindow,
		LongWindow:        cfg.Snapshot.LongWindow,
		CalendarThreshold: cfg.Snapshot.CalendarThreshold,
		ShiftWindow:       cfg.Snapshot.ShiftWindow,
	}, l)
}

// ProvideManager creates the snapshot lifecycle manager.
func ProvideManager(b *snapshot.Builder, cfg *config.Config, l *applogger.Logger, alerts repository.AlertSink, m repository.Metrics) *snapshot.Manager {
	return snapshot.NewManager(b, cfg.Snapshot.RefreshInterval, l, alerts, m)
}

// ProvideEngine creates the query engine.
func ProvideEngine(cfg *config.Config) *engine.Engine {
	return engine.New(engine.Config{
		ShiftWindow:   cfg.Snapshot.ShiftWindow,
		Modifications: cfg.Snapshot.Modifications,
	})
}

// ProvideWeightsUseCase creates the weights query usecase.
func ProvideWeightsUseCase(m *snapshot.Manager, e *engine.Engine, cache pkgcache.Service, cfg *config.Config, metrics repository.Metrics, l *applogger.Logger) *usecase.WeightsUseCase {
	return usecase.NewWeightsUseCase(m, e, cache, cfg.Cache.TTL, metrics, l)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *applogger.Logger, uc *usecase.WeightsUseCase, cal repository.CalendarSource, prices repository.PriceSource, cfg *config.Config) xhttp.Handler {
	return api.NewWeightsEchoHandler(l, uc, cal, prices, cfg.Snapshot.Instruments)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	manager *snapshot.Manager,
	handler xhttp.Handler,
	ch *pkgch.Client,
	alerting *internalrepo.Alerting,
	cache pkgcache.Service,
	l *applogger.Logger,
) *server.App {
	return server.New(cfg, manager, handler, ch, alerting, cache, l)
}
