package repository

import (
	"context"
	"time"

	domrepo "CtxWeights/internal/domain/repository"
	pkgkafka "CtxWeights/pkg/kafka"
	applogger "CtxWeights/pkg/logger"
)

// KafkaAlertSink publishes build failures and rebuild summaries to a
// monitoring topic. Publishing is best-effort: a broker outage must never
// affect the snapshot lifecycle, so errors are logged and dropped.
type KafkaAlertSink struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaAlertSink(p *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaAlertSink {
	return &KafkaAlertSink{producer: p, topic: topic, l: l}
}

func (s *KafkaAlertSink) ReportFailure(ctx context.Context, stage string, cause error) {
	payload := map[string]interface{}{
		"kind":  "failure",
		"stage": stage,
		"error": cause.Error(),
		"at":    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(stage), payload); err != nil {
		s.l.Error("alert publish failed",
			applogger.String("topic", s.topic),
			applogger.String("stage", stage),
			applogger.Error(err),
		)
	}
}

func (s *KafkaAlertSink) ReportRebuild(ctx context.Context, summary map[string]interface{}) {
	payload := map[string]interface{}{
		"kind":    "rebuild",
		"summary": summary,
		"at":      time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.producer.Publish(ctx, s.topic, []byte("rebuild"), payload); err != nil {
		s.l.Error("alert publish failed",
			applogger.String("topic", s.topic),
			applogger.Error(err),
		)
	}
}

// NoopAlertSink is used when alerting is disabled in configuration.
type NoopAlertSink struct{}

func (NoopAlertSink) ReportFailure(context.Context, string, error)          {}
func (NoopAlertSink) ReportRebuild(context.Context, map[string]interface{}) {}

// LogPublisher adapts the producer to the logger's aggregation collector,
// which batches repeated error logs onto the same monitoring topic.
type LogPublisher struct {
	p *pkgkafka.Producer
}

func NewLogPublisher(p *pkgkafka.Producer) *LogPublisher { return &LogPublisher{p: p} }

func (lp *LogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return lp.p.Publish(ctx, topic, nil, payload)
}

// Alerting bundles the sink with the producer it may own, so the
// application can close the producer on shutdown. With alerting disabled
// the producer is nil and the sink is a no-op.
type Alerting struct {
	Sink     domrepo.AlertSink
	producer *pkgkafka.Producer
}

func NewAlerting(sink domrepo.AlertSink, producer *pkgkafka.Producer) *Alerting {
	return &Alerting{Sink: sink, producer: producer}
}

func (a *Alerting) Close() error {
	if a.producer == nil {
		return nil
	}
	return a.producer.Close()
}
