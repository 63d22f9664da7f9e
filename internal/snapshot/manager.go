package snapshot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	domrepo "CtxWeights/internal/domain/repository"
	applogger "CtxWeights/pkg/logger"
)

// Manager owns the single published Snapshot reference. Readers call
// Current without synchronization; the only synchronization point is the
// atomic pointer swap on publish. A failed rebuild keeps the previous
// snapshot published.
type Manager struct {
	builder  *Builder
	interval time.Duration
	log      *applogger.Logger
	alerts   domrepo.AlertSink
	metrics  domrepo.Metrics

	current atomic.Pointer[Snapshot]
}

func NewManager(b *Builder, interval time.Duration, log *applogger.Logger, alerts domrepo.AlertSink, metrics domrepo.Metrics) *Manager {
	return &Manager{builder: b, interval: interval, log: log, alerts: alerts, metrics: metrics}
}

// Current returns the published snapshot, or nil before the first build.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// Ready reports whether a snapshot has been published.
func (m *Manager) Ready() bool {
	return m.current.Load() != nil
}

// Start runs the first build synchronously, then launches the periodic
// rebuild loop. The loop stops when ctx is cancelled, so shutdown is
// deterministic. Start returns an error only when the first build fails;
// the service has nothing to serve in that case.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.rebuild(ctx); err != nil {
		return fmt.Errorf("initial snapshot build: %w", err)
	}
	go m.loop(ctx)
	return nil
}

func (m *Manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("snapshot refresh loop stopped")
			return
		case <-ticker.C:
			if err := m.rebuild(ctx); err != nil {
				m.log.Error("scheduled rebuild failed, serving stale snapshot", applogger.Error(err))
				m.alerts.ReportFailure(ctx, "rebuild", err)
			}
		}
	}
}

// rebuild performs one build-and-swap cycle.
func (m *Manager) rebuild(ctx context.Context) error {
	start := time.Now()
	snap, err := m.builder.Build(ctx)
	if err != nil {
		m.metrics.RecordRebuild("failed")
		return err
	}
	m.current.Store(snap)
	m.metrics.RecordRebuild("ok")
	m.metrics.RecordSnapshotStats(snap.Observations, len(snap.Index), len(snap.Registry))
	m.alerts.ReportRebuild(ctx, map[string]interface{}{
		"observations": snap.Observations,
		"contexts":     len(snap.Index),
		"weight_codes": len(snap.Registry),
		"duration_ms":  time.Since(start).Milliseconds(),
		"built_at":     snap.BuiltAt.UTC().Format(time.RFC3339),
	})
	return nil
}
