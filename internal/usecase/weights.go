package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CtxWeights/internal/codec"
	"CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
	"CtxWeights/internal/engine"
	"CtxWeights/internal/snapshot"
	pkgcache "CtxWeights/pkg/cache"
	applogger "CtxWeights/pkg/logger"
)

// ErrNotReady is returned before the first snapshot has been published.
var ErrNotReady = errors.New("snapshot not built yet")

// WeightsUseCase serves every weight query against the currently
// published snapshot. Responses are cached keyed by full parameters plus
// the snapshot build time, so a rebuild invalidates implicitly.
type WeightsUseCase struct {
	manager *snapshot.Manager
	engine  *engine.Engine
	cache   pkgcache.Service // nil disables response caching
	ttl     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewWeightsUseCase(m *snapshot.Manager, e *engine.Engine, cache pkgcache.Service, ttl time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *WeightsUseCase {
	return &WeightsUseCase{manager: m, engine: e, cache: cache, ttl: ttl, metrics: metrics, l: l}
}

// Values computes the weight map for one target date.
func (uc *WeightsUseCase) Values(ctx context.Context, p models.ValuesRequest) (map[string]float64, error) {
	snap := uc.manager.Current()
	if snap == nil {
		return nil, ErrNotReady
	}
	g := domrepo.NormalizeGranularity(p.Day)

	key := pkgcache.GenerateKeyWithParams("values",
		p.Instrument, p.Day, p.Date, p.Type, p.Var, snap.BuiltAt.UnixNano())
	if uc.cache != nil {
		var cached map[string]float64
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			uc.metrics.RecordCacheHit(true)
			uc.metrics.RecordQuery("ok")
			return cached, nil
		}
		uc.metrics.RecordCacheHit(false)
	}

	start := time.Now()
	out, err := uc.engine.Query(snap, p.Instrument, g, p.Date, p.Type, p.Var)
	uc.metrics.RecordQueryLatency(time.Since(start).Seconds())
	if err != nil {
		if _, ok := engine.AsInputError(err); ok {
			uc.metrics.RecordQuery("invalid")
		} else {
			uc.metrics.RecordQuery("error")
		}
		return nil, err
	}
	uc.metrics.RecordQuery("ok")

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, out, uc.ttl); err != nil {
			uc.l.Warn("response cache set failed", applogger.Error(err))
		}
	}
	return out, nil
}

// WeightsResult is the full registry listing.
type WeightsResult struct {
	Total   int      `json:"total"`
	Weights []string `json:"weights"`
}

// Weights returns every known weight code in keyset order.
func (uc *WeightsUseCase) Weights(_ context.Context) (*WeightsResult, error) {
	snap := uc.manager.Current()
	if snap == nil {
		return nil, ErrNotReady
	}
	return &WeightsResult{Total: len(snap.Registry), Weights: snap.Registry}, nil
}

// WeightsAfter returns the registry codes strictly after the cursor code,
// in keyset order. An undecodable cursor is a client input error.
func (uc *WeightsUseCase) WeightsAfter(_ context.Context, code string) (*WeightsResult, error) {
	snap := uc.manager.Current()
	if snap == nil {
		return nil, ErrNotReady
	}
	page, err := codec.After(snap.Registry, code)
	if err != nil {
		return nil, engine.NewInputError(fmt.Sprintf("invalid weight code: %v", err))
	}
	return &WeightsResult{Total: len(page), Weights: page}, nil
}

// Meta describes the currently published snapshot.
type Meta struct {
	Ready        bool      `json:"ready"`
	BuiltAt      time.Time `json:"built_at,omitempty"`
	Observations int       `json:"observations"`
	Contexts     int       `json:"contexts"`
	WeightCodes  int       `json:"weight_codes"`
	PriceSeries  int       `json:"price_series"`
}

// Metadata reports readiness and snapshot statistics.
func (uc *WeightsUseCase) Metadata(_ context.Context) *Meta {
	snap := uc.manager.Current()
	if snap == nil {
		return &Meta{Ready: false}
	}
	return &Meta{
		Ready:        true,
		BuiltAt:      snap.BuiltAt,
		Observations: snap.Observations,
		Contexts:     len(snap.Index),
		WeightCodes:  len(snap.Registry),
		PriceSeries:  len(snap.Prices),
	}
}
