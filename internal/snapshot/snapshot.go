// Package snapshot owns the immutable in-memory state served between
// rebuilds: classified observation histories, per-instrument price series
// with extremum sets, and the weight-code registry. A Snapshot is built
// fully off the query path and never mutated after Build returns.
package snapshot

import (
	"sort"
	"time"

	"CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
)

// HistKey identifies one (entity, context) pair.
type HistKey struct {
	Entity string
	Key    models.ContextKey
}

// ContextStats is the build-time aggregate for one context. Recurring is
// derived exactly once here; every consumer reads it and none recompute it.
type ContextStats struct {
	Count        int
	First        time.Time
	Last         time.Time
	AvgValue     float64
	AvgChange    float64
	AvgAbsChange float64
	Recurring    bool
}

// CandleMark is the minimal per-candle record the extremum component
// needs, sorted by time.
type CandleMark struct {
	Time time.Time
	Bull bool
}

// ExtremumSet holds timestamps where the series is a strict local
// extremum versus its two fixed-offset neighbors.
type ExtremumSet struct {
	Min map[time.Time]struct{}
	Max map[time.Time]struct{}
}

// PriceSeries is the queryable price state of one instrument at one
// granularity.
type PriceSeries struct {
	Indicator   map[time.Time]float64
	Candles     []CandleMark
	Ranges      map[time.Time]float64
	Sizes       map[time.Time]float64
	AvgRange    float64
	Percentiles map[int]float64 // body-size thresholds at 25/50/75/90
	Extremums   ExtremumSet
}

// PriceKey addresses one price series.
type PriceKey struct {
	Instrument  string
	Granularity domrepo.Granularity
}

// Snapshot is the aggregate root consumed by queries.
type Snapshot struct {
	History   map[HistKey][]time.Time // sorted ascending, frozen
	Index     map[HistKey]ContextStats
	ObsByTime map[time.Time][]models.Observation
	Prices    map[PriceKey]*PriceSeries
	Registry  []string // keyset order
	BuiltAt   time.Time

	Observations int
}

// PrevCandleTrend returns the bullish flag of the candle immediately
// preceding target, or false ok when no candle precedes it.
func (ps *PriceSeries) PrevCandleTrend(target time.Time) (bool, bool) {
	idx := sort.Search(len(ps.Candles), func(i int) bool {
		return !ps.Candles[i].Time.Before(target)
	})
	if idx == 0 {
		return false, false
	}
	return ps.Candles[idx-1].Bull, true
}

// HistoryBefore returns the context history strictly before target.
// The returned slice aliases frozen snapshot data and must not be mutated.
func (s *Snapshot) HistoryBefore(k HistKey, target time.Time) []time.Time {
	hist := s.History[k]
	idx := sort.Search(len(hist), func(i int) bool {
		return !hist[i].Before(target)
	})
	return hist[:idx]
}

// Series returns the price series for a key, or nil when that section
// failed to load or holds no data.
func (s *Snapshot) Series(k PriceKey) *PriceSeries {
	return s.Prices[k]
}
