package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CtxWeights/internal/classify"
	"CtxWeights/internal/codec"
	"CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
	applogger "CtxWeights/pkg/logger"
)

// Config controls one build cycle.
type Config struct {
	Instruments       []string
	Thresholds        map[string]float64
	DefaultThreshold  float64
	ShortWindow       int
	LongWindow        int
	CalendarThreshold float64
	ShiftWindow       int
}

// Threshold returns the per-instrument classification threshold.
func (c Config) Threshold(instrument string) float64 {
	if t, ok := c.Thresholds[instrument]; ok {
		return t
	}
	return c.DefaultThreshold
}

// Builder assembles snapshots from the bulk sources. It is the only
// component that performs I/O; queries never touch the sources.
type Builder struct {
	cal    domrepo.CalendarSource
	prices domrepo.PriceSource
	cfg    Config
	log    *applogger.Logger
}

func NewBuilder(cal domrepo.CalendarSource, prices domrepo.PriceSource, cfg Config, log *applogger.Logger) *Builder {
	return &Builder{cal: cal, prices: prices, cfg: cfg, log: log}
}

// Build runs one full cycle. Each source load is isolated: a failed load
// logs and leaves its snapshot section empty. Build fails only when no
// section produced any data at all. Source timestamps are normalized to
// UTC on ingest; snapshot lookups key on time.Time, which compares
// location as well as instant.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap := &Snapshot{
		History:   make(map[HistKey][]time.Time),
		Index:     make(map[HistKey]ContextStats),
		ObsByTime: make(map[time.Time][]models.Observation),
		Prices:    make(map[PriceKey]*PriceSeries),
		BuiltAt:   start,
	}
	agg := make(map[HistKey]*ctxAgg)

	b.loadCalendar(ctx, snap, agg)
	b.loadMarket(ctx, snap, agg)
	b.loadPrices(ctx, snap)

	b.freeze(snap, agg)
	b.buildRegistry(snap)

	if snap.Observations == 0 && len(snap.Prices) == 0 {
		return nil, fmt.Errorf("build produced no usable data")
	}

	b.log.Info("snapshot built",
		applogger.Int("observations", snap.Observations),
		applogger.Int("contexts", len(snap.Index)),
		applogger.Int("weight_codes", len(snap.Registry)),
		applogger.Int("price_series", len(snap.Prices)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return snap, nil
}

type ctxAgg struct {
	count     int
	first     time.Time
	last      time.Time
	sumValue  float64
	sumChange float64
	sumAbs    float64
}

func (b *Builder) record(snap *Snapshot, agg map[HistKey]*ctxAgg, obs models.Observation, value, change float64, hasChange bool) {
	k := HistKey{Entity: obs.Entity, Key: obs.Key}
	snap.ObsByTime[obs.Time] = append(snap.ObsByTime[obs.Time], obs)
	snap.History[k] = append(snap.History[k], obs.Time)
	snap.Observations++

	a, ok := agg[k]
	if !ok {
		a = &ctxAgg{first: obs.Time}
		agg[k] = a
	}
	a.count++
	a.last = obs.Time
	a.sumValue += value
	if hasChange {
		a.sumChange += change
		if change < 0 {
			change = -change
		}
		a.sumAbs += change
	}
}

func (b *Builder) loadCalendar(ctx context.Context, snap *Snapshot, agg map[HistKey]*ctxAgg) {
	rows, err := b.cal.LoadCalendar(ctx)
	if err != nil {
		b.log.Error("calendar load failed, section left empty", applogger.Error(err))
		return
	}
	for _, row := range rows {
		key := classify.CalendarKey(row, b.cfg.CalendarThreshold)
		obs := models.Observation{
			Entity:     row.EventID,
			Time:       row.Time.UTC(),
			Key:        key,
			Importance: row.Importance,
		}
		var value, change float64
		hasChange := false
		if row.Actual != nil {
			value = *row.Actual
			if row.Previous != nil {
				change = *row.Actual - *row.Previous
				hasChange = true
			}
		}
		b.record(snap, agg, obs, value, change, hasChange)
	}
	b.log.Info("calendar loaded", applogger.Int("rows", len(rows)))
}

func (b *Builder) loadMarket(ctx context.Context, snap *Snapshot, agg map[HistKey]*ctxAgg) {
	for _, instr := range b.cfg.Instruments {
		rows, err := b.prices.LoadHistory(ctx, instr)
		if err != nil {
			b.log.Error("market history load failed, instrument skipped",
				applogger.String("instrument", instr), applogger.Error(err))
			continue
		}
		if len(rows) == 0 {
			b.log.Warn("no market history", applogger.String("instrument", instr))
			continue
		}
		series := make([]classify.Point, 0, len(rows))
		for _, r := range rows {
			series = append(series, classify.Point{Time: r.Time.UTC(), Value: r.Value})
		}
		classified := classify.Series(series, classify.Params{
			Threshold:   b.cfg.Threshold(instr),
			ShortWindow: b.cfg.ShortWindow,
			LongWindow:  b.cfg.LongWindow,
		})
		for _, c := range classified {
			obs := models.Observation{
				Entity:     instr,
				Time:       c.Time,
				Key:        c.Key,
				Importance: 3,
			}
			b.record(snap, agg, obs, c.Value, c.Change, c.HasChange)
		}
		b.log.Info("market history classified",
			applogger.String("instrument", instr), applogger.Int("rows", len(rows)))
	}
}

func (b *Builder) loadPrices(ctx context.Context, snap *Snapshot) {
	for _, instr := range b.cfg.Instruments {
		for _, g := range []domrepo.Granularity{domrepo.GranHourly, domrepo.GranDaily} {
			candles, err := b.prices.LoadCandles(ctx, instr, g)
			if err != nil {
				b.log.Error("candle load failed, series left empty",
					applogger.String("instrument", instr),
					applogger.Int("granularity", int(g)),
					applogger.Error(err))
				continue
			}
			if len(candles) == 0 {
				continue
			}
			snap.Prices[PriceKey{Instrument: instr, Granularity: g}] = buildSeries(candles, g.Unit())
		}
	}
}

// buildSeries assembles the queryable price state from sorted candles.
func buildSeries(candles []models.Candle, unit time.Duration) *PriceSeries {
	ps := &PriceSeries{
		Indicator:   make(map[time.Time]float64, len(candles)),
		Candles:     make([]CandleMark, 0, len(candles)),
		Ranges:      make(map[time.Time]float64, len(candles)),
		Sizes:       make(map[time.Time]float64, len(candles)),
		Percentiles: make(map[int]float64, 4),
		Extremums: ExtremumSet{
			Min: make(map[time.Time]struct{}),
			Max: make(map[time.Time]struct{}),
		},
	}

	highs := make(map[time.Time]float64, len(candles))
	lows := make(map[time.Time]float64, len(candles))
	sizes := make([]float64, 0, len(candles))
	var rangeSum float64

	for _, c := range candles {
		c.Time = c.Time.UTC()
		if c.HasIndicator {
			ps.Indicator[c.Time] = c.Indicator
		}
		ps.Candles = append(ps.Candles, CandleMark{Time: c.Time, Bull: c.Bullish()})
		rng := c.Range()
		ps.Ranges[c.Time] = rng
		rangeSum += rng
		highs[c.Time] = c.High
		lows[c.Time] = c.Low
		ps.Sizes[c.Time] = c.BodySize()
		sizes = append(sizes, c.BodySize())
	}
	ps.AvgRange = rangeSum / float64(len(candles))

	sort.Float64s(sizes)
	for _, pct := range []int{25, 50, 75, 90} {
		idx := len(sizes) * pct / 100
		if idx >= len(sizes) {
			idx = len(sizes) - 1
		}
		ps.Percentiles[pct] = sizes[idx]
	}

	// Strict 3-point extremum: both fixed-offset neighbors must exist and
	// be strictly dominated.
	for _, c := range candles {
		c.Time = c.Time.UTC()
		prev, prevOK := highs[c.Time.Add(-unit)]
		next, nextOK := highs[c.Time.Add(unit)]
		if prevOK && nextOK && c.High > prev && c.High > next {
			ps.Extremums.Max[c.Time] = struct{}{}
		}
		prevL, prevLOK := lows[c.Time.Add(-unit)]
		nextL, nextLOK := lows[c.Time.Add(unit)]
		if prevLOK && nextLOK && c.Low < prevL && c.Low < nextL {
			ps.Extremums.Min[c.Time] = struct{}{}
		}
	}
	return ps
}

// freeze sorts every history sequence and converts aggregates to the
// immutable index form, deriving the recurring flag once.
func (b *Builder) freeze(snap *Snapshot, agg map[HistKey]*ctxAgg) {
	for k := range snap.History {
		h := snap.History[k]
		sort.Slice(h, func(i, j int) bool { return h[i].Before(h[j]) })
	}
	for k, a := range agg {
		n := float64(a.count)
		snap.Index[k] = ContextStats{
			Count:        a.count,
			First:        a.first,
			Last:         a.last,
			AvgValue:     a.sumValue / n,
			AvgChange:    a.sumChange / n,
			AvgAbsChange: a.sumAbs / n,
			Recurring:    a.count >= 2,
		}
	}
}

// buildRegistry expands every context into its base codes, plus one
// shifted code per shift in the window when the context recurs.
func (b *Builder) buildRegistry(snap *Snapshot) {
	codes := make([]string, 0, len(snap.Index)*2)
	for k, stats := range snap.Index {
		for mode := models.ModeMagnitude; mode <= models.ModeExtremum; mode++ {
			codes = append(codes, codec.Encode(models.WeightKey{
				Entity: k.Entity, Key: k.Key, Mode: mode,
			}))
		}
		if !stats.Recurring {
			continue
		}
		for s := -b.cfg.ShiftWindow; s <= b.cfg.ShiftWindow; s++ {
			sh := s
			for mode := models.ModeMagnitude; mode <= models.ModeExtremum; mode++ {
				codes = append(codes, codec.Encode(models.WeightKey{
					Entity: k.Entity, Key: k.Key, Mode: mode, Shift: &sh,
				}))
			}
		}
	}
	codec.SortCodes(codes)
	snap.Registry = codes
}
