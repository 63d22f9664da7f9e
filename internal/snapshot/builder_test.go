package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
	applogger "CtxWeights/pkg/logger"
)

type fakeCalendar struct {
	rows []models.CalendarRow
	err  error
}

func (f *fakeCalendar) LoadCalendar(context.Context) ([]models.CalendarRow, error) {
	return f.rows, f.err
}
func (f *fakeCalendar) Health(context.Context) error { return f.err }

type fakePrices struct {
	history map[string][]models.PriceRow
	candles map[PriceKey][]models.Candle
	err     error
}

func (f *fakePrices) LoadHistory(_ context.Context, instrument string) ([]models.PriceRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history[instrument], nil
}

func (f *fakePrices) LoadCandles(_ context.Context, instrument string, g domrepo.Granularity) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[PriceKey{Instrument: instrument, Granularity: g}], nil
}
func (f *fakePrices) Health(context.Context) error { return f.err }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testConfig() Config {
	return Config{
		Instruments:       []string{"EURUSD"},
		Thresholds:        map[string]float64{"EURUSD": 0.0003},
		DefaultThreshold:  0.001,
		ShortWindow:       2,
		LongWindow:        3,
		CalendarThreshold: 0.001,
		ShiftWindow:       12,
	}
}

func hourly(base time.Time, vals ...float64) []models.PriceRow {
	out := make([]models.PriceRow, 0, len(vals))
	for i, v := range vals {
		out = append(out, models.PriceRow{Time: base.Add(time.Duration(i) * time.Hour), Value: v})
	}
	return out
}

func TestBuildClassifiesMarketHistory(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := &fakePrices{
		history: map[string][]models.PriceRow{
			"EURUSD": hourly(base, 1.0, 1.1, 1.2, 1.3),
		},
		candles: map[PriceKey][]models.Candle{},
	}
	b := NewBuilder(&fakeCalendar{}, prices, testConfig(), testLogger(t))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.Observations != 4 {
		t.Fatalf("expected 4 observations, got %d", snap.Observations)
	}
	if len(snap.ObsByTime[base]) != 1 {
		t.Fatalf("missing observation at %v", base)
	}

	// Repeated UP/ABOVE/UP steps must index as one recurring context.
	recurring := 0
	for _, stats := range snap.Index {
		if stats.Recurring {
			recurring++
			if stats.Count < 2 {
				t.Fatalf("recurring flag with count %d", stats.Count)
			}
		}
	}
	if recurring == 0 {
		t.Fatalf("expected at least one recurring context")
	}
}

func TestBuildIsolatesCalendarFailure(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := &fakePrices{
		history: map[string][]models.PriceRow{"EURUSD": hourly(base, 1.0, 1.1)},
		candles: map[PriceKey][]models.Candle{},
	}
	cal := &fakeCalendar{err: errors.New("source down")}
	b := NewBuilder(cal, prices, testConfig(), testLogger(t))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("calendar failure must not abort the build: %v", err)
	}
	if snap.Observations != 2 {
		t.Fatalf("market section should still load, got %d observations", snap.Observations)
	}
}

func TestBuildFailsWithNoDataAtAll(t *testing.T) {
	cal := &fakeCalendar{err: errors.New("down")}
	prices := &fakePrices{err: errors.New("down")}
	b := NewBuilder(cal, prices, testConfig(), testLogger(t))

	if _, err := b.Build(context.Background()); err == nil {
		t.Fatalf("expected build error with every section empty")
	}
}

func TestBuildCalendarObservations(t *testing.T) {
	at := time.Date(2025, 2, 1, 13, 0, 0, 0, time.UTC)
	actual, forecast, prev := 105.0, 100.0, 90.0
	cal := &fakeCalendar{rows: []models.CalendarRow{
		{EventID: "301", Time: at, Importance: 2, Actual: &actual, Forecast: &forecast, Previous: &prev},
		{EventID: "301", Time: at.Add(24 * time.Hour), Importance: 2, Actual: &actual, Forecast: &forecast, Previous: &prev},
	}}
	b := NewBuilder(cal, &fakePrices{candles: map[PriceKey][]models.Candle{}}, testConfig(), testLogger(t))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	key := HistKey{Entity: "301", Key: models.ContextKey{
		Change: models.DirUp, Trend: models.DirUp, Momentum: models.DirUp,
	}}
	stats, ok := snap.Index[key]
	if !ok {
		t.Fatalf("missing calendar context, index: %v", snap.Index)
	}
	if !stats.Recurring || stats.Count != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.AvgChange != actual-prev {
		t.Fatalf("avg change got %v", stats.AvgChange)
	}
}

func candleAt(ts time.Time, high, low float64) models.Candle {
	return models.Candle{Time: ts, Open: 1, Close: 2, High: high, Low: low, Indicator: 0.5, HasIndicator: true}
}

func TestBuildExtremumSets(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	key := PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}
	prices := &fakePrices{
		history: map[string][]models.PriceRow{},
		candles: map[PriceKey][]models.Candle{key: {
			candleAt(base, 5, 4),
			candleAt(base.Add(time.Hour), 7, 3), // strict local max high, strict local min low
			candleAt(base.Add(2*time.Hour), 5, 4),
			candleAt(base.Add(4*time.Hour), 9, 1), // gap: missing t+3h neighbor on both sides
		}},
	}
	b := NewBuilder(&fakeCalendar{}, prices, testConfig(), testLogger(t))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ps := snap.Series(key)
	if ps == nil {
		t.Fatalf("missing price series")
	}
	if _, ok := ps.Extremums.Max[base.Add(time.Hour)]; !ok {
		t.Fatalf("expected max extremum at base+1h")
	}
	if _, ok := ps.Extremums.Min[base.Add(time.Hour)]; !ok {
		t.Fatalf("expected min extremum at base+1h")
	}
	// Boundary candles and candles with a missing neighbor never qualify.
	for _, ts := range []time.Time{base, base.Add(2 * time.Hour), base.Add(4 * time.Hour)} {
		if _, ok := ps.Extremums.Max[ts]; ok {
			t.Fatalf("unexpected max extremum at %v", ts)
		}
	}

	if ps.AvgRange != (1.0+4.0+1.0+8.0)/4.0 {
		t.Fatalf("avg range got %v", ps.AvgRange)
	}
	// Every test candle has the same one-point body.
	if ps.Percentiles[90] != 1.0 {
		t.Fatalf("p90 got %v", ps.Percentiles[90])
	}
	if ps.Sizes[base] != 1.0 {
		t.Fatalf("body size got %v", ps.Sizes[base])
	}
}

func TestBuildNormalizesSourceTimezones(t *testing.T) {
	// 03:00+03:00 is the same instant as midnight UTC; snapshot keys must
	// land on the UTC form so query-time lookups match.
	zone := time.FixedZone("UTC+3", 3*3600)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	zoned := base.In(zone)

	actual, forecast, prev := 105.0, 100.0, 90.0
	cal := &fakeCalendar{rows: []models.CalendarRow{
		{EventID: "301", Time: zoned, Importance: 2, Actual: &actual, Forecast: &forecast, Previous: &prev},
	}}
	key := PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}
	prices := &fakePrices{
		history: map[string][]models.PriceRow{"EURUSD": {
			{Time: zoned, Value: 1.0},
			{Time: zoned.Add(time.Hour), Value: 1.1},
		}},
		candles: map[PriceKey][]models.Candle{key: {
			candleAt(zoned, 5, 4),
			candleAt(zoned.Add(time.Hour), 7, 3),
			candleAt(zoned.Add(2*time.Hour), 5, 4),
		}},
	}
	b := NewBuilder(cal, prices, testConfig(), testLogger(t))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(snap.ObsByTime[base]) != 2 {
		t.Fatalf("expected calendar and market observations at %v, got %v", base, snap.ObsByTime)
	}
	ps := snap.Series(key)
	if ps == nil {
		t.Fatalf("missing price series")
	}
	if _, ok := ps.Indicator[base]; !ok {
		t.Fatalf("indicator not keyed by UTC instant: %v", ps.Indicator)
	}
	if _, ok := ps.Extremums.Max[base.Add(time.Hour)]; !ok {
		t.Fatalf("extremum not keyed by UTC instant")
	}
}

func TestBuildRegistryExpansion(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.ShiftWindow = 2
	// A constant series yields two non-recurring warmup contexts (i=0 and
	// i=1, where the long SMA is not yet full) and one recurring flat
	// context shared by every later point.
	prices := &fakePrices{
		history: map[string][]models.PriceRow{"EURUSD": hourly(base, 1.0, 1.0, 1.0, 1.0)},
		candles: map[PriceKey][]models.Candle{},
	}
	b := NewBuilder(&fakeCalendar{}, prices, cfg, testLogger(t))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// Non-recurring contexts get 2 base codes each; the recurring one gets
	// its base codes plus 2*(2*ShiftWindow+1) shifted codes.
	want := 2 + 2 + 2 + 2*5
	if len(snap.Registry) != want {
		t.Fatalf("registry size got %d want %d: %v", len(snap.Registry), want, snap.Registry)
	}
}

func TestHistoryBeforeIsStrict(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := &Snapshot{History: map[HistKey][]time.Time{}}
	k := HistKey{Entity: "EURUSD"}
	snap.History[k] = []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}

	got := snap.HistoryBefore(k, base.Add(time.Hour))
	if len(got) != 1 || !got[0].Equal(base) {
		t.Fatalf("strictly-before lookup got %v", got)
	}
	if len(snap.HistoryBefore(k, base)) != 0 {
		t.Fatalf("target equal to first occurrence must yield empty history")
	}
}

func TestPrevCandleTrend(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ps := &PriceSeries{Candles: []CandleMark{
		{Time: base, Bull: true},
		{Time: base.Add(time.Hour), Bull: false},
	}}
	bull, ok := ps.PrevCandleTrend(base.Add(2 * time.Hour))
	if !ok || bull {
		t.Fatalf("expected bearish prev candle, got %v %v", bull, ok)
	}
	bull, ok = ps.PrevCandleTrend(base.Add(time.Hour))
	if !ok || !bull {
		t.Fatalf("expected bullish prev candle, got %v %v", bull, ok)
	}
	if _, ok := ps.PrevCandleTrend(base); ok {
		t.Fatalf("no candle precedes the first one")
	}
}
