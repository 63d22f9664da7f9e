package engine

import (
	"math"
	"reflect"
	"testing"
	"time"

	"CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
	"CtxWeights/internal/snapshot"
)

var (
	target = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	ctxUAU = models.ContextKey{Change: models.DirUp, Trend: models.DirAbove, Momentum: models.DirUp}
)

func emptySeries() *snapshot.PriceSeries {
	return &snapshot.PriceSeries{
		Indicator:   map[time.Time]float64{},
		Ranges:      map[time.Time]float64{},
		Sizes:       map[time.Time]float64{},
		Percentiles: map[int]float64{},
		Extremums: snapshot.ExtremumSet{
			Min: map[time.Time]struct{}{},
			Max: map[time.Time]struct{}{},
		},
	}
}

func baseSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		History:   map[snapshot.HistKey][]time.Time{},
		Index:     map[snapshot.HistKey]snapshot.ContextStats{},
		ObsByTime: map[time.Time][]models.Observation{},
		Prices:    map[snapshot.PriceKey]*snapshot.PriceSeries{},
		BuiltAt:   target,
	}
}

func newEngine() *Engine {
	return New(Config{ShiftWindow: 12, Modifications: map[string]float64{"BTC": 1000}})
}

// scenarioA: one non-recurring historical occurrence with shift 0, price
// series {H: 1.0, H+1h: 1.0}, both candles bullish, H in the max set.
func scenarioA() *snapshot.Snapshot {
	snap := baseSnapshot()
	hist := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)

	key := snapshot.HistKey{Entity: "EURUSD", Key: ctxUAU}
	snap.History[key] = []time.Time{hist}
	snap.Index[key] = snapshot.ContextStats{Count: 1, Recurring: false}
	snap.ObsByTime[target] = []models.Observation{{
		Entity: "EURUSD", Time: target, Key: ctxUAU, Importance: 3,
	}}

	ps := emptySeries()
	ps.Indicator[hist] = 1.0
	ps.Indicator[hist.Add(time.Hour)] = 1.0
	ps.Candles = []snapshot.CandleMark{
		{Time: hist, Bull: true},
		{Time: hist.Add(time.Hour), Bull: true},
	}
	ps.Extremums.Max[hist] = struct{}{}
	snap.Prices[snapshot.PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}] = ps
	return snap
}

func TestScenarioAMagnitudeAndExtremum(t *testing.T) {
	e := newEngine()
	got, err := e.Query(scenarioA(), "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 codes, got %v", got)
	}
	if got["EURUSD_U_A_U_0"] != 1.0 {
		t.Fatalf("magnitude: got %v", got["EURUSD_U_A_U_0"])
	}
	// matches/total = 1/1 -> value 1.0 scaled by the default factor.
	if got["EURUSD_U_A_U_1"] != 1.0 {
		t.Fatalf("extremum: got %v", got["EURUSD_U_A_U_1"])
	}
}

func TestScenarioATypeSelection(t *testing.T) {
	e := newEngine()
	got, err := e.Query(scenarioA(), "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got["EURUSD_U_A_U_0"] != 1.0 {
		t.Fatalf("type=1 should emit magnitude only, got %v", got)
	}

	got, err = e.Query(scenarioA(), "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 2, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got["EURUSD_U_A_U_1"] != 1.0 {
		t.Fatalf("type=2 should emit extremum only, got %v", got)
	}
}

func TestScenarioBEmptyWindow(t *testing.T) {
	e := newEngine()
	snap := baseSnapshot()
	snap.Prices[snapshot.PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}] = emptySeries()
	got, err := e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestScenarioCInvalidDate(t *testing.T) {
	e := newEngine()
	_, err := e.Query(baseSnapshot(), "EURUSD", domrepo.GranHourly, "not-a-date", 0, 0)
	ie, ok := AsInputError(err)
	if !ok {
		t.Fatalf("expected InputError, got %v", err)
	}
	if ie.Error() != "Invalid date format" {
		t.Fatalf("unexpected message %q", ie.Error())
	}
}

func TestInvalidTypeAndVariant(t *testing.T) {
	e := newEngine()
	if _, err := e.Query(baseSnapshot(), "EURUSD", domrepo.GranHourly, "2025-01-15", 3, 0); err == nil {
		t.Fatalf("expected type error")
	}
	if _, err := e.Query(baseSnapshot(), "EURUSD", domrepo.GranHourly, "2025-01-15", 0, 9); err == nil {
		t.Fatalf("expected variant error")
	}
}

// scenarioD: a recurring context seen at shifts {-1, 0, +1}; variant 1's
// range filter empties the pool for shift +1.
func scenarioD() *snapshot.Snapshot {
	snap := baseSnapshot()
	hist := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)

	key := snapshot.HistKey{Entity: "BTC", Key: ctxUAU}
	snap.History[key] = []time.Time{hist}
	snap.Index[key] = snapshot.ContextStats{Count: 3, Recurring: true}
	for _, s := range []int{-1, 0, 1} {
		dt := target.Add(time.Duration(s) * time.Hour)
		snap.ObsByTime[dt] = append(snap.ObsByTime[dt], models.Observation{
			Entity: "BTC", Time: dt, Key: ctxUAU, Importance: 3,
		})
	}

	ps := emptySeries()
	ps.AvgRange = 1.0
	// Shift s maps hist to hist+s; +1 falls below the average range.
	ps.Ranges[hist.Add(-time.Hour)] = 2.0
	ps.Ranges[hist] = 2.0
	ps.Ranges[hist.Add(time.Hour)] = 0.5
	ps.Indicator[hist.Add(-time.Hour)] = 3.0
	ps.Indicator[hist] = 5.0
	ps.Indicator[hist.Add(time.Hour)] = 7.0
	snap.Prices[snapshot.PriceKey{Instrument: "BTC", Granularity: domrepo.GranHourly}] = ps
	return snap
}

func TestScenarioDEmptyPoolSkipped(t *testing.T) {
	e := newEngine()
	got, err := e.Query(scenarioD(), "BTC", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 shifted codes, got %v", got)
	}
	// The observation at target-1h has shift +1, whose shifted pool is
	// emptied by the range filter: that code never appears.
	if _, ok := got["BTC_U_A_U_0_1"]; ok {
		t.Fatalf("empty-pool shift must be absent: %v", got)
	}
	conf := 1.0 / 11.0
	if want := round6(5.0 * conf); got["BTC_U_A_U_0_0"] != want {
		t.Fatalf("shift 0: got %v want %v", got["BTC_U_A_U_0_0"], want)
	}
	if want := round6(3.0 * conf); got["BTC_U_A_U_0_-1"] != want {
		t.Fatalf("shift -1: got %v want %v", got["BTC_U_A_U_0_-1"], want)
	}
}

func TestNonRecurringContainment(t *testing.T) {
	e := newEngine()
	snap := scenarioA()
	// Move the observation one hour before the target: shift would be +1,
	// and a non-recurring context only ever contributes at shift 0.
	obs := snap.ObsByTime[target][0]
	delete(snap.ObsByTime, target)
	obs.Time = target.Add(-time.Hour)
	snap.ObsByTime[obs.Time] = []models.Observation{obs}

	got, err := e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("non-recurring shifted observation must be dropped, got %v", got)
	}
}

func TestLowImportanceOnlyAtZeroShift(t *testing.T) {
	e := newEngine()
	snap := scenarioA()
	obs := snap.ObsByTime[target][0]
	obs.Importance = models.ImportanceLow
	snap.ObsByTime[target] = []models.Observation{obs}

	// At zero shift low importance is still accepted.
	got, err := e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("low importance at shift 0 should pass, got %v", got)
	}

	// Away from the target it is filtered before recurrence checks.
	k := snapshot.HistKey{Entity: "EURUSD", Key: ctxUAU}
	snap.Index[k] = snapshot.ContextStats{Count: 5, Recurring: true}
	delete(snap.ObsByTime, target)
	obs.Time = target.Add(2 * time.Hour)
	snap.ObsByTime[obs.Time] = []models.Observation{obs}
	got, err = e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("low importance off target must be dropped, got %v", got)
	}
}

func TestCausalityNoLookAhead(t *testing.T) {
	e := newEngine()
	snap := scenarioA()
	k := snapshot.HistKey{Entity: "EURUSD", Key: ctxUAU}
	future := target.Add(48 * time.Hour)
	snap.History[k] = append(snap.History[k], future)
	snap.Prices[snapshot.PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}].Indicator[future] = 100.0

	got, err := e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got["EURUSD_U_A_U_0"] != 1.0 {
		t.Fatalf("future occurrence leaked into result: %v", got)
	}
}

func TestDeterminism(t *testing.T) {
	e := newEngine()
	snap := scenarioD()
	first, err := e.Query(snap, "BTC", domrepo.GranHourly, "2025-01-15 12:00:00", 0, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Query(snap, "BTC", domrepo.GranHourly, "2025-01-15 12:00:00", 0, 1)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("non-deterministic output: %v vs %v", first, again)
		}
	}
}

func TestZeroSuppression(t *testing.T) {
	e := newEngine()
	snap := scenarioA()
	ps := snap.Prices[snapshot.PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}]
	hist := snap.History[snapshot.HistKey{Entity: "EURUSD", Key: ctxUAU}][0]
	ps.Indicator[hist] = 0.0

	got, err := e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, ok := got["EURUSD_U_A_U_0"]; ok {
		t.Fatalf("zero value must be suppressed, got %v", got)
	}
}

func TestExtremumBearishUsesMinSet(t *testing.T) {
	e := newEngine()
	snap := scenarioA()
	ps := snap.Prices[snapshot.PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}]
	hist := snap.History[snapshot.HistKey{Entity: "EURUSD", Key: ctxUAU}][0]
	// Flip the candle before target to bearish; hist is not in the min set
	// so matches/total = 0/1 -> -1.
	ps.Candles[1].Bull = false

	got, err := e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 2, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got["EURUSD_U_A_U_1"] != -1.0 {
		t.Fatalf("bearish extremum: got %v", got)
	}

	ps.Extremums.Min[hist] = struct{}{}
	got, err = e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 2, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got["EURUSD_U_A_U_1"] != 1.0 {
		t.Fatalf("min-set match: got %v", got)
	}
}

func TestModificationFactorApplied(t *testing.T) {
	e := newEngine()
	snap := scenarioD()
	// Make the extremum side deterministic: candle before target bearish,
	// no min-set matches, pool of one date -> -1 * 1000 * conf.
	ps := snap.Prices[snapshot.PriceKey{Instrument: "BTC", Granularity: domrepo.GranHourly}]
	hist := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	ps.Candles = []snapshot.CandleMark{{Time: hist, Bull: false}}

	got, err := e.Query(snap, "BTC", domrepo.GranHourly, "2025-01-15 12:00:00", 2, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	conf := 1.0 / 11.0
	if want := round6(-1000.0 * conf); got["BTC_U_A_U_1_0"] != want {
		t.Fatalf("got %v want %v", got["BTC_U_A_U_1_0"], want)
	}
}

// recurringAtShift builds a snapshot with one recurring context observed
// s hours before the target, history at hist, indicator at hist+s.
func recurringAtShift(s int) *snapshot.Snapshot {
	snap := baseSnapshot()
	hist := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)

	key := snapshot.HistKey{Entity: "BTC", Key: ctxUAU}
	snap.History[key] = []time.Time{hist}
	snap.Index[key] = snapshot.ContextStats{Count: 3, Recurring: true}
	dt := target.Add(time.Duration(-s) * time.Hour)
	snap.ObsByTime[dt] = []models.Observation{{
		Entity: "BTC", Time: dt, Key: ctxUAU, Importance: 3,
	}}

	ps := emptySeries()
	ps.Indicator[hist.Add(time.Duration(s)*time.Hour)] = 2.0
	snap.Prices[snapshot.PriceKey{Instrument: "BTC", Granularity: domrepo.GranHourly}] = ps
	return snap
}

func TestVariantWindowNarrowsEnumeration(t *testing.T) {
	e := newEngine()
	snap := recurringAtShift(8)

	got, err := e.Query(snap, "BTC", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got["BTC_U_A_U_0_8"] != 2.0 {
		t.Fatalf("default window should reach shift 8, got %v", got)
	}

	// Variant 2 enumerates only +-6 hours around the target.
	got, err = e.Query(snap, "BTC", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("narrow window must drop shift 8, got %v", got)
	}
}

func TestWideWindowKeepsContainment(t *testing.T) {
	e := newEngine()
	snap := recurringAtShift(20)

	// Variant 3 enumerates +-24 hours, but recurrence containment stays
	// at the configured window: shift 20 is never accepted.
	got, err := e.Query(snap, "BTC", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("shift beyond containment must be dropped, got %v", got)
	}
}

func TestSizePercentileFilter(t *testing.T) {
	e := newEngine()
	snap := baseSnapshot()
	d1 := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	d2 := d1.Add(time.Hour)
	d3 := d1.Add(2 * time.Hour)

	key := snapshot.HistKey{Entity: "EURUSD", Key: ctxUAU}
	snap.History[key] = []time.Time{d1, d2, d3}
	snap.Index[key] = snapshot.ContextStats{Count: 3, Recurring: false}
	snap.ObsByTime[target] = []models.Observation{{
		Entity: "EURUSD", Time: target, Key: ctxUAU, Importance: 3,
	}}

	ps := emptySeries()
	ps.Percentiles[50] = 2.0
	ps.Sizes[d1] = 3.0
	ps.Sizes[d2] = 1.0
	ps.Sizes[d3] = 2.0 // equal to the threshold stays in
	ps.Indicator[d1] = 5.0
	ps.Indicator[d2] = 100.0
	ps.Indicator[d3] = 7.0
	snap.Prices[snapshot.PriceKey{Instrument: "EURUSD", Granularity: domrepo.GranHourly}] = ps

	got, err := e.Query(snap, "EURUSD", domrepo.GranHourly, "2025-01-15 12:00:00", 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got["EURUSD_U_A_U_0"] != 12.0 {
		t.Fatalf("size-filtered magnitude got %v", got["EURUSD_U_A_U_0"])
	}
}

func TestConfidenceMonotonicity(t *testing.T) {
	v := Variant{Confidence: ConfBayes, Prior: 10}
	prev := 0.0
	for n := 1; n <= 100; n++ {
		c := v.Shrink(n)
		if c <= prev || c >= 1 {
			t.Fatalf("conf(%d)=%v not in (conf(%d), 1)", n, c, n-1)
		}
		prev = c
	}
	if (Variant{}).Shrink(0) != 1.0 {
		t.Fatalf("no-shrinkage variant must return 1.0")
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
