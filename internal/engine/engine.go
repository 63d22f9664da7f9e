// Package engine implements the causal windowed-aggregation query over a
// published snapshot. Queries are pure, synchronous and perform no I/O;
// identical snapshot and parameters always produce identical output.
package engine

import (
	"errors"
	"math"
	"time"

	"CtxWeights/internal/codec"
	"CtxWeights/internal/domain/models"
	domrepo "CtxWeights/internal/domain/repository"
	"CtxWeights/internal/snapshot"
	"CtxWeights/pkg/util"
)

// InputError marks malformed query input. It surfaces to clients as a
// structured {"error": ...} value, never as a transport failure.
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

// NewInputError builds an InputError with the given client-facing message.
func NewInputError(msg string) *InputError { return &InputError{msg: msg} }

// AsInputError extracts an InputError from err, if it is one.
func AsInputError(err error) (*InputError, bool) {
	var ie *InputError
	ok := errors.As(err, &ie)
	return ie, ok
}

var errInvalidDate = &InputError{msg: "Invalid date format"}

// Config carries the per-deployment engine parameters.
type Config struct {
	ShiftWindow   int
	Modifications map[string]float64
}

// Modification returns the extremum scale factor for an instrument.
func (c Config) Modification(instrument string) float64 {
	if m, ok := c.Modifications[instrument]; ok {
		return m
	}
	return 1.0
}

// Engine evaluates weight queries against whatever snapshot it is handed.
// It holds no state of its own.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

type candidate struct {
	obs   models.Observation
	shift int
	key   snapshot.HistKey
	rec   bool
}

// Query runs the windowed aggregation. calcType: 0=both components,
// 1=magnitude only, 2=extremum only. Returned values are rounded to six
// decimals and exact zeros are dropped.
func (e *Engine) Query(snap *snapshot.Snapshot, instrument string, g domrepo.Granularity, dateStr string, calcType, calcVar int) (map[string]float64, error) {
	target, ok := util.ParseTargetDate(dateStr)
	if !ok {
		return nil, errInvalidDate
	}
	if calcType < 0 || calcType > 2 {
		return nil, &InputError{msg: "Unknown type; valid: 0-2"}
	}
	variant, ok := VariantFor(calcVar)
	if !ok {
		return nil, &InputError{msg: "Unknown var; valid: 0-4"}
	}

	unit := g.Unit()
	cands := e.collect(snap, target, unit, variant)
	if len(cands) == 0 {
		return map[string]float64{}, nil
	}

	ps := snap.Series(snapshot.PriceKey{Instrument: instrument, Granularity: g})
	if ps == nil {
		// No usable price data for the instrument: valid query, empty result.
		return map[string]float64{}, nil
	}

	var prevBull, prevOK bool
	if calcType == 0 || calcType == 2 {
		prevBull, prevOK = ps.PrevCandleTrend(target)
	}
	modification := e.cfg.Modification(instrument)

	result := make(map[string]float64)
	for _, c := range cands {
		hist := snap.HistoryBefore(c.key, target)
		if len(hist) == 0 {
			continue
		}

		pool := shiftAndFilter(hist, c.shift, unit, ps, variant)
		if len(pool) == 0 {
			continue
		}
		conf := variant.Shrink(len(pool))

		var shiftArg *int
		if c.rec {
			s := c.shift
			shiftArg = &s
		}

		if calcType == 0 || calcType == 1 {
			sum := magnitudeValue(pool, ps, variant)
			code := codec.Encode(models.WeightKey{
				Entity: c.obs.Entity, Key: c.obs.Key, Mode: models.ModeMagnitude, Shift: shiftArg,
			})
			result[code] += sum * conf
		}

		if (calcType == 0 || calcType == 2) && prevOK {
			ext := ps.Extremums.Min
			if prevBull {
				ext = ps.Extremums.Max
			}
			val, ok := extremumValue(pool, ps, variant, ext, modification)
			if ok {
				code := codec.Encode(models.WeightKey{
					Entity: c.obs.Entity, Key: c.obs.Key, Mode: models.ModeExtremum, Shift: shiftArg,
				})
				result[code] += val * conf
			}
		}
	}

	out := make(map[string]float64, len(result))
	for k, v := range result {
		r := math.Round(v*1e6) / 1e6
		if r == 0 {
			continue
		}
		out[k] = r
	}
	return out, nil
}

// collect enumerates window observations and applies the importance and
// recurrence acceptance rules. Contexts are the ones evaluated at each
// observation's own time. Enumeration uses the variant's window; the
// recurrence containment bound stays at the configured window.
func (e *Engine) collect(snap *snapshot.Snapshot, target time.Time, unit time.Duration, v Variant) []candidate {
	w := v.Window
	if w == 0 {
		w = e.cfg.ShiftWindow
	}
	var out []candidate
	for s := -w; s <= w; s++ {
		dt := target.Add(time.Duration(s) * unit)
		for _, obs := range snap.ObsByTime[dt] {
			if obs.Importance == models.ImportanceLow && !dt.Equal(target) {
				continue
			}
			shift := int(target.Sub(dt) / unit)
			key := snapshot.HistKey{Entity: obs.Entity, Key: obs.Key}
			stats, ok := snap.Index[key]
			if !ok {
				continue
			}
			if !stats.Recurring && shift != 0 {
				continue
			}
			if stats.Recurring && abs(shift) > e.cfg.ShiftWindow {
				continue
			}
			out = append(out, candidate{obs: obs, shift: shift, key: key, rec: stats.Recurring})
		}
	}
	return out
}

// shiftAndFilter maps historical dates through the shift and applies the
// variant's range and body-size filters.
func shiftAndFilter(hist []time.Time, shift int, unit time.Duration, ps *snapshot.PriceSeries, v Variant) []time.Time {
	delta := time.Duration(shift) * unit
	var sizeThr float64
	if v.SizePercentile > 0 {
		sizeThr = ps.Percentiles[v.SizePercentile]
	}
	out := make([]time.Time, 0, len(hist))
	for _, h := range hist {
		d := h.Add(delta)
		if v.FilterByRange && ps.Ranges[d] <= ps.AvgRange {
			continue
		}
		if sizeThr > 0 && ps.Sizes[d] < sizeThr {
			continue
		}
		out = append(out, d)
	}
	return out
}

func magnitudeValue(pool []time.Time, ps *snapshot.PriceSeries, v Variant) float64 {
	var total float64
	for _, d := range pool {
		if v.UseRangeDelta {
			total += ps.Ranges[d] - ps.AvgRange
			continue
		}
		val, ok := ps.Indicator[d]
		if !ok {
			if v.Missing == MissingSkip {
				continue
			}
			val = 0
		}
		if v.UseSquare {
			val = val * math.Abs(val)
		}
		total += val
	}
	return total
}

func extremumValue(pool []time.Time, ps *snapshot.PriceSeries, v Variant, ext map[time.Time]struct{}, modification float64) (float64, bool) {
	if v.UseRangeDelta {
		var val float64
		for _, d := range pool {
			if _, ok := ext[d]; ok {
				val += ps.Ranges[d] - ps.AvgRange
			}
		}
		return val, val != 0
	}
	matches := 0
	for _, d := range pool {
		if _, ok := ext[d]; ok {
			matches++
		}
	}
	val := ((float64(matches)/float64(len(pool)))*2 - 1) * modification
	return val, val != 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
