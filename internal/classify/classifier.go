package classify

import (
	"time"

	"CtxWeights/internal/domain/models"
)

// Params control classification for one entity. Threshold is the relative
// change threshold; windows are in series steps.
type Params struct {
	Threshold   float64
	ShortWindow int
	LongWindow  int
}

// Point is one (time, value) sample of a sorted series.
type Point struct {
	Time  time.Time
	Value float64
}

// Classified is one classified sample. Change carries the absolute step
// change for context index aggregates; HasChange is false at i=0.
type Classified struct {
	Time      time.Time
	Value     float64
	Key       models.ContextKey
	Change    float64
	HasChange bool
}

// DirectionLabel compares a to b using a relative threshold and returns up,
// down or flat. Any missing operand or zero denominator yields UNKNOWN.
// This function is total: it never fails.
func DirectionLabel(a, b *float64, threshold float64, up, down, flat models.Direction) models.Direction {
	if a == nil || b == nil || *b == 0 {
		return models.DirUnknown
	}
	d := *b
	if d < 0 {
		d = -d
	}
	pct := (*a - *b) / d
	if pct > threshold {
		return up
	}
	if pct < -threshold {
		return down
	}
	return flat
}

// sma returns the simple moving average of the window ending at idx, or
// nil when fewer than window points exist.
func sma(series []Point, idx, window int) *float64 {
	if window <= 0 || idx < window-1 {
		return nil
	}
	var sum float64
	for i := idx - window + 1; i <= idx; i++ {
		sum += series[i].Value
	}
	v := sum / float64(window)
	return &v
}

// Series classifies a chronologically sorted series into per-step
// context keys. Insufficient history always yields UNKNOWN labels,
// never an error.
func Series(series []Point, p Params) []Classified {
	out := make([]Classified, 0, len(series))
	for i, pt := range series {
		c := Classified{Time: pt.Time, Value: pt.Value}

		if i == 0 {
			c.Key.Change = models.DirUnknown
		} else {
			prev := series[i-1].Value
			cur := pt.Value
			c.Key.Change = DirectionLabel(&cur, &prev, p.Threshold,
				models.DirUp, models.DirDown, models.DirFlat)
			c.Change = cur - prev
			c.HasChange = true
		}

		long := sma(series, i, p.LongWindow)
		if long == nil {
			c.Key.Trend = models.DirUnknown
		} else {
			cur := pt.Value
			c.Key.Trend = DirectionLabel(&cur, long, p.Threshold,
				models.DirAbove, models.DirBelow, models.DirAt)
		}

		short := sma(series, i, p.ShortWindow)
		if short == nil || long == nil {
			c.Key.Momentum = models.DirUnknown
		} else {
			c.Key.Momentum = DirectionLabel(short, long, p.Threshold,
				models.DirUp, models.DirDown, models.DirFlat)
		}

		out = append(out, c)
	}
	return out
}

// CalendarKey derives the context key of one calendar row from its
// actual/forecast/previous values: actual-vs-forecast, actual-vs-previous
// and forecast-vs-previous directions. Missing operands yield UNKNOWN.
func CalendarKey(row models.CalendarRow, threshold float64) models.ContextKey {
	return models.ContextKey{
		Change:   DirectionLabel(row.Actual, row.Forecast, threshold, models.DirUp, models.DirDown, models.DirFlat),
		Trend:    DirectionLabel(row.Actual, row.Previous, threshold, models.DirUp, models.DirDown, models.DirFlat),
		Momentum: DirectionLabel(row.Forecast, row.Previous, threshold, models.DirUp, models.DirDown, models.DirFlat),
	}
}
