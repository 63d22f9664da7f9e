package models

import "time"

// Candle is one OHLC row from a rates table, with the derived indicator
// used by magnitude sums. HasIndicator distinguishes a genuine zero from
// a missing value.
type Candle struct {
	Time         time.Time
	Open         float64
	Close        float64
	High         float64
	Low          float64
	Indicator    float64
	HasIndicator bool
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Range is the high-low spread.
func (c Candle) Range() float64 { return c.High - c.Low }

// BodySize is the absolute open-close distance, used for percentile
// size thresholds.
func (c Candle) BodySize() float64 {
	d := c.Close - c.Open
	if d < 0 {
		return -d
	}
	return d
}

// CalendarRow is one raw calendar feed row before classification.
type CalendarRow struct {
	EventID    string
	Time       time.Time
	Importance int
	Actual     *float64
	Forecast   *float64
	Previous   *float64
}

// PriceRow is one raw price history row for a single instrument column.
type PriceRow struct {
	Time  time.Time
	Value float64
}
