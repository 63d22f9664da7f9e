package models

import "time"

// Direction is a discrete label describing how one value relates to another.
type Direction string

const (
	DirUnknown Direction = "UNKNOWN"
	DirUp      Direction = "UP"
	DirDown    Direction = "DOWN"
	DirFlat    Direction = "FLAT"
	DirAbove   Direction = "ABOVE"
	DirBelow   Direction = "BELOW"
	DirAt      Direction = "AT"
)

// ContextKey is the behavioral regime of one entity at a point in time.
// For instruments the slots are change / trend-vs-SMA / momentum; for
// calendar events they are actual-vs-forecast / actual-vs-previous /
// forecast-vs-previous. The same slot layout keeps weight codes uniform.
type ContextKey struct {
	Change   Direction
	Trend    Direction
	Momentum Direction
}

// Observation is one classified data point: an entity was seen in a
// context at a time. Importance 1..3; market observations are always 3.
type Observation struct {
	Entity     string
	Time       time.Time
	Key        ContextKey
	Importance int
}

// ImportanceLow is filtered out of shifted query candidates.
const ImportanceLow = 1

// WeightKey is the decoded form of a weight code. Shift is nil for base
// codes and set only for recurring contexts.
type WeightKey struct {
	Entity string
	Key    ContextKey
	Mode   int
	Shift  *int
}

// Calculation modes.
const (
	ModeMagnitude = 0
	ModeExtremum  = 1
)
