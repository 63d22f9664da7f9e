package engine

// MissingPolicy decides how a shifted date with no price lookup
// contributes to magnitude sums.
type MissingPolicy int

const (
	// MissingZero counts an absent lookup as 0.
	MissingZero MissingPolicy = iota
	// MissingSkip drops the date from the sum entirely.
	MissingSkip
)

// ConfidenceKind selects the shrinkage applied to both components.
type ConfidenceKind int

const (
	ConfNone ConfidenceKind = iota
	ConfBayes
)

// Variant is one named calculation strategy. The closed table below
// replaces per-variant integer branching: every consumer dispatches
// through a single lookup.
//
// Window is the check-timestamp enumeration half-width; zero means the
// configured default. Recurrence containment always uses the configured
// window, so a wider Window only matters below that bound.
// SizePercentile selects the body-size threshold applied to shifted
// pool dates; zero disables the size filter.
type Variant struct {
	Window         int
	SizePercentile int
	FilterByRange  bool
	UseSquare      bool
	UseRangeDelta  bool
	Confidence     ConfidenceKind
	Prior          float64
	Missing        MissingPolicy
}

var variants = map[int]Variant{
	0: {SizePercentile: 50},
	1: {SizePercentile: 75, FilterByRange: true, Confidence: ConfBayes, Prior: 10},
	2: {Window: 6, SizePercentile: 50, UseSquare: true, Confidence: ConfBayes, Prior: 10},
	3: {Window: 24, SizePercentile: 50, FilterByRange: true, UseSquare: true, Confidence: ConfBayes, Prior: 10},
	4: {FilterByRange: true, UseRangeDelta: true},
}

// VariantFor returns the strategy for a variant id.
func VariantFor(id int) (Variant, bool) {
	v, ok := variants[id]
	return v, ok
}

// Shrink computes the confidence multiplier for n contributing dates.
func (v Variant) Shrink(n int) float64 {
	if v.Confidence != ConfBayes {
		return 1.0
	}
	if n <= 0 {
		return 0.0
	}
	return float64(n) / (float64(n) + v.Prior)
}
