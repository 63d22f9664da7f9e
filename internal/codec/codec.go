// Package codec implements the deterministic bijection between weight keys
// and compact string codes, plus keyset ordering over the code registry.
//
// Code format: {entity}_{change}_{trend}_{momentum}_{mode}[_{shift}]
// where each label is a single letter from the shared label table.
package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"CtxWeights/internal/domain/models"
)

// One shared bijective table covers every label any slot can carry.
var labelToLetter = map[models.Direction]string{
	models.DirUnknown: "X",
	models.DirUp:      "U",
	models.DirDown:    "D",
	models.DirFlat:    "F",
	models.DirAbove:   "A",
	models.DirBelow:   "B",
	models.DirAt:      "T",
}

var letterToLabel = func() map[string]models.Direction {
	m := make(map[string]models.Direction, len(labelToLetter))
	for k, v := range labelToLetter {
		m[v] = k
	}
	return m
}()

// Encode produces the weight code for a key.
func Encode(k models.WeightKey) string {
	base := fmt.Sprintf("%s_%s_%s_%s_%d",
		k.Entity,
		letter(k.Key.Change),
		letter(k.Key.Trend),
		letter(k.Key.Momentum),
		k.Mode,
	)
	if k.Shift == nil {
		return base
	}
	return fmt.Sprintf("%s_%d", base, *k.Shift)
}

func letter(d models.Direction) string {
	if l, ok := labelToLetter[d]; ok {
		return l
	}
	return "X"
}

// Decode is the inverse of Encode. Entities may not contain underscores,
// so the field count fixes the layout: 5 parts for a base code, 6 with a
// shift.
func Decode(code string) (models.WeightKey, error) {
	parts := strings.Split(code, "_")
	if len(parts) < 5 || len(parts) > 6 {
		return models.WeightKey{}, fmt.Errorf("decode %q: expected 5 or 6 fields, got %d", code, len(parts))
	}
	var k models.WeightKey
	k.Entity = parts[0]
	if k.Entity == "" {
		return models.WeightKey{}, fmt.Errorf("decode %q: empty entity", code)
	}

	labels := [3]models.Direction{}
	for i, p := range parts[1:4] {
		l, ok := letterToLabel[p]
		if !ok {
			return models.WeightKey{}, fmt.Errorf("decode %q: unknown label %q", code, p)
		}
		labels[i] = l
	}
	k.Key = models.ContextKey{Change: labels[0], Trend: labels[1], Momentum: labels[2]}

	mode, err := strconv.Atoi(parts[4])
	if err != nil || (mode != models.ModeMagnitude && mode != models.ModeExtremum) {
		return models.WeightKey{}, fmt.Errorf("decode %q: bad mode %q", code, parts[4])
	}
	k.Mode = mode

	if len(parts) == 6 {
		s, err := strconv.Atoi(parts[5])
		if err != nil {
			return models.WeightKey{}, fmt.Errorf("decode %q: bad shift %q", code, parts[5])
		}
		k.Shift = &s
	}
	return k, nil
}

// Less orders decoded keys by entity, then each context slot, then mode,
// then shift with nil first. This is the keyset pagination order.
func Less(a, b models.WeightKey) bool {
	if a.Entity != b.Entity {
		return a.Entity < b.Entity
	}
	if a.Key.Change != b.Key.Change {
		return a.Key.Change < b.Key.Change
	}
	if a.Key.Trend != b.Key.Trend {
		return a.Key.Trend < b.Key.Trend
	}
	if a.Key.Momentum != b.Key.Momentum {
		return a.Key.Momentum < b.Key.Momentum
	}
	if a.Mode != b.Mode {
		return a.Mode < b.Mode
	}
	if (a.Shift == nil) != (b.Shift == nil) {
		return a.Shift == nil
	}
	if a.Shift == nil {
		return false
	}
	return *a.Shift < *b.Shift
}

// SortCodes orders a code slice by decoded keyset order. Undecodable
// codes sort last by raw string; the registry never contains any.
func SortCodes(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		ki, ei := Decode(codes[i])
		kj, ej := Decode(codes[j])
		if ei != nil || ej != nil {
			if (ei != nil) != (ej != nil) {
				return ej != nil
			}
			return codes[i] < codes[j]
		}
		return Less(ki, kj)
	})
}

// After returns all registry codes whose decoded key is strictly greater
// than the given code's. The registry must already be in keyset order.
func After(registry []string, code string) ([]string, error) {
	pivot, err := Decode(code)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(registry), func(i int) bool {
		k, err := Decode(registry[i])
		if err != nil {
			return true
		}
		return Less(pivot, k)
	})
	out := make([]string, len(registry)-i)
	copy(out, registry[i:])
	return out, nil
}
