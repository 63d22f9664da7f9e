package codec

import (
	"testing"

	"CtxWeights/internal/domain/models"
)

func shift(v int) *int { return &v }

func TestEncode(t *testing.T) {
	k := models.WeightKey{
		Entity: "EURUSD",
		Key:    models.ContextKey{Change: models.DirUp, Trend: models.DirAbove, Momentum: models.DirUp},
		Mode:   models.ModeMagnitude,
	}
	if got := Encode(k); got != "EURUSD_U_A_U_0" {
		t.Fatalf("got %q", got)
	}
	k.Mode = models.ModeExtremum
	k.Shift = shift(-6)
	k.Key = models.ContextKey{Change: models.DirDown, Trend: models.DirBelow, Momentum: models.DirFlat}
	k.Entity = "BTC"
	if got := Encode(k); got != "BTC_D_B_F_1_-6" {
		t.Fatalf("got %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	dirs1 := []models.Direction{models.DirUnknown, models.DirUp, models.DirDown, models.DirFlat}
	dirs2 := []models.Direction{models.DirUnknown, models.DirAbove, models.DirBelow, models.DirAt}
	shifts := []*int{nil, shift(0), shift(-12), shift(12)}

	for _, c := range dirs1 {
		for _, tr := range dirs2 {
			for _, m := range dirs1 {
				for mode := 0; mode <= 1; mode++ {
					for _, s := range shifts {
						k := models.WeightKey{
							Entity: "GOLD",
							Key:    models.ContextKey{Change: c, Trend: tr, Momentum: m},
							Mode:   mode,
							Shift:  s,
						}
						got, err := Decode(Encode(k))
						if err != nil {
							t.Fatalf("decode(%s): %v", Encode(k), err)
						}
						if got.Entity != k.Entity || got.Key != k.Key || got.Mode != k.Mode {
							t.Fatalf("round trip mismatch: %+v vs %+v", got, k)
						}
						if (got.Shift == nil) != (k.Shift == nil) {
							t.Fatalf("shift presence mismatch for %s", Encode(k))
						}
						if k.Shift != nil && *got.Shift != *k.Shift {
							t.Fatalf("shift value mismatch for %s", Encode(k))
						}
					}
				}
			}
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"EURUSD",
		"EURUSD_U_A_U",
		"EURUSD_U_A_U_7",
		"EURUSD_Q_A_U_0",
		"EURUSD_U_A_U_0_x",
		"EURUSD_U_A_U_0_1_2",
		"_U_A_U_0",
	}
	for _, c := range bad {
		if _, err := Decode(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestAfterOrdering(t *testing.T) {
	registry := []string{
		"BTC_U_A_U_0",
		"BTC_U_A_U_0_-1",
		"BTC_U_A_U_0_0",
		"BTC_U_A_U_1",
		"BTC_U_A_U_1_0",
		"EURUSD_D_B_F_0",
	}
	SortCodes(registry)

	// Base (nil-shift) codes sort before their shifted variants.
	if registry[0] != "BTC_U_A_U_0" || registry[1] != "BTC_U_A_U_0_-1" {
		t.Fatalf("unexpected order: %v", registry)
	}

	got, err := After(registry, "BTC_U_A_U_0_0")
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	want := []string{"BTC_U_A_U_1", "BTC_U_A_U_1_0", "EURUSD_D_B_F_0"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	// Pivot past the end returns empty.
	got, err = After(registry, "EURUSD_D_B_F_0")
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty tail, got %v", got)
	}

	if _, err := After(registry, "garbage"); err == nil {
		t.Fatalf("expected decode error")
	}
}
