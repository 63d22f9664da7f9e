package util

import (
	"testing"
	"time"
)

func TestParseTargetDateFull(t *testing.T) {
	got, ok := ParseTargetDate("2025-01-15 14:00:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	// First format is year-day-month, so 15 is the day slot only when valid.
	want := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTargetDateDayMonthPrecedence(t *testing.T) {
	// Both the day-month and month-day formats accept this string; the
	// day-month one is tried first.
	got, ok := ParseTargetDate("2025-03-02 00:00:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected day-month parse, got %v", got)
	}
}

func TestParseTargetDateISO(t *testing.T) {
	got, ok := ParseTargetDate("2025-01-15T14:00:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Hour() != 14 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTargetDateDateOnly(t *testing.T) {
	got, ok := ParseTargetDate(" 2025-01-15 ")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTargetDateInvalid(t *testing.T) {
	if _, ok := ParseTargetDate("not-a-date"); ok {
		t.Fatalf("expected failure")
	}
	if _, ok := ParseTargetDate(""); ok {
		t.Fatalf("expected failure on empty")
	}
}
