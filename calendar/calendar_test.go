package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(date(2024, 1, 1), date(2024, 1, 31)); got != 30 {
		t.Fatalf("expected 30 days, got %d", got)
	}
	// Intraday timestamps collapse to the same day.
	from := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(from, to); got != 1 {
		t.Fatalf("expected 1 day across midnight, got %d", got)
	}
	if got := DaysBetween(date(2024, 5, 2), date(2024, 5, 1)); got != 0 {
		t.Fatalf("expected floor at zero, got %d", got)
	}
}

func TestPeriodsElapsed(t *testing.T) {
	start := date(2024, 1, 1)
	if got := PeriodsElapsed(start, date(2024, 1, 30), 30); got != 0 {
		t.Fatalf("day 29 should be within the first period, got %d", got)
	}
	if got := PeriodsElapsed(start, date(2024, 1, 31), 30); got != 1 {
		t.Fatalf("day 30 should open the second period, got %d", got)
	}
	if got := PeriodsElapsed(start, date(2024, 4, 1), 30); got != 3 {
		t.Fatalf("expected 3 elapsed periods, got %d", got)
	}
	if got := PeriodsElapsed(start, date(2024, 4, 1), 0); got != 0 {
		t.Fatalf("zero period length must yield zero, got %d", got)
	}
}

func TestNextDueDate(t *testing.T) {
	start := date(2024, 1, 1)
	due := NextDueDate(start, date(2024, 1, 15), 30)
	if !due.Equal(date(2024, 1, 31)) {
		t.Fatalf("unexpected due date: %s", due)
	}
	due = NextDueDate(start, date(2024, 2, 5), 30)
	if !due.Equal(date(2024, 3, 1)) {
		t.Fatalf("unexpected second-period due date: %s", due)
	}
}

func TestIsMature(t *testing.T) {
	maturity := date(2024, 6, 1)
	if IsMature(maturity, date(2024, 5, 31)) {
		t.Fatal("should not be mature the day before")
	}
	if !IsMature(maturity, date(2024, 6, 1)) {
		t.Fatal("maturity day itself counts as mature")
	}
	if !IsMature(maturity, date(2024, 7, 1)) {
		t.Fatal("past maturity must report mature")
	}
}
