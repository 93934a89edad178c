package calendar

import "time"

// DaysPerYear is the day-count basis used for yield accrual across the
// protocol. All billing math uses actual elapsed days over a 365-day year.
const DaysPerYear = 365

// StartOfDay truncates the timestamp to midnight UTC. Billing boundaries are
// always aligned to whole days so two calls within the same day observe the
// same cycle state.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from `from` to `to`, floored
// at zero when `to` precedes `from`.
func DaysBetween(from, to time.Time) int {
	days := int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// PeriodsElapsed reports how many complete billing periods of periodDays have
// passed between start and now. A non-positive period length yields zero.
func PeriodsElapsed(start, now time.Time, periodDays int) int {
	if periodDays <= 0 {
		return 0
	}
	return DaysBetween(start, now) / periodDays
}

// PeriodStart returns the boundary timestamp of the n-th period after start
// (n = 0 returns start itself, day aligned).
func PeriodStart(start time.Time, periodDays, n int) time.Time {
	if periodDays <= 0 || n <= 0 {
		return StartOfDay(start)
	}
	return StartOfDay(start).AddDate(0, 0, periodDays*n)
}

// CurrentPeriodStart returns the boundary of the period containing now.
func CurrentPeriodStart(start, now time.Time, periodDays int) time.Time {
	return PeriodStart(start, periodDays, PeriodsElapsed(start, now, periodDays))
}

// NextDueDate returns the end boundary of the period containing now, which is
// when the bill computed for that period falls due.
func NextDueDate(start, now time.Time, periodDays int) time.Time {
	return PeriodStart(start, periodDays, PeriodsElapsed(start, now, periodDays)+1)
}

// IsMature reports whether the maturity date has been reached. Maturity is
// inclusive of the maturity day itself.
func IsMature(maturity, now time.Time) bool {
	return !StartOfDay(now).Before(StartOfDay(maturity))
}
