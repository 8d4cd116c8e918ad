package models

import "time"

const (
	day = 24 * time.Hour

	// ExpiringSoonDays is the look-ahead window used by IsExpiringSoon.
	ExpiringSoonDays = 7

	DefaultCurrency = "INR"
)

// CalculateEndDate returns start plus one calendar month or one calendar year.
// When the target month is shorter than the start day, the day is clamped to the
// last day of that month (Jan 31 -> Feb 28/29, Feb 29 -> Feb 28 next year).
// A zero start means now.
func CalculateEndDate(start time.Time, cycle BillingCycle) (time.Time, error) {
	if start.IsZero() {
		start = time.Now()
	}
	switch cycle {
	case BillingMonthly:
		return addMonths(start, 1), nil
	case BillingYearly:
		return addMonths(start, 12), nil
	}
	_, err := ParseBillingCycle(string(cycle))
	return time.Time{}, err
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ceilDays rounds a duration up to whole days, flooring negatives at zero.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	days := d / day
	if d%day != 0 {
		days++
	}
	return int(days)
}

// PaiseToRupees converts a minor-unit amount for display only.
func PaiseToRupees(paise int64) float64 {
	return float64(paise) / 100
}
