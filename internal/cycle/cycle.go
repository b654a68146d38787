// Package cycle implements the billing-cycle arithmetic for memberships:
// the current plan month anchored to the subscription start date, business-day
// counting, and the effective-quota rule. All functions are pure; callers pass
// "now" explicitly.
package cycle

import "time"

// unitLength is the fixed divisor used to estimate how many plan months have
// elapsed since the subscription start. Boundaries are then built with true
// calendar-month addition, so the two can disagree near month-end for
// 28/29/31-day months. That mismatch is the historical behavior and is kept.
const unitLength = 30 * 24 * time.Hour

// Cycle is the current one-month billing window of a membership.
// Ordinal is 1-based, for display.
type Cycle struct {
	Start   time.Time
	End     time.Time
	Ordinal int
}

// Day normalizes t to midnight UTC. Attendance entries and cycle boundaries
// are calendar dates; time of day never participates in comparisons.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Current returns the billing cycle containing now for a membership that
// started on subscriptionStart.
func Current(subscriptionStart, now time.Time) Cycle {
	start := Day(subscriptionStart)
	elapsed := 0
	if diff := Day(now).Sub(start); diff > 0 {
		elapsed = int(diff / unitLength)
	}
	cycleStart := start.AddDate(0, elapsed, 0)
	cycleEnd := cycleStart.AddDate(0, 1, -1)
	return Cycle{Start: cycleStart, End: cycleEnd, Ordinal: elapsed + 1}
}

// BusinessDays counts the days in [from, to], inclusive on both ends, whose
// weekday is Monday through Saturday. Returns 0 when from is after to.
func BusinessDays(from, to time.Time) int {
	d := Day(from)
	end := Day(to)
	n := 0
	for !d.After(end) {
		if d.Weekday() != time.Sunday {
			n++
		}
		d = d.AddDate(0, 0, 1)
	}
	return n
}

// RemainingBusinessDays counts the business days left in the cycle strictly
// after today. Today is excluded: whether today's class is still available is
// the quota check's concern, not a "remaining day".
func RemainingBusinessDays(cycleEnd, now time.Time) int {
	return BusinessDays(Day(now).AddDate(0, 0, 1), cycleEnd)
}

// EffectiveQuota caps the nominal monthly allowance by the business days left
// in the cycle. Late in a cycle a student cannot use more classes than there
// are days to attend them.
func EffectiveQuota(nominal, remainingBusinessDays int) int {
	if remainingBusinessDays < nominal {
		return remainingBusinessDays
	}
	return nominal
}

// FilterByPeriod returns the dates that fall within [start, end], inclusive,
// compared as calendar dates. Order is preserved.
func FilterByPeriod(dates []time.Time, start, end time.Time) []time.Time {
	lo, hi := Day(start), Day(end)
	var out []time.Time
	for _, t := range dates {
		d := Day(t)
		if !d.Before(lo) && !d.After(hi) {
			out = append(out, t)
		}
	}
	return out
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
