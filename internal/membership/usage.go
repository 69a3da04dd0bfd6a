package membership

import "time"

// ShouldResetUsage decides whether the free-service counters belong to a
// billing period that has lapsed. Unknown state resets: a membership with a
// missing period boundary must not keep serving stale counters. A period
// start more than one calendar month old also resets, which covers renewals
// whose webhook never arrived.
func ShouldResetUsage(periodStart, periodEnd *time.Time, now time.Time) bool {
	if periodStart == nil || periodEnd == nil {
		return true
	}
	if now.After(*periodEnd) {
		return true
	}
	return periodStart.Before(now.AddDate(0, -1, 0))
}
