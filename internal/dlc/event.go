package dlc

import "time"

const tsLayout = "2006-01-02T15:04:05Z"

// EventID derives the event identifier from a pair and an RFC-3339 UTC
// maturity timestamp, e.g. "BTCUSD-2026-07-31T15:00:00Z".
func EventID(pair, maturity string) string {
	return pair + "-" + maturity
}

// NextHours returns the next n hourly maturity timestamps (UTC,
// truncated to the hour), starting with the next hour boundary after now.
func NextHours(n int, now time.Time) []string {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC).Add(time.Hour)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = next.Add(time.Duration(i) * time.Hour).Format(tsLayout)
	}
	return out
}

// CurrentHour returns the current hour's maturity timestamp (UTC,
// truncated to the hour) — the event a scheduler attests at each tick.
func CurrentHour(now time.Time) string {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC).Format(tsLayout)
}

// SecondsUntilNextHour returns the delay until the next hour boundary
// plus a 5-second buffer, the scheduler's sleep interval.
func SecondsUntilNextHour(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC).Add(time.Hour)
	return next.Sub(now) + 5*time.Second
}
