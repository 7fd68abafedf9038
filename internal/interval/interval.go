// Package interval defines the discrete time quanta that every timelapse in
// this module is sampled on.
package interval

import "time"

// Interval is a named time quantum with an integer seconds value.
type Interval int

const (
	Second Interval = iota
	Minute
	FiveMinutes
	FifteenMinutes
	ThirtyMinutes
	Hour
	FourHours
	Day
	Week
)

// seconds holds the duration, in seconds, of each Interval.
var seconds = map[Interval]int64{
	Second:         1,
	Minute:         60,
	FiveMinutes:    5 * 60,
	FifteenMinutes: 15 * 60,
	ThirtyMinutes:  30 * 60,
	Hour:           60 * 60,
	FourHours:      4 * 60 * 60,
	Day:            24 * 60 * 60,
	Week:           7 * 24 * 60 * 60,
}

// names is used only for logging/diagnostics.
var names = map[Interval]string{
	Second:         "1s",
	Minute:         "1m",
	FiveMinutes:    "5m",
	FifteenMinutes: "15m",
	ThirtyMinutes:  "30m",
	Hour:           "1h",
	FourHours:      "4h",
	Day:            "1d",
	Week:           "1w",
}

// byName is the inverse of names, for parsing configuration.
var byName = func() map[string]Interval {
	m := make(map[string]Interval, len(names))
	for iv, n := range names {
		m[n] = iv
	}
	return m
}()

// Parse looks up an Interval by its short display name (e.g. "5m"). ok is
// false for an unrecognized name.
func Parse(s string) (iv Interval, ok bool) {
	iv, ok = byName[s]
	return iv, ok
}

// Seconds returns the duration of this interval in seconds.
func (i Interval) Seconds() int64 { return seconds[i] }

// String returns a short display name, e.g. "5m".
func (i Interval) String() string {
	if n, ok := names[i]; ok {
		return n
	}
	return "unknown"
}

// AllowedAsSource reports whether this interval may be used as a Source's
// sampling interval. Sub-day quanta up to hour-level are allowed; day/week
// are reserved for digests.
func (i Interval) AllowedAsSource() bool {
	return i.Seconds() <= Hour.Seconds()
}

// AllowedAsDigest reports whether this interval may be used as a digest over
// a source sampled at finer. It must be strictly coarser and an exact
// multiple of finer.
func (i Interval) AllowedAsDigest(finer Interval) bool {
	is, fs := i.Seconds(), finer.Seconds()
	return is > fs && is%fs == 0
}

// Round floors ts to the nearest multiple of this interval, in UTC.
func (i Interval) Round(ts time.Time) time.Time {
	secs := i.Seconds()
	unix := ts.Unix()
	floored := unix - (unix % secs)
	return time.Unix(floored, 0).UTC()
}
