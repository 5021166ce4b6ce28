package audit

import (
	"sort"
	"time"
)

// BuildSchedule returns the re-audit times for a campaign certified at start,
// earliest first.
func BuildSchedule(start time.Time, offsets []time.Duration) []time.Time {
	out := make([]time.Time, 0, len(offsets))
	for _, d := range offsets {
		if d <= 0 {
			continue
		}
		out = append(out, start.Add(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Unix converts a schedule for storage.
func Unix(ts []time.Time) []int64 {
	out := make([]int64, len(ts))
	for i, t := range ts {
		out[i] = t.Unix()
	}
	return out
}

// Due reports the audits in next that are at or before now.
func Due(next []int64, now time.Time) []int64 {
	var out []int64
	for _, u := range next {
		if u <= now.Unix() {
			out = append(out, u)
		}
	}
	return out
}
