package booking

import (
	"slices"
	"time"
)

// rankCandidates filters waitlist entries down to those matching the freed
// slot and orders them by priority score, breaking ties by how long the
// client has been waiting. Both comparisons are descending.
//
// A candidate matches when the slot's weekday is one of their preferred days
// and their time window overlaps the slot. Windows that merely touch the
// slot's edge do not count as overlapping.
func rankCandidates(candidates []WaitlistCandidate, date time.Time, startTime, endTime string) []WaitlistCandidate {
	var matching []WaitlistCandidate
	for _, candidate := range candidates {
		if !slices.Contains(candidate.PreferredDays, date.Weekday()) {
			continue
		}
		if candidate.WindowStart >= endTime || candidate.WindowEnd <= startTime {
			continue
		}
		matching = append(matching, candidate)
	}

	slices.SortStableFunc(matching, func(a, b WaitlistCandidate) int {
		switch {
		case a.PriorityScore > b.PriorityScore:
			return -1
		case a.PriorityScore < b.PriorityScore:
			return 1
		}
		return b.DaysWaiting - a.DaysWaiting
	})

	return matching
}
