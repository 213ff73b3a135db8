package booking

import (
	"fmt"
	"slices"
	"time"

	"github.com/ilmarik/fitcoach/internal/errors"
)

// maxSeriesOccurrences caps pattern expansion so an open-ended or distant
// until date cannot flood a coach's calendar.
const maxSeriesOccurrences = 52

var (
	ErrEmptyPattern   = errors.NewSentinel("booking: pattern produces no occurrences")
	ErrInvalidPattern = errors.NewSentinel("booking: invalid recurrence pattern")
)

// validatePattern rejects patterns that cannot be expanded. Count and Until
// are mutually exclusive end conditions.
func validatePattern(p Pattern) error {
	if p.Frequency != FrequencyWeekly && p.Frequency != FrequencyBiweekly {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, p.Frequency)
	}
	if len(p.Weekdays) == 0 {
		return fmt.Errorf("%w: no weekdays selected", ErrInvalidPattern)
	}
	for _, wd := range p.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidPattern, wd)
		}
	}
	hasCount := p.Count > 0
	hasUntil := !p.Until.IsZero()
	if hasCount == hasUntil {
		return fmt.Errorf("%w: exactly one of count and until must be set", ErrInvalidPattern)
	}
	start, err := time.Parse(timeFormat, p.StartTime)
	if err != nil {
		return fmt.Errorf("%w: parse start time: %v", ErrInvalidPattern, err)
	}
	end, err := time.Parse(timeFormat, p.EndTime)
	if err != nil {
		return fmt.Errorf("%w: parse end time: %v", ErrInvalidPattern, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start time %s is not before end time %s", ErrInvalidPattern, p.StartTime, p.EndTime)
	}
	return nil
}

// expandPattern turns a pattern into concrete candidate dates, walking day by
// day from the anchor date. For biweekly patterns every other 7-day window
// counted from the anchor is skipped. The result is chronological and capped
// at maxSeriesOccurrences.
func expandPattern(anchor time.Time, p Pattern) ([]time.Time, error) {
	if err := validatePattern(p); err != nil {
		return nil, err
	}

	anchor = truncateToDate(anchor)
	limit := maxSeriesOccurrences
	if p.Count > 0 && p.Count < limit {
		limit = p.Count
	}

	var dates []time.Time
	for day := 0; len(dates) < limit; day++ {
		date := anchor.AddDate(0, 0, day)

		if !p.Until.IsZero() && date.After(truncateToDate(p.Until)) {
			break
		}

		if !slices.Contains(p.Weekdays, date.Weekday()) {
			continue
		}
		if p.Frequency == FrequencyBiweekly && (day/7)%2 == 1 {
			continue
		}

		dates = append(dates, date)
	}

	if len(dates) == 0 {
		return nil, ErrEmptyPattern
	}
	return dates, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
