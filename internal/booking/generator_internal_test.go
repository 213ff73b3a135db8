package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestExpandPattern(t *testing.T) {
	// 2025-06-02 is a Monday.
	monday := date(2025, time.June, 2)

	testCases := []struct {
		name    string
		anchor  time.Time
		pattern Pattern
		want    []time.Time
	}{
		{
			name:   "weekly Monday and Wednesday for four occurrences",
			anchor: monday,
			pattern: Pattern{
				Frequency: FrequencyWeekly,
				Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
				StartTime: "10:00",
				EndTime:   "11:00",
				Count:     4,
			},
			want: []time.Time{
				date(2025, time.June, 2),
				date(2025, time.June, 4),
				date(2025, time.June, 9),
				date(2025, time.June, 11),
			},
		},
		{
			name:   "biweekly skips every other week",
			anchor: monday,
			pattern: Pattern{
				Frequency: FrequencyBiweekly,
				Weekdays:  []time.Weekday{time.Monday},
				StartTime: "10:00",
				EndTime:   "11:00",
				Count:     3,
			},
			want: []time.Time{
				date(2025, time.June, 2),
				date(2025, time.June, 16),
				date(2025, time.June, 30),
			},
		},
		{
			name:   "until date bounds the series",
			anchor: monday,
			pattern: Pattern{
				Frequency: FrequencyWeekly,
				Weekdays:  []time.Weekday{time.Monday},
				StartTime: "10:00",
				EndTime:   "11:00",
				Until:     date(2025, time.June, 15),
			},
			want: []time.Time{
				date(2025, time.June, 2),
				date(2025, time.June, 9),
			},
		},
		{
			name: "anchor before the first selected weekday",
			// Tuesday anchor, Wednesday series.
			anchor: date(2025, time.June, 3),
			pattern: Pattern{
				Frequency: FrequencyWeekly,
				Weekdays:  []time.Weekday{time.Wednesday},
				StartTime: "10:00",
				EndTime:   "11:00",
				Count:     2,
			},
			want: []time.Time{
				date(2025, time.June, 4),
				date(2025, time.June, 11),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := expandPattern(tc.anchor, tc.pattern)
			if err != nil {
				t.Fatalf("expandPattern: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("occurrence dates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpandPattern_capsOpenEndedSeries(t *testing.T) {
	pattern := Pattern{
		Frequency: FrequencyWeekly,
		Weekdays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		StartTime: "10:00",
		EndTime:   "11:00",
		Until:     date(2030, time.January, 1),
	}

	got, err := expandPattern(date(2025, time.June, 2), pattern)
	if err != nil {
		t.Fatalf("expandPattern: %v", err)
	}
	if len(got) != maxSeriesOccurrences {
		t.Errorf("occurrence count = %d, want cap %d", len(got), maxSeriesOccurrences)
	}
}

func TestExpandPattern_rejectsInvalidPatterns(t *testing.T) {
	valid := Pattern{
		Frequency: FrequencyWeekly,
		Weekdays:  []time.Weekday{time.Monday},
		StartTime: "10:00",
		EndTime:   "11:00",
		Count:     4,
	}

	testCases := []struct {
		name   string
		mutate func(p *Pattern)
	}{
		{"no weekdays", func(p *Pattern) { p.Weekdays = nil }},
		{"unknown frequency", func(p *Pattern) { p.Frequency = "monthly" }},
		{"both count and until", func(p *Pattern) { p.Until = date(2025, time.July, 1) }},
		{"neither count nor until", func(p *Pattern) { p.Count = 0 }},
		{"start not before end", func(p *Pattern) { p.StartTime = "11:00" }},
		{"malformed time", func(p *Pattern) { p.StartTime = "10am" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pattern := valid
			tc.mutate(&pattern)

			_, err := expandPattern(date(2025, time.June, 2), pattern)
			if !errors.Is(err, ErrInvalidPattern) {
				t.Errorf("error = %v, want ErrInvalidPattern", err)
			}
		})
	}
}
