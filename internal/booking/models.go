package booking

import (
	"time"
)

// Status represents the lifecycle state of a booking. A confirmed booking can
// transition to any of the other states; all of them are terminal.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Frequency of a recurring series.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
)

// CancelScope selects which occurrences of a series to cancel.
type CancelScope string

const (
	// ScopeSingle cancels exactly one booking.
	ScopeSingle CancelScope = "single"
	// ScopeFollowing cancels a booking and every later occurrence in its series.
	ScopeFollowing CancelScope = "following"
	// ScopeAll cancels every non-cancelled booking in the series.
	ScopeAll CancelScope = "all"
)

// Booking is one coach/client appointment. Occurrences generated from a
// recurring pattern share a SeriesID and carry their chronological
// OccurrenceIndex; standalone bookings have an empty SeriesID.
type Booking struct {
	ID                 int64     `json:"id"`
	CoachID            int64     `json:"coach_id"`
	ClientID           int64     `json:"client_id"`
	Date               time.Time `json:"date"`
	StartTime          string    `json:"start_time"` // 15:04
	EndTime            string    `json:"end_time"`
	Status             Status    `json:"status"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	SeriesID           string    `json:"series_id,omitempty"`
	OccurrenceIndex    int       `json:"occurrence_index"`
	LocationType       string    `json:"location_type"`
}

// Pattern describes a recurring series: which weekdays, at what time slot,
// and when to stop. Exactly one of Count and Until ends the series.
type Pattern struct {
	Frequency Frequency      `json:"frequency"`
	Weekdays  []time.Weekday `json:"weekdays"`
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Count     int            `json:"count,omitempty"`
	Until     time.Time      `json:"until,omitzero"`
}

// SkippedOccurrence records why a candidate date was not booked.
type SkippedOccurrence struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// SeriesResult is the partial-success outcome of series generation. A
// non-empty Skipped next to a non-empty Created means success with warnings,
// not failure.
type SeriesResult struct {
	SeriesID string              `json:"series_id"`
	Created  []Booking           `json:"created"`
	Skipped  []SkippedOccurrence `json:"skipped"`
}

// AvailabilityCheck is the preview counterpart of a generation candidate.
type AvailabilityCheck struct {
	Date      time.Time `json:"date"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// Block is a coach-declared unavailability window. Empty start and end times
// block the whole day.
type Block struct {
	ID        int64     `json:"id"`
	CoachID   int64     `json:"coach_id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// WaitlistCandidate is a ranked waitlist entry for a freed slot. The priority
// score is computed elsewhere; this package only orders by it.
type WaitlistCandidate struct {
	ID            int64          `json:"id"`
	CoachID       int64          `json:"coach_id"`
	ClientID      int64          `json:"client_id"`
	PreferredDays []time.Weekday `json:"preferred_days"`
	WindowStart   string         `json:"window_start"`
	WindowEnd     string         `json:"window_end"`
	PriorityScore float64        `json:"priority_score"`
	DaysWaiting   int            `json:"days_waiting"`
}
