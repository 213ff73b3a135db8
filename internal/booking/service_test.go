package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ilmarik/fitcoach/internal/booking"
	"github.com/ilmarik/fitcoach/internal/contexthelpers"
	"github.com/ilmarik/fitcoach/internal/sqlite"
)

const (
	testCoachID  = int64(1)
	testClientID = int64(2)
)

// noopNotifier satisfies booking.Notifier for tests that don't assert on
// notifications.
type noopNotifier struct{}

func (noopNotifier) SeriesBooked(context.Context, int64, []booking.Booking) {}
func (noopNotifier) SeriesCancelled(context.Context, int64, int, string)    {}

// newTestService spins up an in-memory database seeded with a coach, a
// client, and full-week 06:00-22:00 coach availability.
func newTestService(t *testing.T) (context.Context, *booking.Service, *sqlite.Database) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.NewDatabase(t.Context(), ":memory:", logger)
	if err != nil {
		t.Fatalf("create test database: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("close database: %v", closeErr)
		}
	})

	ctx := t.Context()
	for _, user := range []struct {
		id      int64
		name    string
		isCoach bool
	}{
		{testCoachID, "Coach", true},
		{testClientID, "Client", false},
	} {
		if _, err = db.ReadWrite.ExecContext(ctx,
			"INSERT INTO users (id, display_name, is_coach) VALUES (?, ?, ?)",
			user.id, user.name, user.isCoach); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}

	for weekday := range 7 {
		if _, err = db.ReadWrite.ExecContext(ctx,
			"INSERT INTO coach_availability (coach_id, weekday, start_time, end_time) VALUES (?, ?, ?, ?)",
			testCoachID, weekday, "06:00", "22:00"); err != nil {
			t.Fatalf("insert availability: %v", err)
		}
	}

	ctx = context.WithValue(ctx, contexthelpers.AuthenticatedUserIDContextKey, testCoachID)
	ctx = context.WithValue(ctx, contexthelpers.IsAuthenticatedContextKey, true)
	ctx = context.WithValue(ctx, contexthelpers.IsCoachContextKey, true)

	return ctx, booking.NewService(db, logger, noopNotifier{}), db
}

func weeklyPattern(weekdays []time.Weekday, count int) booking.Pattern {
	return booking.Pattern{
		Frequency: booking.FrequencyWeekly,
		Weekdays:  weekdays,
		StartTime: "10:00",
		EndTime:   "11:00",
		Count:     count,
	}
}

// monday is the anchor used throughout: 2025-06-02.
var monday = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

func TestCreateRecurringSeries_booksAllFreeOccurrences(t *testing.T) {
	ctx, svc, db := newTestService(t)

	pattern := weeklyPattern([]time.Weekday{time.Monday, time.Wednesday}, 4)
	result, err := svc.CreateRecurringSeries(ctx, testClientID, monday, pattern, "gym", true)
	if err != nil {
		t.Fatalf("CreateRecurringSeries: %v", err)
	}

	if result.SeriesID == "" {
		t.Error("series id is empty")
	}
	if len(result.Skipped) != 0 {
		t.Errorf("skipped = %v, want none", result.Skipped)
	}

	wantDates := []string{"2025-06-02", "2025-06-04", "2025-06-09", "2025-06-11"}
	if len(result.Created) != len(wantDates) {
		t.Fatalf("created %d bookings, want %d", len(result.Created), len(wantDates))
	}
	for i, b := range result.Created {
		if got := b.Date.Format(time.DateOnly); got != wantDates[i] {
			t.Errorf("booking %d date = %s, want %s", i, got, wantDates[i])
		}
		if b.OccurrenceIndex != i {
			t.Errorf("booking %d occurrence index = %d, want %d", i, b.OccurrenceIndex, i)
		}
		if b.Status != booking.StatusConfirmed {
			t.Errorf("booking %d status = %s, want confirmed", i, b.Status)
		}
	}

	var persisted int
	if err = db.ReadOnly.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE recurring_series_id = ? AND status = 'confirmed'",
		result.SeriesID).Scan(&persisted); err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if persisted != 4 {
		t.Errorf("persisted bookings = %d, want 4", persisted)
	}

	// The first booked series establishes the coach/client relationship.
	var relationshipStatus string
	if err = db.ReadOnly.QueryRowContext(ctx,
		"SELECT status FROM coach_client_relationships WHERE coach_id = ? AND client_id = ?",
		testCoachID, testClientID).Scan(&relationshipStatus); err != nil {
		t.Fatalf("query relationship: %v", err)
	}
	if relationshipStatus != "active" {
		t.Errorf("relationship status = %q, want active", relationshipStatus)
	}
}

func TestCreateRecurringSeries_skipsConflictingOccurrences(t *testing.T) {
	ctx, svc, db := newTestService(t)

	// Occupy the second candidate slot, Wednesday 2025-06-04.
	if _, err := db.ReadWrite.ExecContext(ctx, `
		INSERT INTO bookings (coach_id, client_id, booking_date, start_time, end_time, status)
		VALUES (?, ?, '2025-06-04', '10:30', '11:30', 'confirmed')`,
		testCoachID, testClientID); err != nil {
		t.Fatalf("insert conflicting booking: %v", err)
	}

	pattern := weeklyPattern([]time.Weekday{time.Monday, time.Wednesday}, 4)
	result, err := svc.CreateRecurringSeries(ctx, testClientID, monday, pattern, "gym", true)
	if err != nil {
		t.Fatalf("CreateRecurringSeries: %v", err)
	}

	if len(result.Created) != 3 {
		t.Errorf("created %d bookings, want 3", len(result.Created))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("skipped %d occurrences, want 1", len(result.Skipped))
	}
	skipped := result.Skipped[0]
	if got := skipped.Date.Format(time.DateOnly); got != "2025-06-04" {
		t.Errorf("skipped date = %s, want 2025-06-04", got)
	}
	if skipped.Reason != "slot already booked" {
		t.Errorf("skipped reason = %q, want %q", skipped.Reason, "slot already booked")
	}

	// Skipped dates leave no gaps: created bookings number 0..N-1.
	for i, b := range result.Created {
		if b.OccurrenceIndex != i {
			t.Errorf("created[%d].OccurrenceIndex = %d, want %d", i, b.OccurrenceIndex, i)
		}
	}
}

func TestCreateRecurringSeries_allConflictsIsSuccessWithWarnings(t *testing.T) {
	ctx, svc, db := newTestService(t)

	// Remove all availability so every candidate conflicts.
	if _, err := db.ReadWrite.ExecContext(ctx,
		"DELETE FROM coach_availability WHERE coach_id = ?", testCoachID); err != nil {
		t.Fatalf("clear availability: %v", err)
	}

	pattern := weeklyPattern([]time.Weekday{time.Monday}, 3)
	result, err := svc.CreateRecurringSeries(ctx, testClientID, monday, pattern, "gym", true)
	if err != nil {
		t.Fatalf("CreateRecurringSeries: %v", err)
	}

	if len(result.Created) != 0 {
		t.Errorf("created %d bookings, want 0", len(result.Created))
	}
	if len(result.Skipped) != 3 {
		t.Errorf("skipped %d occurrences, want 3", len(result.Skipped))
	}
	for _, skipped := range result.Skipped {
		if skipped.Reason != "outside coach availability" {
			t.Errorf("skipped reason = %q, want %q", skipped.Reason, "outside coach availability")
		}
	}
}

func TestCreateRecurringSeries_firstConflictAbortsWhenNotSkipping(t *testing.T) {
	ctx, svc, db := newTestService(t)

	// Occupy the anchor slot.
	if _, err := db.ReadWrite.ExecContext(ctx, `
		INSERT INTO bookings (coach_id, client_id, booking_date, start_time, end_time, status)
		VALUES (?, ?, '2025-06-02', '10:00', '11:00', 'confirmed')`,
		testCoachID, testClientID); err != nil {
		t.Fatalf("insert conflicting booking: %v", err)
	}

	pattern := weeklyPattern([]time.Weekday{time.Monday}, 4)
	_, err := svc.CreateRecurringSeries(ctx, testClientID, monday, pattern, "gym", false)
	if !errors.Is(err, booking.ErrFirstOccurrenceConflict) {
		t.Fatalf("error = %v, want ErrFirstOccurrenceConflict", err)
	}

	// The abort must not leave partial occurrences behind.
	var count int
	if err = db.ReadOnly.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE recurring_series_id IS NOT NULL").Scan(&count); err != nil {
		t.Fatalf("count series bookings: %v", err)
	}
	if count != 0 {
		t.Errorf("series bookings = %d, want 0", count)
	}
}

func TestCreateRecurringSeries_laterConflictDoesNotAbort(t *testing.T) {
	ctx, svc, db := newTestService(t)

	// Conflict on the second occurrence, 2025-06-09.
	if _, err := db.ReadWrite.ExecContext(ctx, `
		INSERT INTO bookings (coach_id, client_id, booking_date, start_time, end_time, status)
		VALUES (?, ?, '2025-06-09', '10:00', '11:00', 'confirmed')`,
		testCoachID, testClientID); err != nil {
		t.Fatalf("insert conflicting booking: %v", err)
	}

	pattern := weeklyPattern([]time.Weekday{time.Monday}, 3)
	result, err := svc.CreateRecurringSeries(ctx, testClientID, monday, pattern, "gym", false)
	if err != nil {
		t.Fatalf("CreateRecurringSeries: %v", err)
	}
	if len(result.Created) != 2 {
		t.Errorf("created %d bookings, want 2", len(result.Created))
	}
	if len(result.Skipped) != 1 {
		t.Errorf("skipped %d occurrences, want 1", len(result.Skipped))
	}
}

func TestCheckRecurringAvailability_agreesWithGeneration(t *testing.T) {
	ctx, svc, db := newTestService(t)

	if _, err := db.ReadWrite.ExecContext(ctx, `
		INSERT INTO coach_blocks (coach_id, block_date) VALUES (?, '2025-06-09')`,
		testCoachID); err != nil {
		t.Fatalf("insert block: %v", err)
	}

	pattern := weeklyPattern([]time.Weekday{time.Monday}, 3)

	checks, err := svc.CheckRecurringAvailability(ctx, monday, pattern)
	if err != nil {
		t.Fatalf("CheckRecurringAvailability: %v", err)
	}

	result, err := svc.CreateRecurringSeries(ctx, testClientID, monday, pattern, "gym", true)
	if err != nil {
		t.Fatalf("CreateRecurringSeries: %v", err)
	}

	// Every date the preview called unavailable must be skipped by the
	// generator with the same reason, and vice versa.
	skippedByDate := make(map[string]string)
	for _, skipped := range result.Skipped {
		skippedByDate[skipped.Date.Format(time.DateOnly)] = skipped.Reason
	}
	for _, check := range checks {
		dateStr := check.Date.Format(time.DateOnly)
		reason, wasSkipped := skippedByDate[dateStr]
		if check.Available == wasSkipped {
			t.Errorf("%s: preview available=%t but generator skipped=%t", dateStr, check.Available, wasSkipped)
		}
		if wasSkipped && reason != check.Reason {
			t.Errorf("%s: preview reason %q, generator reason %q", dateStr, check.Reason, reason)
		}
	}
	if diff := cmp.Diff(1, len(result.Skipped)); diff != "" {
		t.Errorf("skipped count mismatch (-want +got):\n%s", diff)
	}
}

func TestCancelSeries_scopes(t *testing.T) {
	createSeries := func(t *testing.T, ctx context.Context, svc *booking.Service) booking.SeriesResult {
		t.Helper()
		pattern := weeklyPattern([]time.Weekday{time.Monday}, 5)
		result, err := svc.CreateRecurringSeries(ctx, testClientID, monday, pattern, "gym", true)
		if err != nil {
			t.Fatalf("CreateRecurringSeries: %v", err)
		}
		if len(result.Created) != 5 {
			t.Fatalf("created %d bookings, want 5", len(result.Created))
		}
		return result
	}

	t.Run("single cancels exactly one occurrence", func(t *testing.T) {
		ctx, svc, _ := newTestService(t)
		series := createSeries(t, ctx, svc)

		cancelled, err := svc.CancelSeries(ctx, series.SeriesID, booking.ScopeSingle, series.Created[2].ID, "coach sick")
		if err != nil {
			t.Fatalf("CancelSeries: %v", err)
		}
		if cancelled != 1 {
			t.Errorf("cancelled = %d, want 1", cancelled)
		}

		remaining, err := svc.GetSeries(ctx, series.SeriesID)
		if err != nil {
			t.Fatalf("GetSeries: %v", err)
		}
		for _, b := range remaining {
			want := booking.StatusConfirmed
			if b.OccurrenceIndex == 2 {
				want = booking.StatusCancelled
			}
			if b.Status != want {
				t.Errorf("occurrence %d status = %s, want %s", b.OccurrenceIndex, b.Status, want)
			}
		}
	})

	t.Run("following cancels the occurrence and everything after", func(t *testing.T) {
		ctx, svc, _ := newTestService(t)
		series := createSeries(t, ctx, svc)

		cancelled, err := svc.CancelSeries(ctx, series.SeriesID, booking.ScopeFollowing, series.Created[2].ID, "schedule change")
		if err != nil {
			t.Fatalf("CancelSeries: %v", err)
		}
		if cancelled != 3 {
			t.Errorf("cancelled = %d, want 3", cancelled)
		}

		remaining, err := svc.GetSeries(ctx, series.SeriesID)
		if err != nil {
			t.Fatalf("GetSeries: %v", err)
		}
		for _, b := range remaining {
			want := booking.StatusConfirmed
			if b.OccurrenceIndex >= 2 {
				want = booking.StatusCancelled
			}
			if b.Status != want {
				t.Errorf("occurrence %d status = %s, want %s", b.OccurrenceIndex, b.Status, want)
			}
			if b.Status == booking.StatusCancelled && b.CancellationReason != "schedule change" {
				t.Errorf("occurrence %d reason = %q, want %q", b.OccurrenceIndex, b.CancellationReason, "schedule change")
			}
		}
	})

	t.Run("all cancels every confirmed occurrence", func(t *testing.T) {
		ctx, svc, _ := newTestService(t)
		series := createSeries(t, ctx, svc)

		// Cancel one occurrence up front; only the remaining confirmed
		// occurrences count towards the scope-all cancellation.
		if _, err := svc.CancelSeries(ctx, series.SeriesID, booking.ScopeSingle, series.Created[0].ID, "done early"); err != nil {
			t.Fatalf("pre-cancel: %v", err)
		}

		cancelled, err := svc.CancelSeries(ctx, series.SeriesID, booking.ScopeAll, 0, "client moved away")
		if err != nil {
			t.Fatalf("CancelSeries: %v", err)
		}
		if cancelled != 4 {
			t.Errorf("cancelled = %d, want 4", cancelled)
		}
	})

	t.Run("unknown series is not found", func(t *testing.T) {
		ctx, svc, _ := newTestService(t)

		_, err := svc.CancelSeries(ctx, "no-such-series", booking.ScopeAll, 0, "")
		if !errors.Is(err, booking.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestRankCandidatesForSlot(t *testing.T) {
	ctx, svc, db := newTestService(t)

	daysAgo := func(days int) string {
		return time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02T15:04:05.000Z")
	}

	entries := []struct {
		clientID      int64
		preferredDays string
		windowStart   string
		windowEnd     string
		priority      float64
		created       string
		status        string
	}{
		// Matches, priority 5, waiting 40 days.
		{10, "[1]", "09:00", "12:00", 5, daysAgo(40), "active"},
		// Matches, highest priority.
		{11, "[1]", "10:00", "11:00", 8, daysAgo(5), "active"},
		// Matches, ties with the first on priority but waited less.
		{12, "[1,3]", "09:00", "17:00", 5, daysAgo(10), "active"},
		// Wrong weekday.
		{13, "[2]", "09:00", "17:00", 9, daysAgo(90), "active"},
		// Window overlaps only the second half of the slot; still a match.
		{14, "[1]", "10:30", "12:00", 9, daysAgo(90), "active"},
		// Not active.
		{15, "[1]", "09:00", "17:00", 9, daysAgo(90), "booked"},
		// Window starts exactly where the slot ends; touching is not overlap.
		{16, "[1]", "11:00", "12:00", 9, daysAgo(90), "active"},
	}
	for _, entry := range entries {
		if _, err := db.ReadWrite.ExecContext(ctx, `
			INSERT INTO users (id, display_name) VALUES (?, 'Waitlisted')`, entry.clientID); err != nil {
			t.Fatalf("insert waitlist user: %v", err)
		}
		if _, err := db.ReadWrite.ExecContext(ctx, `
			INSERT INTO waitlist_entries (coach_id, client_id, preferred_days, window_start, window_end, priority_score, status, created)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			testCoachID, entry.clientID, entry.preferredDays, entry.windowStart, entry.windowEnd,
			entry.priority, entry.status, entry.created); err != nil {
			t.Fatalf("insert waitlist entry: %v", err)
		}
	}

	// Monday 10:00-11:00 slot.
	ranked, err := svc.RankCandidatesForSlot(ctx, monday, "10:00", "11:00")
	if err != nil {
		t.Fatalf("RankCandidatesForSlot: %v", err)
	}

	var gotClients []int64
	for _, candidate := range ranked {
		gotClients = append(gotClients, candidate.ClientID)
	}
	wantClients := []int64{14, 11, 10, 12}
	if diff := cmp.Diff(wantClients, gotClients); diff != "" {
		t.Errorf("ranked clients mismatch (-want +got):\n%s", diff)
	}
}
