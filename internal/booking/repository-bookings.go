package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ilmarik/fitcoach/internal/contexthelpers"
)

// Conflict reasons surfaced in skipped occurrences and availability previews.
// These are user-facing strings, keep them stable.
const (
	reasonSlotBooked     = "slot already booked"
	reasonCoachBlocked   = "coach has blocked this time"
	reasonNoAvailability = "outside coach availability"
)

// sqliteBookingRepository persists bookings and runs the conflict checks that
// both series generation and availability previews share.
type sqliteBookingRepository struct {
	baseRepository
}

// conflictReason reports why the coach cannot take the given slot, or an
// empty string when the slot is free. Checks run in precedence order:
// existing bookings first, then blocks, then the weekly availability grid.
func (r *sqliteBookingRepository) conflictReason(
	ctx context.Context,
	q querier,
	coachID int64,
	date time.Time,
	startTime, endTime string,
) (string, error) {
	dateStr := formatDate(date)

	var overlapping int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE coach_id = ? AND booking_date = ? AND status != 'cancelled'
		AND start_time < ? AND end_time > ?`,
		coachID, dateStr, endTime, startTime).Scan(&overlapping)
	if err != nil {
		return "", fmt.Errorf("query overlapping bookings: %w", err)
	}
	if overlapping > 0 {
		return reasonSlotBooked, nil
	}

	var blocked int
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM coach_blocks
		WHERE coach_id = ? AND block_date = ?
		AND ((start_time IS NULL AND end_time IS NULL) OR (start_time < ? AND end_time > ?))`,
		coachID, dateStr, endTime, startTime).Scan(&blocked)
	if err != nil {
		return "", fmt.Errorf("query coach blocks: %w", err)
	}
	if blocked > 0 {
		return reasonCoachBlocked, nil
	}

	var available int
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM coach_availability
		WHERE coach_id = ? AND weekday = ? AND start_time <= ? AND end_time >= ?`,
		coachID, int(date.Weekday()), startTime, endTime).Scan(&available)
	if err != nil {
		return "", fmt.Errorf("query coach availability: %w", err)
	}
	if available == 0 {
		return reasonNoAvailability, nil
	}

	return "", nil
}

// checkDates previews the conflict status of candidate dates against current
// calendar state, without taking any locks.
func (r *sqliteBookingRepository) checkDates(
	ctx context.Context,
	coachID int64,
	dates []time.Time,
	startTime, endTime string,
) ([]AvailabilityCheck, error) {
	checks := make([]AvailabilityCheck, 0, len(dates))
	for _, date := range dates {
		reason, err := r.conflictReason(ctx, r.db.ReadOnly, coachID, date, startTime, endTime)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", formatDate(date), err)
		}
		checks = append(checks, AvailabilityCheck{
			Date:      date,
			Available: reason == "",
			Reason:    reason,
		})
	}
	return checks, nil
}

// createSeries inserts one booking per conflict-free candidate date inside a
// single transaction. Every candidate is re-checked against the transaction's
// view so that bookings committed between preview and confirm are seen.
//
// When abortOnFirstConflict is set, a conflict on the first candidate fails
// the whole series; conflicts on later candidates are still recorded as
// skipped occurrences.
func (r *sqliteBookingRepository) createSeries(
	ctx context.Context,
	base Booking,
	dates []time.Time,
	seriesID string,
	abortOnFirstConflict bool,
) (created []Booking, skipped []SkippedOccurrence, err error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	for i, date := range dates {
		var reason string
		reason, err = r.conflictReason(ctx, tx, coachID, date, base.StartTime, base.EndTime)
		if err != nil {
			return nil, nil, fmt.Errorf("check candidate %s: %w", formatDate(date), err)
		}

		if reason != "" {
			if abortOnFirstConflict && i == 0 {
				return nil, nil, fmt.Errorf("%w: %s on %s", ErrFirstOccurrenceConflict, reason, formatDate(date))
			}
			skipped = append(skipped, SkippedOccurrence{Date: date, Reason: reason})
			continue
		}

		// Indexes count created bookings, not candidates, so a skipped
		// date leaves no gap in the series numbering.
		occurrenceIndex := len(created)

		var result sql.Result
		result, err = tx.ExecContext(ctx, `
			INSERT INTO bookings (
				coach_id, client_id, booking_date, start_time, end_time,
				status, recurring_series_id, occurrence_index, location_type
			) VALUES (?, ?, ?, ?, ?, 'confirmed', ?, ?, ?)`,
			coachID, base.ClientID, formatDate(date), base.StartTime, base.EndTime,
			seriesID, occurrenceIndex, base.LocationType)
		if err != nil {
			return nil, nil, fmt.Errorf("insert occurrence %d: %w", occurrenceIndex, err)
		}

		var id int64
		if id, err = result.LastInsertId(); err != nil {
			return nil, nil, fmt.Errorf("last insert id: %w", err)
		}

		created = append(created, Booking{
			ID:              id,
			CoachID:         coachID,
			ClientID:        base.ClientID,
			Date:            date,
			StartTime:       base.StartTime,
			EndTime:         base.EndTime,
			Status:          StatusConfirmed,
			SeriesID:        seriesID,
			OccurrenceIndex: occurrenceIndex,
			LocationType:    base.LocationType,
		})
	}

	if len(created) > 0 {
		// Booking a series establishes the coach/client relationship.
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO coach_client_relationships (coach_id, client_id, status)
			VALUES (?, ?, 'active')
			ON CONFLICT (coach_id, client_id) DO UPDATE SET status = 'active'`,
			coachID, base.ClientID); err != nil {
			return nil, nil, fmt.Errorf("upsert coach client relationship: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit transaction: %w", err)
	}

	return created, skipped, nil
}

// get retrieves a single booking owned by the authenticated coach.
func (r *sqliteBookingRepository) get(ctx context.Context, id int64) (Booking, error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	var (
		b               Booking
		dateStr         string
		reason          sql.NullString
		seriesID        sql.NullString
		occurrenceIndex sql.NullInt64
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, coach_id, client_id, booking_date, start_time, end_time,
		       status, cancellation_reason, recurring_series_id, occurrence_index, location_type
		FROM bookings
		WHERE id = ? AND coach_id = ?`,
		id, coachID).Scan(
		&b.ID, &b.CoachID, &b.ClientID, &dateStr, &b.StartTime, &b.EndTime,
		&b.Status, &reason, &seriesID, &occurrenceIndex, &b.LocationType)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("query booking: %w", err)
	}

	if b.Date, err = parseDate(dateStr); err != nil {
		return Booking{}, fmt.Errorf("parse booking date: %w", err)
	}
	b.CancellationReason = reason.String
	b.SeriesID = seriesID.String
	if occurrenceIndex.Valid {
		b.OccurrenceIndex = int(occurrenceIndex.Int64)
	}
	return b, nil
}

// listSeries returns all occurrences of a series in chronological order.
func (r *sqliteBookingRepository) listSeries(ctx context.Context, seriesID string) (_ []Booking, err error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, coach_id, client_id, booking_date, start_time, end_time,
		       status, cancellation_reason, occurrence_index, location_type
		FROM bookings
		WHERE recurring_series_id = ? AND coach_id = ?
		ORDER BY occurrence_index`,
		seriesID, coachID)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var bookings []Booking
	for rows.Next() {
		var (
			b       Booking
			dateStr string
			reason  sql.NullString
		)
		if err = rows.Scan(&b.ID, &b.CoachID, &b.ClientID, &dateStr, &b.StartTime, &b.EndTime,
			&b.Status, &reason, &b.OccurrenceIndex, &b.LocationType); err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		if b.Date, err = parseDate(dateStr); err != nil {
			return nil, fmt.Errorf("parse booking date: %w", err)
		}
		b.CancellationReason = reason.String
		b.SeriesID = seriesID
		bookings = append(bookings, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return bookings, nil
}

// cancel marks confirmed bookings in a series as cancelled, returning the
// number of bookings affected. fromIndex narrows the scope to occurrences at
// or after that index; pass a negative index to cancel the whole series.
func (r *sqliteBookingRepository) cancel(
	ctx context.Context,
	seriesID string,
	fromIndex int,
	reason string,
) (int, error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	query := `
		UPDATE bookings
		SET status = 'cancelled', cancellation_reason = ?
		WHERE recurring_series_id = ? AND coach_id = ? AND status = 'confirmed'`
	args := []any{reason, seriesID, coachID}
	if fromIndex >= 0 {
		query += " AND occurrence_index >= ?"
		args = append(args, fromIndex)
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cancel series: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(affected), nil
}

// cancelOne cancels a single confirmed booking by id.
func (r *sqliteBookingRepository) cancelOne(ctx context.Context, id int64, reason string) error {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancellation_reason = ?
		WHERE id = ? AND coach_id = ? AND status = 'confirmed'`,
		reason, id, coachID)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
