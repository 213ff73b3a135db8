package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ilmarik/fitcoach/internal/contexthelpers"
)

// sqliteBlockRepository persists coach unavailability blocks and the weekly
// availability grid the conflict checks read from.
type sqliteBlockRepository struct {
	baseRepository
}

// createBlock records an unavailability window for the authenticated coach.
func (r *sqliteBlockRepository) createBlock(ctx context.Context, block Block) (int64, error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	var startTime, endTime any
	if block.StartTime != "" {
		startTime = block.StartTime
	}
	if block.EndTime != "" {
		endTime = block.EndTime
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO coach_blocks (coach_id, block_date, start_time, end_time, reason)
		VALUES (?, ?, ?, ?, ?)`,
		coachID, formatDate(block.Date), startTime, endTime, block.Reason)
	if err != nil {
		return 0, fmt.Errorf("insert block: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// setWeeklyAvailability replaces the coach's availability windows for one
// weekday. An empty windows slice clears the day.
func (r *sqliteBlockRepository) setWeeklyAvailability(
	ctx context.Context,
	weekday int,
	windows []Block,
) (err error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM coach_availability WHERE coach_id = ? AND weekday = ?`,
		coachID, weekday); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}

	for _, window := range windows {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO coach_availability (coach_id, weekday, start_time, end_time)
			VALUES (?, ?, ?, ?)`,
			coachID, weekday, window.StartTime, window.EndTime); err != nil {
			return fmt.Errorf("insert availability window: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
