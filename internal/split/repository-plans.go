package split

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ilmarik/fitcoach/internal/contexthelpers"
)

// sqlitePlanRepository persists split plans and the per-user cycle pointer.
type sqlitePlanRepository struct {
	baseRepository
}

// create inserts a plan and activates it for the user, resetting the cycle
// pointer to day 1. The cycles completed counter survives plan switches.
func (r *sqlitePlanRepository) create(ctx context.Context, plan Plan) (_ int64, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	sessionsJSON, frequencyJSON, volumeJSON, err := marshalPlanColumns(plan)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO split_plans (user_id, name, split_type, cycle_days, sessions, frequency_map, volume_distribution)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, plan.Name, plan.SplitType, plan.CycleDays, sessionsJSON, frequencyJSON, volumeJSON)
	if err != nil {
		return 0, fmt.Errorf("insert plan: %w", err)
	}
	planID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO training_cycles (user_id, active_split_plan_id, current_cycle_day)
		VALUES (?, ?, 1)
		ON CONFLICT (user_id) DO UPDATE SET
			active_split_plan_id = excluded.active_split_plan_id,
			current_cycle_day = 1`,
		userID, planID); err != nil {
		return 0, fmt.Errorf("activate plan: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return planID, nil
}

// getActive returns the user's active plan together with the cycle state.
func (r *sqlitePlanRepository) getActive(ctx context.Context) (Plan, CycleState, error) {
	plan, state, err := r.getActiveWith(ctx, r.db.ReadOnly)
	if err != nil {
		return Plan{}, CycleState{}, err
	}
	return plan, state, nil
}

// getActiveWith loads the active plan through the given querier so it can
// participate in a write transaction.
func (r *sqlitePlanRepository) getActiveWith(ctx context.Context, q querier) (Plan, CycleState, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	var state CycleState
	row := q.QueryRowContext(ctx, `
		SELECT p.id, p.user_id, p.name, p.split_type, p.cycle_days,
		       p.sessions, p.frequency_map, p.volume_distribution
		FROM training_cycles tc
		JOIN split_plans p ON p.id = tc.active_split_plan_id
		WHERE tc.user_id = ?`,
		userID)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, CycleState{}, ErrNoActiveSplit
	}
	if err != nil {
		return Plan{}, CycleState{}, fmt.Errorf("query active plan: %w", err)
	}

	err = q.QueryRowContext(ctx, `
		SELECT active_split_plan_id, current_cycle_day, cycles_completed
		FROM training_cycles
		WHERE user_id = ?`,
		userID).Scan(&state.ActivePlanID, &state.CurrentDay, &state.CyclesCompleted)
	if err != nil {
		return Plan{}, CycleState{}, fmt.Errorf("query cycle state: %w", err)
	}

	return plan, state, nil
}

// savePlanTx persists the mutable plan columns inside a transaction.
func (r *sqlitePlanRepository) savePlanTx(ctx context.Context, tx *sql.Tx, plan Plan) error {
	sessionsJSON, frequencyJSON, volumeJSON, err := marshalPlanColumns(plan)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE split_plans
		SET split_type = ?, cycle_days = ?, sessions = ?, frequency_map = ?, volume_distribution = ?
		WHERE id = ? AND user_id = ?`,
		plan.SplitType, plan.CycleDays, sessionsJSON, frequencyJSON, volumeJSON,
		plan.ID, plan.UserID)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
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
