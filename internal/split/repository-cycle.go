package split

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ilmarik/fitcoach/internal/contexthelpers"
)

// advance moves the user one day forward in their cycle. A plain advance is
// a single update; a wraparound additionally aggregates the cycle's
// completed workouts into an immutable snapshot and resets the pointer, all
// inside one transaction so the snapshot, the reset and the counter bump
// land together or not at all.
//
// The cycle wraps when the current day has reached the plan's cycle length.
// Using >= instead of == also recovers pointers left beyond the end by a
// shortened plan.
func (r *sqlitePlanRepository) advance(ctx context.Context, workouts *sqliteWorkoutRepository) (_ AdvanceResult, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return AdvanceResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	plan, state, err := r.getActiveWith(ctx, tx)
	if err != nil {
		return AdvanceResult{}, err
	}

	if state.CurrentDay < plan.CycleDays {
		if _, err = tx.ExecContext(ctx, `
			UPDATE training_cycles SET current_cycle_day = current_cycle_day + 1
			WHERE user_id = ?`,
			userID); err != nil {
			return AdvanceResult{}, fmt.Errorf("advance cycle day: %w", err)
		}
		if err = tx.Commit(); err != nil {
			return AdvanceResult{}, fmt.Errorf("commit transaction: %w", err)
		}
		return AdvanceResult{
			CurrentDay:      state.CurrentDay + 1,
			CyclesCompleted: state.CyclesCompleted,
		}, nil
	}

	completion, err := r.completeCycleTx(ctx, tx, workouts, userID, plan, state)
	if err != nil {
		return AdvanceResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return AdvanceResult{}, fmt.Errorf("commit transaction: %w", err)
	}

	return AdvanceResult{
		CurrentDay:      1,
		CyclesCompleted: state.CyclesCompleted + 1,
		Wrapped:         true,
		Completion:      &completion,
	}, nil
}

// completeCycleTx writes the completion snapshot, stamps the aggregated
// workouts with their cycle number and resets the cycle pointer.
func (r *sqlitePlanRepository) completeCycleTx(
	ctx context.Context,
	tx *sql.Tx,
	workouts *sqliteWorkoutRepository,
	userID int64,
	plan Plan,
	state CycleState,
) (CycleCompletion, error) {
	completed, err := workouts.listUnrolledCompletedTx(ctx, tx, userID, plan.ID)
	if err != nil {
		return CycleCompletion{}, fmt.Errorf("list completed workouts: %w", err)
	}

	completion := aggregateCompletion(state.CyclesCompleted+1, completed)

	muscleVolumesJSON, err := json.Marshal(completion.MuscleVolumes)
	if err != nil {
		return CycleCompletion{}, fmt.Errorf("marshal muscle volumes: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO cycle_completions (
			user_id, split_plan_id, cycle_number, total_volume_kg, total_workouts,
			total_sets, total_duration_minutes, avg_readiness, muscle_volumes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, plan.ID, completion.CycleNumber, completion.TotalVolumeKg, completion.TotalWorkouts,
		completion.TotalSets, completion.TotalDurationMinutes, completion.AvgReadiness,
		string(muscleVolumesJSON)); err != nil {
		return CycleCompletion{}, fmt.Errorf("insert cycle completion: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE workouts SET cycle_number = ?
		WHERE user_id = ? AND split_plan_id = ? AND status = 'completed' AND cycle_number IS NULL`,
		completion.CycleNumber, userID, plan.ID); err != nil {
		return CycleCompletion{}, fmt.Errorf("stamp workouts: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE training_cycles
		SET current_cycle_day = 1, cycles_completed = cycles_completed + 1
		WHERE user_id = ?`,
		userID); err != nil {
		return CycleCompletion{}, fmt.Errorf("reset cycle: %w", err)
	}

	return completion, nil
}

// aggregateCompletion folds completed workouts into a cycle snapshot.
func aggregateCompletion(cycleNumber int, workouts []Workout) CycleCompletion {
	completion := CycleCompletion{
		CycleNumber:   cycleNumber,
		MuscleVolumes: map[string]float64{},
	}

	var readinessSum, readinessCount int
	for _, w := range workouts {
		completion.TotalWorkouts++
		completion.TotalVolumeKg += w.TotalVolumeKg
		completion.TotalSets += w.TotalSets
		completion.TotalDurationMinutes += w.DurationMinutes
		if w.Readiness != nil {
			readinessSum += *w.Readiness
			readinessCount++
		}
		for muscle, volume := range w.MuscleVolumes {
			completion.MuscleVolumes[muscle] += volume
		}
	}

	if readinessCount > 0 {
		avg := float64(readinessSum) / float64(readinessCount)
		completion.AvgReadiness = &avg
	}

	return completion
}

// listCompletions returns the user's cycle history, newest first.
func (r *sqlitePlanRepository) listCompletions(ctx context.Context, planID int64) (_ []CycleCompletion, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT cycle_number, total_volume_kg, total_workouts, total_sets,
		       total_duration_minutes, avg_readiness, muscle_volumes
		FROM cycle_completions
		WHERE user_id = ? AND split_plan_id = ?
		ORDER BY cycle_number DESC`,
		userID, planID)
	if err != nil {
		return nil, fmt.Errorf("query cycle completions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var completions []CycleCompletion
	for rows.Next() {
		var (
			completion        CycleCompletion
			avgReadiness      sql.NullFloat64
			muscleVolumesJSON string
		)
		if err = rows.Scan(&completion.CycleNumber, &completion.TotalVolumeKg, &completion.TotalWorkouts,
			&completion.TotalSets, &completion.TotalDurationMinutes, &avgReadiness, &muscleVolumesJSON); err != nil {
			return nil, fmt.Errorf("scan completion row: %w", err)
		}
		if avgReadiness.Valid {
			completion.AvgReadiness = &avgReadiness.Float64
		}
		if err = json.Unmarshal([]byte(muscleVolumesJSON), &completion.MuscleVolumes); err != nil {
			return nil, fmt.Errorf("parse muscle volumes: %w", err)
		}
		completions = append(completions, completion)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return completions, nil
}
