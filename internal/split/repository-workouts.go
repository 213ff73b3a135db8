package split

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ilmarik/fitcoach/internal/contexthelpers"
)

// sqliteWorkoutRepository persists scheduled workout instances.
type sqliteWorkoutRepository struct {
	baseRepository
}

// schedule inserts a planned workout for the given cycle day.
func (r *sqliteWorkoutRepository) schedule(ctx context.Context, planID int64, cycleDay int, date time.Time) (int64, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO workouts (user_id, split_plan_id, cycle_day, workout_date)
		VALUES (?, ?, ?, ?)`,
		userID, planID, cycleDay, date.Format(dateFormat))
	if err != nil {
		return 0, fmt.Errorf("insert workout: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// complete records the metrics of a finished workout. Only planned workouts
// can transition to completed.
func (r *sqliteWorkoutRepository) complete(ctx context.Context, workoutID int64, metrics WorkoutMetrics) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	muscleVolumes, err := json.Marshal(metrics.MuscleVolumes)
	if err != nil {
		return fmt.Errorf("marshal muscle volumes: %w", err)
	}
	if metrics.MuscleVolumes == nil {
		muscleVolumes = []byte("{}")
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE workouts
		SET status = 'completed', total_volume_kg = ?, total_sets = ?,
		    duration_minutes = ?, readiness_score = ?, muscle_volumes = ?
		WHERE id = ? AND user_id = ? AND status = 'planned'`,
		metrics.TotalVolumeKg, metrics.TotalSets, metrics.DurationMinutes,
		metrics.Readiness, string(muscleVolumes), workoutID, userID)
	if err != nil {
		return fmt.Errorf("complete workout: %w", err)
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

// skip marks a planned workout as skipped.
func (r *sqliteWorkoutRepository) skip(ctx context.Context, workoutID int64) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE workouts
		SET status = 'skipped'
		WHERE id = ? AND user_id = ? AND status = 'planned'`,
		workoutID, userID)
	if err != nil {
		return fmt.Errorf("skip workout: %w", err)
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

// listUnrolledCompletedTx loads completed workouts that have not yet been
// rolled into a cycle completion snapshot.
func (r *sqliteWorkoutRepository) listUnrolledCompletedTx(
	ctx context.Context,
	tx *sql.Tx,
	userID, planID int64,
) (_ []Workout, err error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, cycle_day, workout_date, total_volume_kg, total_sets,
		       duration_minutes, readiness_score, muscle_volumes
		FROM workouts
		WHERE user_id = ? AND split_plan_id = ? AND status = 'completed' AND cycle_number IS NULL`,
		userID, planID)
	if err != nil {
		return nil, fmt.Errorf("query completed workouts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var workouts []Workout
	for rows.Next() {
		var (
			w                 Workout
			dateStr           string
			readiness         sql.NullInt64
			muscleVolumesJSON string
		)
		if err = rows.Scan(&w.ID, &w.CycleDay, &dateStr, &w.TotalVolumeKg, &w.TotalSets,
			&w.DurationMinutes, &readiness, &muscleVolumesJSON); err != nil {
			return nil, fmt.Errorf("scan workout row: %w", err)
		}
		if w.Date, err = time.Parse(dateFormat, dateStr); err != nil {
			return nil, fmt.Errorf("parse workout date: %w", err)
		}
		if readiness.Valid {
			score := int(readiness.Int64)
			w.Readiness = &score
		}
		if err = json.Unmarshal([]byte(muscleVolumesJSON), &w.MuscleVolumes); err != nil {
			return nil, fmt.Errorf("parse muscle volumes: %w", err)
		}
		w.Status = WorkoutCompleted
		workouts = append(workouts, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return workouts, nil
}

// snapshotPlannedTx captures the undo-relevant state of planned workouts on
// the given cycle days.
func (r *sqliteWorkoutRepository) snapshotPlannedTx(
	ctx context.Context,
	tx *sql.Tx,
	userID, planID int64,
	predicate string,
	args ...any,
) (_ []workoutSnapshot, err error) {
	query := `
		SELECT id, cycle_day, status FROM workouts
		WHERE user_id = ? AND split_plan_id = ? AND status = 'planned' AND ` + predicate
	rows, err := tx.QueryContext(ctx, query, append([]any{userID, planID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query planned workouts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var snapshots []workoutSnapshot
	for rows.Next() {
		var snapshot workoutSnapshot
		if err = rows.Scan(&snapshot.ID, &snapshot.CycleDay, &snapshot.Status); err != nil {
			return nil, fmt.Errorf("scan workout snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return snapshots, nil
}

// restoreSnapshotsTx writes snapshot day and status back onto workouts.
func (r *sqliteWorkoutRepository) restoreSnapshotsTx(
	ctx context.Context,
	tx *sql.Tx,
	userID int64,
	snapshots []workoutSnapshot,
) error {
	for _, snapshot := range snapshots {
		if _, err := tx.ExecContext(ctx, `
			UPDATE workouts SET cycle_day = ?, status = ?
			WHERE id = ? AND user_id = ?`,
			snapshot.CycleDay, snapshot.Status, snapshot.ID, userID); err != nil {
			return fmt.Errorf("restore workout %d: %w", snapshot.ID, err)
		}
	}
	return nil
}
