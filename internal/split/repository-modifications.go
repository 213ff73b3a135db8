package split

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ilmarik/fitcoach/internal/contexthelpers"
)

// sqliteModificationRepository applies split modifications and maintains the
// undo log. Every modification runs in one transaction that mutates the plan,
// adjusts affected workouts and appends the log entry with the restore point.
type sqliteModificationRepository struct {
	baseRepository
	plans    *sqlitePlanRepository
	workouts *sqliteWorkoutRepository
}

// swapDays exchanges the sessions on two cycle days. Planned workouts already
// scheduled on those days move with their sessions.
func (r *sqliteModificationRepository) swapDays(ctx context.Context, dayA, dayB int) (err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	plan, _, err := r.plans.getActiveWith(ctx, tx)
	if err != nil {
		return err
	}
	if dayA == dayB || dayA < 1 || dayB < 1 || dayA > plan.CycleDays || dayB > plan.CycleDays {
		return fmt.Errorf("%w: cannot swap days %d and %d in a %d-day cycle",
			ErrInvalidChange, dayA, dayB, plan.CycleDays)
	}

	snapshots, err := r.workouts.snapshotPlannedTx(ctx, tx, userID, plan.ID,
		"cycle_day IN (?, ?)", dayA, dayB)
	if err != nil {
		return err
	}

	previous := capturePreviousState(plan, snapshots)

	for i := range plan.Sessions {
		switch plan.Sessions[i].Day {
		case dayA:
			plan.Sessions[i].Day = dayB
		case dayB:
			plan.Sessions[i].Day = dayA
		}
	}
	slices.SortStableFunc(plan.Sessions, func(a, b Session) int { return a.Day - b.Day })

	if err = r.plans.savePlanTx(ctx, tx, plan); err != nil {
		return err
	}

	// Three-step swap keeps the workouts distinct while both days move.
	for _, step := range []struct{ from, to int }{{dayA, -1}, {dayB, dayA}, {-1, dayB}} {
		if _, err = tx.ExecContext(ctx, `
			UPDATE workouts SET cycle_day = ?
			WHERE user_id = ? AND split_plan_id = ? AND status = 'planned' AND cycle_day = ?`,
			step.to, userID, plan.ID, step.from); err != nil {
			return fmt.Errorf("move workouts from day %d: %w", step.from, err)
		}
	}

	change := struct {
		DayA int `json:"day_a"`
		DayB int `json:"day_b"`
	}{dayA, dayB}
	if err = r.appendLogTx(ctx, tx, plan.ID, ChangeSwapDays, change, previous); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// toggleMuscle adds a muscle group to a session or removes it, keeping the
// frequency map in sync.
func (r *sqliteModificationRepository) toggleMuscle(ctx context.Context, day int, muscle string) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	plan, _, err := r.plans.getActiveWith(ctx, tx)
	if err != nil {
		return err
	}

	sessionIndex := slices.IndexFunc(plan.Sessions, func(s Session) bool { return s.Day == day })
	if sessionIndex < 0 {
		return fmt.Errorf("%w: no session on day %d", ErrInvalidChange, day)
	}

	previous := capturePreviousState(plan, nil)

	session := &plan.Sessions[sessionIndex]
	if i := slices.Index(session.MuscleGroups, muscle); i >= 0 {
		session.MuscleGroups = slices.Delete(slices.Clone(session.MuscleGroups), i, i+1)
	} else {
		session.MuscleGroups = append(slices.Clone(session.MuscleGroups), muscle)
	}
	plan.FrequencyMap = deriveFrequencyMap(plan.Sessions)

	if err = r.plans.savePlanTx(ctx, tx, plan); err != nil {
		return err
	}

	change := struct {
		Day    int    `json:"day"`
		Muscle string `json:"muscle"`
	}{day, muscle}
	if err = r.appendLogTx(ctx, tx, plan.ID, ChangeToggleMuscle, change, previous); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// changeSplitType replaces the plan's structure wholesale. Planned workouts
// on days beyond the new cycle length are skipped, not deleted, so the
// history stays intact and undo can bring them back.
func (r *sqliteModificationRepository) changeSplitType(
	ctx context.Context,
	splitType string,
	sessions []Session,
) (err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	if len(sessions) == 0 {
		return fmt.Errorf("%w: a split needs at least one session", ErrInvalidChange)
	}
	cycleDays := 0
	for _, session := range sessions {
		if session.Day < 1 {
			return fmt.Errorf("%w: session day %d out of range", ErrInvalidChange, session.Day)
		}
		cycleDays = max(cycleDays, session.Day)
	}

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	plan, _, err := r.plans.getActiveWith(ctx, tx)
	if err != nil {
		return err
	}

	snapshots, err := r.workouts.snapshotPlannedTx(ctx, tx, userID, plan.ID,
		"cycle_day > ?", cycleDays)
	if err != nil {
		return err
	}

	previous := capturePreviousState(plan, snapshots)

	plan.SplitType = splitType
	plan.CycleDays = cycleDays
	plan.Sessions = sessions
	plan.FrequencyMap = deriveFrequencyMap(sessions)

	if err = r.plans.savePlanTx(ctx, tx, plan); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE workouts SET status = 'skipped'
		WHERE user_id = ? AND split_plan_id = ? AND status = 'planned' AND cycle_day > ?`,
		userID, plan.ID, cycleDays); err != nil {
		return fmt.Errorf("skip out-of-cycle workouts: %w", err)
	}

	change := struct {
		SplitType string `json:"split_type"`
		CycleDays int    `json:"cycle_days"`
	}{splitType, cycleDays}
	if err = r.appendLogTx(ctx, tx, plan.ID, ChangeSplitType, change, previous); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// undoLast reverts the newest modification. Restore order matters: the plan
// first, then the affected workouts, and the log entry is deleted last so a
// failed restore leaves the entry in place for a retry.
func (r *sqliteModificationRepository) undoLast(ctx context.Context) (_ ChangeType, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	var (
		modificationID int64
		planID         int64
		changeType     ChangeType
		previousJSON   string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, split_plan_id, change_type, previous_state
		FROM split_modifications
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1`,
		userID).Scan(&modificationID, &planID, &changeType, &previousJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNothingToUndo
	}
	if err != nil {
		return "", fmt.Errorf("query newest modification: %w", err)
	}

	var previous previousState
	if err = json.Unmarshal([]byte(previousJSON), &previous); err != nil {
		return "", fmt.Errorf("parse previous state: %w", err)
	}

	restored := Plan{
		ID:                 planID,
		UserID:             userID,
		SplitType:          previous.SplitType,
		CycleDays:          previous.CycleDays,
		Sessions:           previous.Sessions,
		FrequencyMap:       previous.FrequencyMap,
		VolumeDistribution: previous.VolumeDistribution,
	}
	if err = r.plans.savePlanTx(ctx, tx, restored); err != nil {
		return "", fmt.Errorf("restore plan: %w", err)
	}

	if err = r.workouts.restoreSnapshotsTx(ctx, tx, userID, previous.Workouts); err != nil {
		return "", fmt.Errorf("restore workouts: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM split_modifications WHERE id = ?`,
		modificationID); err != nil {
		return "", fmt.Errorf("delete modification: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return changeType, nil
}

// list returns the user's modification log, newest first.
func (r *sqliteModificationRepository) list(ctx context.Context) (_ []Modification, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, split_plan_id, change_type, change, created
		FROM split_modifications
		WHERE user_id = ?
		ORDER BY id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query modifications: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var modifications []Modification
	for rows.Next() {
		var (
			modification Modification
			changeJSON   string
			createdStr   string
		)
		if err = rows.Scan(&modification.ID, &modification.PlanID, &modification.ChangeType,
			&changeJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan modification row: %w", err)
		}
		modification.Change = json.RawMessage(changeJSON)
		if modification.Created, err = time.Parse("2006-01-02T15:04:05.000Z", createdStr); err != nil {
			return nil, fmt.Errorf("parse created timestamp: %w", err)
		}
		modifications = append(modifications, modification)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return modifications, nil
}

// appendLogTx writes the undo log entry for an applied change.
func (r *sqliteModificationRepository) appendLogTx(
	ctx context.Context,
	tx *sql.Tx,
	planID int64,
	changeType ChangeType,
	change any,
	previous previousState,
) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	changeJSON, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	previousJSON, err := json.Marshal(previous)
	if err != nil {
		return fmt.Errorf("marshal previous state: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO split_modifications (user_id, split_plan_id, change_type, change, previous_state)
		VALUES (?, ?, ?, ?, ?)`,
		userID, planID, changeType, string(changeJSON), string(previousJSON)); err != nil {
		return fmt.Errorf("insert modification: %w", err)
	}
	return nil
}

// capturePreviousState freezes the plan fields and affected workouts before
// a change is applied.
func capturePreviousState(plan Plan, snapshots []workoutSnapshot) previousState {
	return previousState{
		SplitType:          plan.SplitType,
		CycleDays:          plan.CycleDays,
		Sessions:           slices.Clone(plan.Sessions),
		FrequencyMap:       plan.FrequencyMap,
		VolumeDistribution: plan.VolumeDistribution,
		Workouts:           snapshots,
	}
}

// deriveFrequencyMap counts how many sessions per cycle hit each muscle.
func deriveFrequencyMap(sessions []Session) map[string]int {
	frequency := map[string]int{}
	for _, session := range sessions {
		for _, muscle := range session.MuscleGroups {
			frequency[muscle]++
		}
	}
	return frequency
}
