package split_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ilmarik/fitcoach/internal/ai"
	"github.com/ilmarik/fitcoach/internal/contexthelpers"
	"github.com/ilmarik/fitcoach/internal/ptr"
	"github.com/ilmarik/fitcoach/internal/split"
	"github.com/ilmarik/fitcoach/internal/sqlite"
)

const testUserID = int64(1)

func newTestService(t *testing.T) (context.Context, *split.Service, *sqlite.Database) {
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
	if _, err = db.ReadWrite.ExecContext(ctx,
		"INSERT INTO users (id, display_name) VALUES (?, 'Lifter')", testUserID); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	ctx = context.WithValue(ctx, contexthelpers.AuthenticatedUserIDContextKey, testUserID)
	ctx = context.WithValue(ctx, contexthelpers.IsAuthenticatedContextKey, true)

	return ctx, split.NewService(db, logger, ai.NewRefiner("", logger)), db
}

// threeDayPlan is a push/pull/legs cycle used by most tests.
func threeDayPlan() split.Plan {
	return split.Plan{
		Name:      "PPL",
		SplitType: "push_pull_legs",
		CycleDays: 3,
		Sessions: []split.Session{
			{Day: 1, Name: "Push", MuscleGroups: []string{"chest", "shoulders", "triceps"}},
			{Day: 2, Name: "Pull", MuscleGroups: []string{"back", "biceps"}},
			{Day: 3, Name: "Legs", MuscleGroups: []string{"quads", "hamstrings"}},
		},
	}
}

func mustCreatePlan(t *testing.T, ctx context.Context, svc *split.Service, plan split.Plan) split.Plan {
	t.Helper()
	created, err := svc.CreatePlan(ctx, plan)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return created
}

func TestAdvanceCycle_wrapsExactlyOnceAtCycleEnd(t *testing.T) {
	ctx, svc, _ := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	// Days 1 -> 2 -> 3 advance without wrapping.
	for wantDay := 2; wantDay <= 3; wantDay++ {
		result, err := svc.AdvanceCycle(ctx)
		if err != nil {
			t.Fatalf("AdvanceCycle: %v", err)
		}
		if result.Wrapped {
			t.Errorf("advance to day %d wrapped prematurely", wantDay)
		}
		if result.CurrentDay != wantDay {
			t.Errorf("current day = %d, want %d", result.CurrentDay, wantDay)
		}
	}

	// The advance from the last day wraps.
	result, err := svc.AdvanceCycle(ctx)
	if err != nil {
		t.Fatalf("AdvanceCycle: %v", err)
	}
	if !result.Wrapped {
		t.Fatal("advance from last cycle day did not wrap")
	}
	if result.CurrentDay != 1 {
		t.Errorf("current day after wrap = %d, want 1", result.CurrentDay)
	}
	if result.CyclesCompleted != 1 {
		t.Errorf("cycles completed = %d, want 1", result.CyclesCompleted)
	}
	if result.Completion == nil || result.Completion.CycleNumber != 1 {
		t.Errorf("completion = %+v, want cycle number 1", result.Completion)
	}
}

func TestAdvanceCycle_wraparoundSnapshotsCompletedWorkouts(t *testing.T) {
	ctx, svc, db := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	workoutDate := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	metrics := []split.WorkoutMetrics{
		{
			TotalVolumeKg:   4200,
			TotalSets:       18,
			DurationMinutes: 65,
			Readiness:       ptr.Ref(8),
			MuscleVolumes:   map[string]float64{"chest": 2500, "triceps": 1700},
		},
		{
			TotalVolumeKg:   3800,
			TotalSets:       16,
			DurationMinutes: 55,
			Readiness:       ptr.Ref(6),
			MuscleVolumes:   map[string]float64{"back": 2600, "biceps": 1200},
		},
	}
	for day, m := range metrics {
		id, err := svc.ScheduleWorkout(ctx, day+1, workoutDate.AddDate(0, 0, day))
		if err != nil {
			t.Fatalf("ScheduleWorkout: %v", err)
		}
		if err = svc.CompleteWorkout(ctx, id, m); err != nil {
			t.Fatalf("CompleteWorkout: %v", err)
		}
	}
	// A planned workout left on day 3 must not enter the statistics.
	if _, err := svc.ScheduleWorkout(ctx, 3, workoutDate.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("ScheduleWorkout: %v", err)
	}

	for range 3 {
		if _, err := svc.AdvanceCycle(ctx); err != nil {
			t.Fatalf("AdvanceCycle: %v", err)
		}
	}

	plan, _, err := svc.GetActivePlan(ctx)
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	completions, err := svc.ListCycleCompletions(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ListCycleCompletions: %v", err)
	}
	if len(completions) != 1 {
		t.Fatalf("got %d completions, want 1", len(completions))
	}

	completion := completions[0]
	if completion.TotalWorkouts != 2 {
		t.Errorf("total workouts = %d, want 2", completion.TotalWorkouts)
	}
	if completion.TotalVolumeKg != 8000 {
		t.Errorf("total volume = %.0f, want 8000", completion.TotalVolumeKg)
	}
	if completion.TotalSets != 34 {
		t.Errorf("total sets = %d, want 34", completion.TotalSets)
	}
	if completion.TotalDurationMinutes != 120 {
		t.Errorf("total duration = %d, want 120", completion.TotalDurationMinutes)
	}
	if completion.AvgReadiness == nil || *completion.AvgReadiness != 7 {
		t.Errorf("avg readiness = %v, want 7", completion.AvgReadiness)
	}
	wantVolumes := map[string]float64{"chest": 2500, "triceps": 1700, "back": 2600, "biceps": 1200}
	if diff := cmp.Diff(wantVolumes, completion.MuscleVolumes); diff != "" {
		t.Errorf("muscle volumes mismatch (-want +got):\n%s", diff)
	}

	// The wraparound lands in a single transaction, so the snapshot and the
	// pointer reset must agree.
	var currentDay, cyclesCompleted int
	if err = db.ReadOnly.QueryRowContext(ctx,
		"SELECT current_cycle_day, cycles_completed FROM training_cycles WHERE user_id = ?",
		testUserID).Scan(&currentDay, &cyclesCompleted); err != nil {
		t.Fatalf("query cycle state: %v", err)
	}
	if currentDay != 1 || cyclesCompleted != 1 {
		t.Errorf("cycle state = (day %d, completed %d), want (1, 1)", currentDay, cyclesCompleted)
	}
}

func TestAdvanceCycle_secondCycleAggregatesOnlyNewWorkouts(t *testing.T) {
	ctx, svc, _ := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	workoutDate := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	completeOne := func(volume float64) {
		t.Helper()
		id, err := svc.ScheduleWorkout(ctx, 1, workoutDate)
		if err != nil {
			t.Fatalf("ScheduleWorkout: %v", err)
		}
		if err = svc.CompleteWorkout(ctx, id, split.WorkoutMetrics{TotalVolumeKg: volume, TotalSets: 10}); err != nil {
			t.Fatalf("CompleteWorkout: %v", err)
		}
	}
	wrap := func() {
		t.Helper()
		for range 3 {
			if _, err := svc.AdvanceCycle(ctx); err != nil {
				t.Fatalf("AdvanceCycle: %v", err)
			}
		}
	}

	completeOne(1000)
	wrap()
	completeOne(2000)
	wrap()

	plan, _, err := svc.GetActivePlan(ctx)
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	completions, err := svc.ListCycleCompletions(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ListCycleCompletions: %v", err)
	}
	if len(completions) != 2 {
		t.Fatalf("got %d completions, want 2", len(completions))
	}
	// Newest first.
	if completions[0].CycleNumber != 2 || completions[0].TotalVolumeKg != 2000 {
		t.Errorf("cycle 2 snapshot = %+v, want volume 2000", completions[0])
	}
	if completions[1].CycleNumber != 1 || completions[1].TotalVolumeKg != 1000 {
		t.Errorf("cycle 1 snapshot = %+v, want volume 1000", completions[1])
	}
}

func TestAdvanceCycle_withoutActivePlan(t *testing.T) {
	ctx, svc, _ := newTestService(t)

	_, err := svc.AdvanceCycle(ctx)
	if !errors.Is(err, split.ErrNoActiveSplit) {
		t.Errorf("error = %v, want ErrNoActiveSplit", err)
	}
}

func TestSwapSessionDays_movesSessionsAndPlannedWorkouts(t *testing.T) {
	ctx, svc, db := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	workoutDate := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	pushWorkout, err := svc.ScheduleWorkout(ctx, 1, workoutDate)
	if err != nil {
		t.Fatalf("ScheduleWorkout: %v", err)
	}
	legsWorkout, err := svc.ScheduleWorkout(ctx, 3, workoutDate.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("ScheduleWorkout: %v", err)
	}

	if err = svc.SwapSessionDays(ctx, 1, 3); err != nil {
		t.Fatalf("SwapSessionDays: %v", err)
	}

	plan, _, err := svc.GetActivePlan(ctx)
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	if plan.Sessions[0].Name != "Legs" || plan.Sessions[2].Name != "Push" {
		t.Errorf("sessions after swap = %+v, want Legs on day 1 and Push on day 3", plan.Sessions)
	}

	cycleDay := func(workoutID int64) int {
		t.Helper()
		var day int
		if err = db.ReadOnly.QueryRowContext(ctx,
			"SELECT cycle_day FROM workouts WHERE id = ?", workoutID).Scan(&day); err != nil {
			t.Fatalf("query workout day: %v", err)
		}
		return day
	}
	if got := cycleDay(pushWorkout); got != 3 {
		t.Errorf("push workout moved to day %d, want 3", got)
	}
	if got := cycleDay(legsWorkout); got != 1 {
		t.Errorf("legs workout moved to day %d, want 1", got)
	}
}

func TestSwapSessionDays_rejectsOutOfRangeDays(t *testing.T) {
	ctx, svc, _ := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	if err := svc.SwapSessionDays(ctx, 1, 4); !errors.Is(err, split.ErrInvalidChange) {
		t.Errorf("error = %v, want ErrInvalidChange", err)
	}
	if err := svc.SwapSessionDays(ctx, 2, 2); !errors.Is(err, split.ErrInvalidChange) {
		t.Errorf("error = %v, want ErrInvalidChange", err)
	}
}

func TestToggleMuscleInSession_keepsFrequencyMapInSync(t *testing.T) {
	ctx, svc, _ := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	// Add rear delts to pull day, then remove biceps.
	if err := svc.ToggleMuscleInSession(ctx, 2, "rear_delts"); err != nil {
		t.Fatalf("ToggleMuscleInSession: %v", err)
	}
	if err := svc.ToggleMuscleInSession(ctx, 2, "biceps"); err != nil {
		t.Fatalf("ToggleMuscleInSession: %v", err)
	}

	plan, _, err := svc.GetActivePlan(ctx)
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	if got := plan.FrequencyMap["rear_delts"]; got != 1 {
		t.Errorf("rear_delts frequency = %d, want 1", got)
	}
	if _, present := plan.FrequencyMap["biceps"]; present {
		t.Error("biceps still present in frequency map after removal")
	}
}

func TestChangeSplitType_skipsOutOfCycleWorkouts(t *testing.T) {
	ctx, svc, db := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	workoutDate := time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC)
	legsWorkout, err := svc.ScheduleWorkout(ctx, 3, workoutDate)
	if err != nil {
		t.Fatalf("ScheduleWorkout: %v", err)
	}

	upperLower := []split.Session{
		{Day: 1, Name: "Upper", MuscleGroups: []string{"chest", "back", "shoulders"}},
		{Day: 2, Name: "Lower", MuscleGroups: []string{"quads", "hamstrings"}},
	}
	if err = svc.ChangeSplitType(ctx, "upper_lower", upperLower); err != nil {
		t.Fatalf("ChangeSplitType: %v", err)
	}

	plan, _, err := svc.GetActivePlan(ctx)
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	if plan.SplitType != "upper_lower" || plan.CycleDays != 2 {
		t.Errorf("plan = %s/%d days, want upper_lower/2", plan.SplitType, plan.CycleDays)
	}

	var status string
	if err = db.ReadOnly.QueryRowContext(ctx,
		"SELECT status FROM workouts WHERE id = ?", legsWorkout).Scan(&status); err != nil {
		t.Fatalf("query workout status: %v", err)
	}
	if status != "skipped" {
		t.Errorf("day-3 workout status = %s, want skipped", status)
	}
}

func TestUndoLastModification_restoresPlanAndWorkouts(t *testing.T) {
	ctx, svc, db := newTestService(t)
	original := mustCreatePlan(t, ctx, svc, threeDayPlan())

	workoutDate := time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC)
	legsWorkout, err := svc.ScheduleWorkout(ctx, 3, workoutDate)
	if err != nil {
		t.Fatalf("ScheduleWorkout: %v", err)
	}

	upperLower := []split.Session{
		{Day: 1, Name: "Upper", MuscleGroups: []string{"chest", "back"}},
		{Day: 2, Name: "Lower", MuscleGroups: []string{"quads"}},
	}
	if err = svc.ChangeSplitType(ctx, "upper_lower", upperLower); err != nil {
		t.Fatalf("ChangeSplitType: %v", err)
	}

	changeType, err := svc.UndoLastModification(ctx)
	if err != nil {
		t.Fatalf("UndoLastModification: %v", err)
	}
	if changeType != split.ChangeSplitType {
		t.Errorf("undone change = %s, want %s", changeType, split.ChangeSplitType)
	}

	restored, _, err := svc.GetActivePlan(ctx)
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	if restored.SplitType != original.SplitType || restored.CycleDays != original.CycleDays {
		t.Errorf("restored plan = %s/%d days, want %s/%d",
			restored.SplitType, restored.CycleDays, original.SplitType, original.CycleDays)
	}
	if diff := cmp.Diff(original.Sessions, restored.Sessions); diff != "" {
		t.Errorf("restored sessions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original.FrequencyMap, restored.FrequencyMap); diff != "" {
		t.Errorf("restored frequency map mismatch (-want +got):\n%s", diff)
	}

	var status string
	var day int
	if err = db.ReadOnly.QueryRowContext(ctx,
		"SELECT status, cycle_day FROM workouts WHERE id = ?", legsWorkout).Scan(&status, &day); err != nil {
		t.Fatalf("query workout: %v", err)
	}
	if status != "planned" || day != 3 {
		t.Errorf("restored workout = (%s, day %d), want (planned, day 3)", status, day)
	}

	// Undo is single-level: a second undo has nothing left.
	if _, err = svc.UndoLastModification(ctx); !errors.Is(err, split.ErrNothingToUndo) {
		t.Errorf("second undo error = %v, want ErrNothingToUndo", err)
	}
}

func TestUndoLastModification_emptyLog(t *testing.T) {
	ctx, svc, _ := newTestService(t)
	mustCreatePlan(t, ctx, svc, threeDayPlan())

	_, err := svc.UndoLastModification(ctx)
	if !errors.Is(err, split.ErrNothingToUndo) {
		t.Errorf("error = %v, want ErrNothingToUndo", err)
	}
}

func TestRefineSplit_usesActivePlan(t *testing.T) {
	ctx, svc, _ := newTestService(t)
	plan := threeDayPlan()
	// Leave hamstrings trained once so the heuristic has something to say.
	plan.Sessions[2].MuscleGroups = []string{"quads", "hamstrings"}
	mustCreatePlan(t, ctx, svc, plan)

	refinement, err := svc.RefineSplit(ctx, "more leg volume")
	if err != nil {
		t.Fatalf("RefineSplit: %v", err)
	}
	if refinement.Summary == "" {
		t.Error("refinement summary is empty")
	}
	if refinement.NotesMarkdown == "" {
		t.Error("refinement notes are empty")
	}
}
