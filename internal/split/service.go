package split

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilmarik/fitcoach/internal/ai"
	"github.com/ilmarik/fitcoach/internal/sqlite"
)

// Service handles the business logic for training splits: cycle progression,
// plan modifications with undo, and AI-assisted refinement.
type Service struct {
	repo    *repository
	logger  *slog.Logger
	refiner ai.Refiner
}

// NewService creates a new split service.
func NewService(db *sqlite.Database, logger *slog.Logger, refiner ai.Refiner) *Service {
	repo := newRepository(db, logger)
	repo.modifications.plans = repo.plans
	repo.modifications.workouts = repo.workouts
	return &Service{
		repo:    repo,
		logger:  logger,
		refiner: refiner,
	}
}

// CreatePlan stores a new split plan and makes it the user's active plan.
// The frequency map is derived from the sessions rather than trusted from
// the caller.
func (s *Service) CreatePlan(ctx context.Context, plan Plan) (Plan, error) {
	if len(plan.Sessions) == 0 {
		return Plan{}, fmt.Errorf("%w: a plan needs at least one session", ErrInvalidChange)
	}
	cycleDays := 0
	for _, session := range plan.Sessions {
		if session.Day < 1 {
			return Plan{}, fmt.Errorf("%w: session day %d out of range", ErrInvalidChange, session.Day)
		}
		cycleDays = max(cycleDays, session.Day)
	}
	if plan.CycleDays < cycleDays {
		plan.CycleDays = cycleDays
	}
	plan.FrequencyMap = deriveFrequencyMap(plan.Sessions)
	if plan.VolumeDistribution == nil {
		plan.VolumeDistribution = map[string]float64{}
	}

	id, err := s.repo.plans.create(ctx, plan)
	if err != nil {
		return Plan{}, fmt.Errorf("create plan: %w", err)
	}
	plan.ID = id

	s.logger.LogAttrs(ctx, slog.LevelInfo, "created split plan",
		slog.Int64("plan_id", id),
		slog.String("split_type", plan.SplitType),
		slog.Int("cycle_days", plan.CycleDays))
	return plan, nil
}

// GetActivePlan returns the user's active plan and cycle state.
func (s *Service) GetActivePlan(ctx context.Context) (Plan, CycleState, error) {
	plan, state, err := s.repo.plans.getActive(ctx)
	if err != nil {
		return Plan{}, CycleState{}, fmt.Errorf("get active plan: %w", err)
	}
	return plan, state, nil
}

// AdvanceCycle moves the user to the next day of their split. When the cycle
// wraps, the finished cycle's statistics are snapshotted atomically with the
// pointer reset.
func (s *Service) AdvanceCycle(ctx context.Context) (AdvanceResult, error) {
	result, err := s.repo.plans.advance(ctx, s.repo.workouts)
	if err != nil {
		return AdvanceResult{}, fmt.Errorf("advance cycle: %w", err)
	}

	if result.Wrapped {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "completed training cycle",
			slog.Int("cycle_number", result.Completion.CycleNumber),
			slog.Int("total_workouts", result.Completion.TotalWorkouts),
			slog.Float64("total_volume_kg", result.Completion.TotalVolumeKg))
	}
	return result, nil
}

// ListCycleCompletions returns the snapshot history for a plan, newest first.
func (s *Service) ListCycleCompletions(ctx context.Context, planID int64) ([]CycleCompletion, error) {
	completions, err := s.repo.plans.listCompletions(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list cycle completions: %w", err)
	}
	return completions, nil
}

// ScheduleWorkout plans a workout instance on the active plan.
func (s *Service) ScheduleWorkout(ctx context.Context, cycleDay int, date time.Time) (int64, error) {
	plan, _, err := s.repo.plans.getActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("get active plan: %w", err)
	}
	if cycleDay < 1 || cycleDay > plan.CycleDays {
		return 0, fmt.Errorf("%w: cycle day %d out of range", ErrInvalidChange, cycleDay)
	}
	id, err := s.repo.workouts.schedule(ctx, plan.ID, cycleDay, date)
	if err != nil {
		return 0, fmt.Errorf("schedule workout: %w", err)
	}
	return id, nil
}

// CompleteWorkout records a finished workout's metrics.
func (s *Service) CompleteWorkout(ctx context.Context, workoutID int64, metrics WorkoutMetrics) error {
	if err := s.repo.workouts.complete(ctx, workoutID, metrics); err != nil {
		return fmt.Errorf("complete workout: %w", err)
	}
	return nil
}

// SkipWorkout marks a planned workout as skipped.
func (s *Service) SkipWorkout(ctx context.Context, workoutID int64) error {
	if err := s.repo.workouts.skip(ctx, workoutID); err != nil {
		return fmt.Errorf("skip workout: %w", err)
	}
	return nil
}

// SwapSessionDays exchanges the sessions on two cycle days, moving planned
// workouts along. The change lands in the undo log.
func (s *Service) SwapSessionDays(ctx context.Context, dayA, dayB int) error {
	if err := s.repo.modifications.swapDays(ctx, dayA, dayB); err != nil {
		return fmt.Errorf("swap session days: %w", err)
	}
	return nil
}

// ToggleMuscleInSession adds or removes a muscle group on one session. The
// change lands in the undo log.
func (s *Service) ToggleMuscleInSession(ctx context.Context, day int, muscle string) error {
	if err := s.repo.modifications.toggleMuscle(ctx, day, muscle); err != nil {
		return fmt.Errorf("toggle muscle: %w", err)
	}
	return nil
}

// ChangeSplitType replaces the plan structure with a new session layout. The
// change lands in the undo log.
func (s *Service) ChangeSplitType(ctx context.Context, splitType string, sessions []Session) error {
	if err := s.repo.modifications.changeSplitType(ctx, splitType, sessions); err != nil {
		return fmt.Errorf("change split type: %w", err)
	}
	return nil
}

// UndoLastModification reverts the newest entry in the undo log and reports
// which change was undone.
func (s *Service) UndoLastModification(ctx context.Context) (ChangeType, error) {
	changeType, err := s.repo.modifications.undoLast(ctx)
	if err != nil {
		return "", fmt.Errorf("undo modification: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "undid split modification",
		slog.String("change_type", string(changeType)))
	return changeType, nil
}

// ListModifications returns the undo log, newest first.
func (s *Service) ListModifications(ctx context.Context) ([]Modification, error) {
	modifications, err := s.repo.modifications.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modifications: %w", err)
	}
	return modifications, nil
}

// RefineSplit asks the AI assistant how to adjust the active plan according
// to a free-form instruction. The suggestion is advisory; nothing is applied
// to the plan.
func (s *Service) RefineSplit(ctx context.Context, instruction string) (ai.Refinement, error) {
	plan, _, err := s.repo.plans.getActive(ctx)
	if err != nil {
		return ai.Refinement{}, fmt.Errorf("get active plan: %w", err)
	}

	sessions := make([]ai.SessionSummary, len(plan.Sessions))
	for i, session := range plan.Sessions {
		sessions[i] = ai.SessionSummary{
			Day:          session.Day,
			Name:         session.Name,
			MuscleGroups: session.MuscleGroups,
		}
	}

	refinement, err := s.refiner.RefineSplit(ctx, ai.RefinementRequest{
		SplitType:    plan.SplitType,
		CycleDays:    plan.CycleDays,
		Sessions:     sessions,
		FrequencyMap: plan.FrequencyMap,
		Instruction:  instruction,
	})
	if err != nil {
		return ai.Refinement{}, fmt.Errorf("refine split: %w", err)
	}
	return refinement, nil
}
