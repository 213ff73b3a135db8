package split

import (
	"encoding/json"
	"time"
)

// Session is one training day inside a split cycle. Rest days carry an empty
// muscle group list.
type Session struct {
	Day          int      `json:"day"` // 1-based position in the cycle
	Name         string   `json:"name"`
	MuscleGroups []string `json:"muscle_groups"`
}

// Plan is a training split: an ordered cycle of sessions together with the
// derived per-muscle frequency and volume distribution.
type Plan struct {
	ID                 int64              `json:"id"`
	UserID             int64              `json:"user_id"`
	Name               string             `json:"name"`
	SplitType          string             `json:"split_type"`
	CycleDays          int                `json:"cycle_days"`
	Sessions           []Session          `json:"sessions"`
	FrequencyMap       map[string]int     `json:"frequency_map"`
	VolumeDistribution map[string]float64 `json:"volume_distribution"`
}

// CycleState tracks where in the cycle a user currently is. The cycle day is
// 1-based and never exceeds the plan's cycle length except transiently after
// the plan was shortened; the next advance wraps it back to 1.
type CycleState struct {
	ActivePlanID    int64 `json:"active_plan_id"`
	CurrentDay      int   `json:"current_day"`
	CyclesCompleted int   `json:"cycles_completed"`
}

// CycleCompletion is the immutable statistics snapshot written when a cycle
// wraps around.
type CycleCompletion struct {
	CycleNumber          int                `json:"cycle_number"`
	TotalWorkouts        int                `json:"total_workouts"`
	TotalVolumeKg        float64            `json:"total_volume_kg"`
	TotalSets            int                `json:"total_sets"`
	TotalDurationMinutes int                `json:"total_duration_minutes"`
	AvgReadiness         *float64           `json:"avg_readiness,omitempty"`
	MuscleVolumes        map[string]float64 `json:"muscle_volumes"`
}

// AdvanceResult reports the outcome of a cycle advance. Completion is set
// only when the advance wrapped the cycle.
type AdvanceResult struct {
	CurrentDay      int              `json:"current_day"`
	CyclesCompleted int              `json:"cycles_completed"`
	Wrapped         bool             `json:"wrapped"`
	Completion      *CycleCompletion `json:"completion,omitempty"`
}

// WorkoutStatus tracks a scheduled workout through its lifecycle.
type WorkoutStatus string

const (
	WorkoutPlanned   WorkoutStatus = "planned"
	WorkoutCompleted WorkoutStatus = "completed"
	WorkoutSkipped   WorkoutStatus = "skipped"
)

// Workout is one scheduled training session instance.
type Workout struct {
	ID              int64              `json:"id"`
	CycleDay        int                `json:"cycle_day"`
	Date            time.Time          `json:"date"`
	Status          WorkoutStatus      `json:"status"`
	TotalVolumeKg   float64            `json:"total_volume_kg"`
	TotalSets       int                `json:"total_sets"`
	DurationMinutes int                `json:"duration_minutes"`
	Readiness       *int               `json:"readiness,omitempty"`
	MuscleVolumes   map[string]float64 `json:"muscle_volumes"`
}

// WorkoutMetrics is what the user reports when completing a workout.
type WorkoutMetrics struct {
	TotalVolumeKg   float64            `json:"total_volume_kg"`
	TotalSets       int                `json:"total_sets"`
	DurationMinutes int                `json:"duration_minutes"`
	Readiness       *int               `json:"readiness,omitempty"`
	MuscleVolumes   map[string]float64 `json:"muscle_volumes"`
}

// ChangeType identifies a split modification in the undo log.
type ChangeType string

const (
	ChangeSwapDays     ChangeType = "swap_days"
	ChangeToggleMuscle ChangeType = "toggle_muscle"
	ChangeSplitType    ChangeType = "change_split_type"
)

// Modification is an entry in the undo log, newest first.
type Modification struct {
	ID         int64           `json:"id"`
	PlanID     int64           `json:"plan_id"`
	ChangeType ChangeType      `json:"change_type"`
	Change     json.RawMessage `json:"change"`
	Created    time.Time       `json:"created"`
}

// workoutSnapshot captures the undo-relevant fields of a workout affected by
// a split modification.
type workoutSnapshot struct {
	ID       int64         `json:"id"`
	CycleDay int           `json:"cycle_day"`
	Status   WorkoutStatus `json:"status"`
}

// previousState is the serialized restore point stored with each
// modification. Restoring it and deleting the log entry undoes the change.
type previousState struct {
	SplitType          string             `json:"split_type"`
	CycleDays          int                `json:"cycle_days"`
	Sessions           []Session          `json:"sessions"`
	FrequencyMap       map[string]int     `json:"frequency_map"`
	VolumeDistribution map[string]float64 `json:"volume_distribution"`
	Workouts           []workoutSnapshot  `json:"workouts"`
}
