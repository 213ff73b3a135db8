package split

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilmarik/fitcoach/internal/errors"
	"github.com/ilmarik/fitcoach/internal/sqlite"
)

const dateFormat = time.DateOnly

var (
	// ErrNotFound is returned when a plan or workout does not exist or does
	// not belong to the authenticated user.
	ErrNotFound = errors.NewSentinel("split: not found")
	// ErrNoActiveSplit is returned when the user has no active split plan.
	ErrNoActiveSplit = errors.NewSentinel("split: no active split plan")
	// ErrNothingToUndo is returned when the undo log is empty.
	ErrNothingToUndo = errors.NewSentinel("split: nothing to undo")
	// ErrInvalidChange is returned when a modification references days or
	// sessions the plan does not have.
	ErrInvalidChange = errors.NewSentinel("split: invalid change")
)

// repository bundles the per-table repositories behind the service.
type repository struct {
	plans         *sqlitePlanRepository
	workouts      *sqliteWorkoutRepository
	modifications *sqliteModificationRepository
}

func newRepository(db *sqlite.Database, logger *slog.Logger) *repository {
	base := baseRepository{db: db, logger: logger}
	return &repository{
		plans:         &sqlitePlanRepository{baseRepository: base},
		workouts:      &sqliteWorkoutRepository{baseRepository: base},
		modifications: &sqliteModificationRepository{baseRepository: base},
	}
}

type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// querier is satisfied by *sql.DB and *sql.Tx so plan loading can run both
// standalone and inside a modification transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanPlan decodes the JSON plan columns shared by every plan query.
func scanPlan(row *sql.Row) (Plan, error) {
	var (
		plan          Plan
		sessionsJSON  string
		frequencyJSON string
		volumeJSON    string
	)
	err := row.Scan(&plan.ID, &plan.UserID, &plan.Name, &plan.SplitType, &plan.CycleDays,
		&sessionsJSON, &frequencyJSON, &volumeJSON)
	if err != nil {
		return Plan{}, err
	}
	if err = json.Unmarshal([]byte(sessionsJSON), &plan.Sessions); err != nil {
		return Plan{}, fmt.Errorf("parse sessions: %w", err)
	}
	if err = json.Unmarshal([]byte(frequencyJSON), &plan.FrequencyMap); err != nil {
		return Plan{}, fmt.Errorf("parse frequency map: %w", err)
	}
	if err = json.Unmarshal([]byte(volumeJSON), &plan.VolumeDistribution); err != nil {
		return Plan{}, fmt.Errorf("parse volume distribution: %w", err)
	}
	return plan, nil
}

// marshalPlanColumns encodes the JSON plan columns for persistence.
func marshalPlanColumns(plan Plan) (sessions, frequency, volume string, err error) {
	sessionsJSON, err := json.Marshal(plan.Sessions)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal sessions: %w", err)
	}
	frequencyJSON, err := json.Marshal(plan.FrequencyMap)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal frequency map: %w", err)
	}
	volumeJSON, err := json.Marshal(plan.VolumeDistribution)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal volume distribution: %w", err)
	}
	return string(sessionsJSON), string(frequencyJSON), string(volumeJSON), nil
}
