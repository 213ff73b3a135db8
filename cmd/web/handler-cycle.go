package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ilmarik/fitcoach/internal/split"
)

func (app *application) cycleAdvancePOST(w http.ResponseWriter, r *http.Request) {
	result, err := app.splitService.AdvanceCycle(r.Context())
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, result)
}

// cycleCompletionsGET returns the snapshot history of the active plan,
// newest first.
func (app *application) cycleCompletionsGET(w http.ResponseWriter, r *http.Request) {
	plan, _, err := app.splitService.GetActivePlan(r.Context())
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	completions, err := app.splitService.ListCycleCompletions(r.Context(), plan.ID)
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, completions)
}

func (app *application) workoutSchedulePOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		CycleDay int    `json:"cycle_day"`
		Date     string `json:"date"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}
	date, err := time.Parse(time.DateOnly, form.Date)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid date")
		return
	}

	id, err := app.splitService.ScheduleWorkout(r.Context(), form.CycleDay, date)
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, map[string]any{"workout_id": id})
}

func (app *application) workoutCompletePOST(w http.ResponseWriter, r *http.Request) {
	workoutID, ok := app.parseWorkoutIDParam(w, r)
	if !ok {
		return
	}
	var metrics split.WorkoutMetrics
	if !app.decodeJSON(w, r, &metrics) {
		return
	}

	if err := app.splitService.CompleteWorkout(r.Context(), workoutID, metrics); err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, nil)
}

func (app *application) workoutSkipPOST(w http.ResponseWriter, r *http.Request) {
	workoutID, ok := app.parseWorkoutIDParam(w, r)
	if !ok {
		return
	}
	if err := app.splitService.SkipWorkout(r.Context(), workoutID); err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, nil)
}

func (app *application) parseWorkoutIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	workoutID, err := strconv.ParseInt(r.PathValue("workoutID"), 10, 64)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid workout id")
		return 0, false
	}
	return workoutID, true
}
