package main

import (
	"net/http"

	"github.com/ilmarik/fitcoach/internal/ai"
	"github.com/ilmarik/fitcoach/internal/errors"
	"github.com/ilmarik/fitcoach/internal/split"
)

func (app *application) planCreatePOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Name               string             `json:"name"`
		SplitType          string             `json:"split_type"`
		CycleDays          int                `json:"cycle_days"`
		Sessions           []split.Session    `json:"sessions"`
		VolumeDistribution map[string]float64 `json:"volume_distribution"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}

	plan, err := app.splitService.CreatePlan(r.Context(), split.Plan{
		Name:               form.Name,
		SplitType:          form.SplitType,
		CycleDays:          form.CycleDays,
		Sessions:           form.Sessions,
		VolumeDistribution: form.VolumeDistribution,
	})
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, plan)
}

func (app *application) planGET(w http.ResponseWriter, r *http.Request) {
	plan, state, err := app.splitService.GetActivePlan(r.Context())
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]any{
		"plan":  plan,
		"cycle": state,
	})
}

func (app *application) splitSwapDaysPOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		DayA int `json:"day_a"`
		DayB int `json:"day_b"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}

	if err := app.splitService.SwapSessionDays(r.Context(), form.DayA, form.DayB); err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, nil)
}

func (app *application) splitToggleMusclePOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Day    int    `json:"day"`
		Muscle string `json:"muscle"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}

	if err := app.splitService.ToggleMuscleInSession(r.Context(), form.Day, form.Muscle); err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, nil)
}

func (app *application) splitChangeTypePOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		SplitType string          `json:"split_type"`
		Sessions  []split.Session `json:"sessions"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}

	if err := app.splitService.ChangeSplitType(r.Context(), form.SplitType, form.Sessions); err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, nil)
}

func (app *application) splitUndoPOST(w http.ResponseWriter, r *http.Request) {
	changeType, err := app.splitService.UndoLastModification(r.Context())
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]any{"undone": changeType})
}

func (app *application) splitModificationsGET(w http.ResponseWriter, r *http.Request) {
	modifications, err := app.splitService.ListModifications(r.Context())
	if err != nil {
		app.splitError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, modifications)
}

// splitRefinePOST returns an HTML fragment with the refinement notes so that
// the frontend can drop it straight into the page.
func (app *application) splitRefinePOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Instruction string `json:"instruction"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}
	if form.Instruction == "" {
		app.clientError(w, r, http.StatusBadRequest, "instruction is required")
		return
	}

	refinement, err := app.splitService.RefineSplit(r.Context(), form.Instruction)
	if err != nil {
		app.splitError(w, r, err)
		return
	}

	html, err := ai.RenderMarkdown(refinement.NotesMarkdown)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write([]byte(html)); err != nil {
		app.serverError(w, r, err)
	}
}

// splitError maps split service sentinels onto HTTP statuses.
func (app *application) splitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, split.ErrNoActiveSplit):
		app.clientError(w, r, http.StatusNotFound, "no active split plan")
	case errors.Is(err, split.ErrNothingToUndo):
		app.clientError(w, r, http.StatusConflict, "nothing to undo")
	case errors.Is(err, split.ErrInvalidChange):
		app.clientError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, split.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound, "not found")
	default:
		app.serverError(w, r, err)
	}
}
