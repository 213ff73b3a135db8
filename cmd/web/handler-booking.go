package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ilmarik/fitcoach/internal/booking"
	"github.com/ilmarik/fitcoach/internal/errors"
)

// patternForm is the wire shape of a recurrence pattern. Dates travel as
// 2006-01-02 strings.
type patternForm struct {
	Frequency string `json:"frequency"`
	Weekdays  []int  `json:"weekdays"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Count     int    `json:"count"`
	Until     string `json:"until"`
}

func (f patternForm) toPattern() (booking.Pattern, error) {
	pattern := booking.Pattern{
		Frequency: booking.Frequency(f.Frequency),
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		Count:     f.Count,
	}
	for _, weekday := range f.Weekdays {
		pattern.Weekdays = append(pattern.Weekdays, time.Weekday(weekday))
	}
	if f.Until != "" {
		until, err := time.Parse(time.DateOnly, f.Until)
		if err != nil {
			return booking.Pattern{}, fmt.Errorf("parse until date: %w", err)
		}
		pattern.Until = until
	}
	return pattern, nil
}

func (app *application) recurringSeriesPOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		ClientID      int64       `json:"client_id"`
		StartDate     string      `json:"start_date"`
		Pattern       patternForm `json:"pattern"`
		LocationType  string      `json:"location_type"`
		SkipConflicts bool        `json:"skip_conflicts"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}
	startDate, err := time.Parse(time.DateOnly, form.StartDate)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid start_date")
		return
	}
	pattern, err := form.Pattern.toPattern()
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := app.bookingService.CreateRecurringSeries(
		r.Context(), form.ClientID, startDate, pattern, form.LocationType, form.SkipConflicts)
	if err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, result)
}

func (app *application) recurringPreviewPOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		StartDate string      `json:"start_date"`
		Pattern   patternForm `json:"pattern"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}
	startDate, err := time.Parse(time.DateOnly, form.StartDate)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid start_date")
		return
	}
	pattern, err := form.Pattern.toPattern()
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	checks, err := app.bookingService.CheckRecurringAvailability(r.Context(), startDate, pattern)
	if err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, checks)
}

func (app *application) seriesGET(w http.ResponseWriter, r *http.Request) {
	series, err := app.bookingService.GetSeries(r.Context(), r.PathValue("seriesID"))
	if err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, series)
}

func (app *application) seriesCancelPOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Scope     string `json:"scope"`
		BookingID int64  `json:"booking_id"`
		Reason    string `json:"reason"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}

	cancelled, err := app.bookingService.CancelSeries(
		r.Context(), r.PathValue("seriesID"), booking.CancelScope(form.Scope), form.BookingID, form.Reason)
	if err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]any{"cancelled": cancelled})
}

func (app *application) blockCreatePOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Reason    string `json:"reason"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}
	date, err := time.Parse(time.DateOnly, form.Date)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid date")
		return
	}

	id, err := app.bookingService.CreateBlock(r.Context(), booking.Block{
		Date:      date,
		StartTime: form.StartTime,
		EndTime:   form.EndTime,
		Reason:    form.Reason,
	})
	if err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, map[string]any{"block_id": id})
}

func (app *application) availabilityPOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Weekday int `json:"weekday"`
		Windows []struct {
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
		} `json:"windows"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}
	if form.Weekday < 0 || form.Weekday > 6 {
		app.clientError(w, r, http.StatusBadRequest, "weekday out of range")
		return
	}

	windows := make([]booking.Block, len(form.Windows))
	for i, window := range form.Windows {
		windows[i] = booking.Block{StartTime: window.StartTime, EndTime: window.EndTime}
	}
	if err := app.bookingService.SetWeeklyAvailability(r.Context(), time.Weekday(form.Weekday), windows); err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, nil)
}

func (app *application) waitlistAddPOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		ClientID      int64   `json:"client_id"`
		PreferredDays []int   `json:"preferred_days"`
		WindowStart   string  `json:"window_start"`
		WindowEnd     string  `json:"window_end"`
		PriorityScore float64 `json:"priority_score"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}

	entry := booking.WaitlistCandidate{
		ClientID:      form.ClientID,
		WindowStart:   form.WindowStart,
		WindowEnd:     form.WindowEnd,
		PriorityScore: form.PriorityScore,
	}
	for _, day := range form.PreferredDays {
		entry.PreferredDays = append(entry.PreferredDays, time.Weekday(day))
	}
	id, err := app.bookingService.AddToWaitlist(r.Context(), entry)
	if err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, map[string]any{"entry_id": id})
}

// waitlistRankGET ranks active waitlist entries against a freed slot given by
// the date, start and end query parameters.
func (app *application) waitlistRankGET(w http.ResponseWriter, r *http.Request) {
	date, ok := app.parseDateQuery(w, r, "date")
	if !ok {
		return
	}
	startTime := r.URL.Query().Get("start")
	endTime := r.URL.Query().Get("end")
	if startTime == "" || endTime == "" {
		app.clientError(w, r, http.StatusBadRequest, "start and end parameters are required")
		return
	}

	candidates, err := app.bookingService.RankCandidatesForSlot(r.Context(), date, startTime, endTime)
	if err != nil {
		app.bookingError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, candidates)
}

// bookingError maps booking service sentinels onto HTTP statuses.
func (app *application) bookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrFirstOccurrenceConflict):
		app.clientError(w, r, http.StatusConflict, "first occurrence conflicts with an existing booking")
	case errors.Is(err, booking.ErrEmptyPattern), errors.Is(err, booking.ErrInvalidPattern):
		app.clientError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound, "not found")
	default:
		app.serverError(w, r, err)
	}
}
