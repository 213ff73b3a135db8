package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// envelope is the uniform JSON response shape. Data carries the payload on
// success, Error the message otherwise.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode response", slog.Any("error", err))
	}
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", slog.Any("error", err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if encodeErr := json.NewEncoder(w).Encode(envelope{Success: false, Error: "internal server error"}); encodeErr != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode error response", slog.Any("error", encodeErr))
	}
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: message}); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode error response", slog.Any("error", err))
	}
}

// decodeJSON parses the request body into dst. On failure it sends a 400
// response and returns false.
func (app *application) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		app.clientError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// parseDateQuery parses a required 2006-01-02 query parameter. On failure it
// sends a 400 response and returns false.
func (app *application) parseDateQuery(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	date, err := time.Parse(time.DateOnly, r.URL.Query().Get(name))
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s parameter", name))
		return time.Time{}, false
	}
	return date, true
}
