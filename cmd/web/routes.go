package main

import (
	"net/http"
)

func (app *application) routes() *http.ServeMux {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(secureHeaders(app.crossOriginProtection(
				commonContext(app.timeout(next)))))
		}
		session = func(next http.Handler) http.Handler {
			return app.recoverPanic(noCache(app.sessionManager.LoadAndSave(
				app.authenticate(shared(next)))))
		}
		mustSession = func(next http.Handler) http.Handler {
			return session(app.mustAuthenticate(next))
		}
		mustCoach = func(next http.Handler) http.Handler {
			return mustSession(app.mustCoach(next))
		}
	)

	mux.Handle("POST /api/session", session(http.HandlerFunc(app.sessionPOST)))
	mux.Handle("POST /api/logout", session(http.HandlerFunc(app.logout)))
	mux.Handle("GET /api/healthy", session(http.HandlerFunc(app.healthy)))

	mux.Handle("POST /split/plan", mustSession(http.HandlerFunc(app.planCreatePOST)))
	mux.Handle("GET /split/plan", mustSession(http.HandlerFunc(app.planGET)))
	mux.Handle("POST /split/swap-days", mustSession(http.HandlerFunc(app.splitSwapDaysPOST)))
	mux.Handle("POST /split/toggle-muscle", mustSession(http.HandlerFunc(app.splitToggleMusclePOST)))
	mux.Handle("POST /split/change-type", mustSession(http.HandlerFunc(app.splitChangeTypePOST)))
	mux.Handle("POST /split/undo", mustSession(http.HandlerFunc(app.splitUndoPOST)))
	mux.Handle("GET /split/modifications", mustSession(http.HandlerFunc(app.splitModificationsGET)))
	mux.Handle("POST /split/refine", mustSession(http.HandlerFunc(app.splitRefinePOST)))

	mux.Handle("POST /cycle/advance", mustSession(http.HandlerFunc(app.cycleAdvancePOST)))
	mux.Handle("GET /cycle/completions", mustSession(http.HandlerFunc(app.cycleCompletionsGET)))

	mux.Handle("POST /workouts", mustSession(http.HandlerFunc(app.workoutSchedulePOST)))
	mux.Handle("POST /workouts/{workoutID}/complete", mustSession(http.HandlerFunc(app.workoutCompletePOST)))
	mux.Handle("POST /workouts/{workoutID}/skip", mustSession(http.HandlerFunc(app.workoutSkipPOST)))

	mux.Handle("POST /coach/bookings/recurring", mustCoach(http.HandlerFunc(app.recurringSeriesPOST)))
	mux.Handle("POST /coach/bookings/recurring/preview", mustCoach(http.HandlerFunc(app.recurringPreviewPOST)))
	mux.Handle("GET /coach/bookings/series/{seriesID}", mustCoach(http.HandlerFunc(app.seriesGET)))
	mux.Handle("POST /coach/bookings/series/{seriesID}/cancel", mustCoach(http.HandlerFunc(app.seriesCancelPOST)))

	mux.Handle("POST /coach/blocks", mustCoach(http.HandlerFunc(app.blockCreatePOST)))
	mux.Handle("POST /coach/availability", mustCoach(http.HandlerFunc(app.availabilityPOST)))

	mux.Handle("POST /coach/waitlist", mustCoach(http.HandlerFunc(app.waitlistAddPOST)))
	mux.Handle("GET /coach/waitlist/rank", mustCoach(http.HandlerFunc(app.waitlistRankGET)))

	return mux
}
