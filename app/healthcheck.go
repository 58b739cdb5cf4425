package main

import (
	"context"
	"net/http"
	"time"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "available", http.StatusOK
	checks := map[string]string{}

	if app.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := app.db.PingContext(ctx); err != nil {
			app.logError(r, err)
			status, code = "unavailable", http.StatusServiceUnavailable
			checks["database"] = "unreachable"
		} else {
			checks["database"] = "ok"
		}
	}

	env := envelope{
		"status": status,
		"checks": checks,
		"system_info": map[string]string{
			"environment": app.config.Environment,
			"version":     app.config.Version,
			"timezone":    app.location.String(),
		},
	}

	err := app.writeJSON(w, code, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
