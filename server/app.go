package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// App holds server dependencies.
type App struct {
	db *DB
}

// NewApp creates an App over the given report database.
func NewApp(db *sql.DB) *App {
	return &App{db: NewDB(db)}
}

// Handler returns the HTTP handler: a read-only API over optimization runs.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{runID}", a.handleRun)
		r.Get("/runs/{runID}/phases", a.handlePhases)
	})

	return r
}

// corsMiddleware sets CORS headers so a dashboard on another port can call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
