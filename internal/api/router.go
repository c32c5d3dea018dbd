package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds the Chi router with all routes configured.
// Read routes are public. Write and history routes are mounted behind bearer
// auth only when token is non-empty. Rate limiting is 60 requests per minute per IP.
func NewRouter(handlers *Handlers, token string, checks HealthChecks, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(checks, log))

	r.Get("/api/v1/countdown", handlers.GetCountdown)
	r.Get("/api/v1/calendar", handlers.GetCalendar)
	r.Get("/api/v1/insights", handlers.GetInsights)
	r.Get("/api/v1/checklist", handlers.GetChecklist)
	r.Post("/api/v1/share", handlers.Share)
	r.Get("/offline/{asset}", handlers.GetOfflineAsset)

	if token != "" {
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(token))
			r.Put("/api/v1/checklist/{id}", handlers.SetChecklistItem)
			r.Get("/api/v1/insights/history", handlers.GetInsightHistory)
		})
	} else {
		log.Info("no bearer token configured, write routes disabled")
	}

	return r
}

var _ http.Handler = (*chi.Mux)(nil)
