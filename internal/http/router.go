package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging)

	r.Get("/stats/{page_id}", app.getStatsHandler)
	r.Post("/page/{page_id}", app.postPageHandler)
	r.Put("/{field}/{page_id}", app.putCounterHandler)

	r.Get("/healthz", app.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
