package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-inventory/apiserver/internal/services"
)

// DashboardRouter registers dashboard routes on the given router.
func DashboardRouter(r chi.Router, dashboard *services.DashboardService) {
	r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
		summary, err := dashboard.Summary(r.Context())
		if err != nil {
			writeInternal(w, r, "failed to compute summary", err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports whether the database is reachable.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
