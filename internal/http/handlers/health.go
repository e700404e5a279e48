package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ir-comercio/ir-comercio-sistema/internal/policy"
)

// Pinger reports datastore reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves the gateway and per-app health checks
type HealthHandler struct {
	apps        map[string]string
	environment string
	db          Pinger
	clock       policy.Clock
}

// NewHealthHandler creates a new health handler. apps maps app name to mount path; db may be nil.
func NewHealthHandler(apps map[string]string, environment string, db Pinger) *HealthHandler {
	return &HealthHandler{apps: apps, environment: environment, db: db, clock: policy.SystemClock{}}
}

// ServeHTTP handles GET /health for the whole gateway
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   h.clock.Now().UTC(),
		"apps":        h.apps,
		"environment": h.environment,
	})
}

// App returns the /health handler of one mounted app
func (h *HealthHandler) App(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code, database := "ok", http.StatusOK, "not configured"
		if h.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := h.db.PingContext(ctx); err != nil {
				status, code, database = "degraded", http.StatusServiceUnavailable, "unreachable"
			} else {
				database = "ok"
			}
		}
		respondJSON(w, code, map[string]any{
			"app":       name,
			"status":    status,
			"timestamp": h.clock.Now().UTC(),
			"database":  database,
		})
	}
}
