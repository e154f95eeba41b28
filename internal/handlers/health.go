package handlers

import (
	"net/http"
	"time"

	"osintdeck/internal/database"
	"osintdeck/internal/graph"
	"osintdeck/internal/version"
	"osintdeck/internal/web"
)

type HealthHandler struct {
	hub     *web.WSHub
	graphs  *graph.Store
	started time.Time
}

func NewHealthHandler(hub *web.WSHub, graphs *graph.Store) *HealthHandler {
	return &HealthHandler{hub: hub, graphs: graphs, started: time.Now()}
}

// Get reports liveness; a failing database ping turns the status to "degraded".
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if err := database.Ping(); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}
	resp := map[string]interface{}{
		"status":   status,
		"version":  version.Version,
		"build":    version.Build,
		"database": dbStatus,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	}
	if h.hub != nil {
		resp["ws_clients"] = h.hub.ClientCount()
	}
	if h.graphs != nil {
		resp["graph_sessions"] = h.graphs.Len()
	}
	web.OK(w, r, resp)
}
