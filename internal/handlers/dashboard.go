package handlers

import (
	"net/http"

	"osintdeck/internal/dashboard"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"
)

// DashboardHandler serves the overview aggregates and the threat map.
type DashboardHandler struct {
	svc *dashboard.Service
}

func NewDashboardHandler(svc *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Get returns the cached snapshot; ?refresh=true recomputes it first.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	var (
		st  *dashboard.Stats
		err error
	)
	if r.URL.Query().Get("refresh") == "true" {
		st, err = h.svc.Compute()
	} else {
		st, err = h.svc.Stats()
	}
	if err != nil {
		logger.DB.Error().Err(err).Msg("dashboard aggregation failed")
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	web.OK(w, r, st)
}

func (h *DashboardHandler) ThreatMap(w http.ResponseWriter, r *http.Request) {
	markers, err := h.svc.ThreatMap()
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	web.OK(w, r, markers)
}
