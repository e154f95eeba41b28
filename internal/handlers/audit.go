package handlers

import (
	"net/http"

	"osintdeck/internal/database"
	"osintdeck/internal/web"
)

// AuditHandler manages audit log queries.
type AuditHandler struct {
	auditRepo *database.AuditLogRepo
}

func NewAuditHandler() *AuditHandler {
	return &AuditHandler{
		auditRepo: database.NewAuditLogRepo(),
	}
}

// List returns audit logs with pagination and filters.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	pq := web.ParsePageQuery(r)
	filter := database.AuditFilter{
		Page:      pq.DB(),
		Action:    r.URL.Query().Get("action"),
		UserID:    web.QueryUint(r, "user_id"),
		StartTime: pq.StartTime,
		EndTime:   pq.EndTime,
	}

	logs, total, err := h.auditRepo.List(filter)
	if err != nil {
		web.FailErr(w, r, web.ErrAuditQueryFail)
		return
	}
	web.OKPage(w, r, logs, total, pq.Page, pq.PageSize)
}
