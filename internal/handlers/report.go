package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/investigation"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"
)

type ReportHandler struct {
	reportRepo *database.ReportRepo
	caseRepo   *database.CaseRepo
	svc        *investigation.Service
	audit      auditor
}

func NewReportHandler(svc *investigation.Service) *ReportHandler {
	return &ReportHandler{
		reportRepo: database.NewReportRepo(),
		caseRepo:   database.NewCaseRepo(),
		svc:        svc,
		audit:      newAuditor(),
	}
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	pq := web.ParsePageQuery(r)
	filter := database.ReportFilter{
		Page:          pq.DB(),
		RelatedCaseID: web.QueryUint(r, "related_case_id"),
		Keyword:       pq.Keyword,
	}
	items, total, err := h.reportRepo.List(filter)
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	web.OKPage(w, r, items, total, pq.Page, pq.PageSize)
}

type reportRequest struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Indicators    string `json:"indicators"` // comma separated
	RelatedCaseID *uint  `json:"related_case_id"`
}

func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	rep, appErr := h.create(r, req)
	if appErr != nil {
		web.FailErr(w, r, appErr)
		return
	}
	web.Created(w, r, rep)
}

func (h *ReportHandler) create(r *http.Request, req reportRequest) (*database.IntelligenceReport, *web.AppError) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, web.ErrInvalidParam
	}
	if req.RelatedCaseID != nil {
		if _, err := h.caseRepo.Get(*req.RelatedCaseID); err != nil {
			return nil, web.ErrCaseNotFound
		}
	}
	rep := &database.IntelligenceReport{
		Title:         req.Title,
		Summary:       req.Summary,
		Indicators:    normalizeIndicators(req.Indicators),
		RelatedCaseID: req.RelatedCaseID,
		AuthorUserID:  uintPtr(web.GetUserID(r)),
	}
	if err := h.reportRepo.Create(rep); err != nil {
		logger.Investigation.Error().Err(err).Msg("report creation failed")
		return nil, web.ErrReportCreateFail
	}
	h.audit.log(r, constants.ActionReportCreate, "success", fmt.Sprintf("report %d: %s", rep.ID, rep.Title))
	return rep, nil
}

// normalizeIndicators trims the comma separated list and drops empty entries.
func normalizeIndicators(raw string) string {
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	if err := h.reportRepo.Delete(id); err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrReportNotFound)
			return
		}
		web.FailErr(w, r, web.ErrReportDeleteFail)
		return
	}
	h.audit.log(r, constants.ActionReportDelete, "success", fmt.Sprintf("report %d", id))
	web.OK(w, r, map[string]string{"message": "ok"})
}

// Enrich re-checks indicators from recent investigations. When a title is given the
// enriched values are also saved as a new report.
func (h *ReportHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
		reportRequest
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			web.FailErr(w, r, web.ErrInvalidBody)
			return
		}
	}

	indicators, err := h.svc.EnrichRecent(r.Context(), req.Limit)
	if err != nil {
		logger.Investigation.Warn().Err(err).Int("enriched", len(indicators)).Msg("report enrichment failed")
		web.FailErr(w, r, web.ErrReportEnrichFail)
		return
	}
	h.audit.log(r, constants.ActionReportEnrich, "success", fmt.Sprintf("%d indicators", len(indicators)))

	resp := map[string]interface{}{"indicators": indicators}
	if strings.TrimSpace(req.Title) != "" {
		values := make([]string, 0, len(indicators))
		for _, ind := range indicators {
			values = append(values, ind.Value)
		}
		if req.Indicators != "" {
			values = append([]string{req.Indicators}, values...)
		}
		req.Indicators = strings.Join(values, ",")
		rep, appErr := h.create(r, req.reportRequest)
		if appErr != nil {
			web.FailErr(w, r, appErr)
			return
		}
		resp["report"] = rep
	}
	web.OK(w, r, resp)
}
