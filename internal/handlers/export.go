package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"
)

const (
	maxAuditExport  = 5000
	maxImportBytes  = 32 << 20
	exportTimestamp = "20060102_150405"
)

// ExportHandler handles data export and investigation import.
type ExportHandler struct {
	invRepo    *database.InvestigationRepo
	caseRepo   *database.CaseRepo
	reportRepo *database.ReportRepo
	auditRepo  *database.AuditLogRepo
	audit      auditor
	refresh    func()
	now        func() time.Time
}

// NewExportHandler calls refresh after an import that inserted rows; refresh may be nil.
func NewExportHandler(refresh func()) *ExportHandler {
	if refresh == nil {
		refresh = func() {}
	}
	return &ExportHandler{
		invRepo:    database.NewInvestigationRepo(),
		caseRepo:   database.NewCaseRepo(),
		reportRepo: database.NewReportRepo(),
		auditRepo:  database.NewAuditLogRepo(),
		audit:      newAuditor(),
		refresh:    refresh,
		now:        time.Now,
	}
}

// table is one export in both shapes: plain objects for JSON and fixed-column rows for CSV.
type table struct {
	header  []string
	rows    [][]string
	objects interface{}
}

// investigationRecord is the portable form of an investigation, shared by export and import.
type investigationRecord struct {
	ID         uint      `json:"id"`
	Kind       string    `json:"kind"`
	Query      string    `json:"query"`
	ResultJSON string    `json:"result_json"`
	UserID     *uint     `json:"user_id,omitempty"`
	CaseID     *uint     `json:"case_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func optID(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func (h *ExportHandler) investigations() (*table, error) {
	items, err := h.invRepo.ListAll()
	if err != nil {
		return nil, err
	}
	t := &table{header: []string{"id", "kind", "query", "case_id", "user_id", "created_at", "result_json"}}
	records := make([]investigationRecord, 0, len(items))
	for _, inv := range items {
		records = append(records, investigationRecord{
			ID: inv.ID, Kind: inv.Kind, Query: inv.Query, ResultJSON: inv.ResultJSON,
			UserID: inv.UserID, CaseID: inv.CaseID, CreatedAt: inv.CreatedAt.UTC(),
		})
		t.rows = append(t.rows, []string{
			itoa(inv.ID), inv.Kind, inv.Query, optID(inv.CaseID), optID(inv.UserID),
			inv.CreatedAt.UTC().Format(time.RFC3339), inv.ResultJSON,
		})
	}
	t.objects = records
	return t, nil
}

func (h *ExportHandler) cases() (*table, error) {
	items, err := h.caseRepo.ListAll()
	if err != nil {
		return nil, err
	}
	t := &table{header: []string{"id", "title", "description", "status", "priority", "created_at"}}
	objects := make([]map[string]interface{}, 0, len(items))
	for _, c := range items {
		created := c.CreatedAt.UTC().Format(time.RFC3339)
		objects = append(objects, map[string]interface{}{
			"id": c.ID, "title": c.Title, "description": c.Description,
			"status": c.Status, "priority": c.Priority, "created_at": created,
		})
		t.rows = append(t.rows, []string{itoa(c.ID), c.Title, c.Description, c.Status, c.Priority, created})
	}
	t.objects = objects
	return t, nil
}

func (h *ExportHandler) reports() (*table, error) {
	items, err := h.reportRepo.ListAll()
	if err != nil {
		return nil, err
	}
	t := &table{header: []string{"id", "title", "summary", "indicators", "created_at", "related_case_id"}}
	objects := make([]map[string]interface{}, 0, len(items))
	for _, rep := range items {
		created := rep.CreatedAt.UTC().Format(time.RFC3339)
		objects = append(objects, map[string]interface{}{
			"id": rep.ID, "title": rep.Title, "summary": rep.Summary, "indicators": rep.Indicators,
			"created_at": created, "related_case_id": rep.RelatedCaseID,
		})
		t.rows = append(t.rows, []string{itoa(rep.ID), rep.Title, rep.Summary, rep.Indicators, created, optID(rep.RelatedCaseID)})
	}
	t.objects = objects
	return t, nil
}

func (h *ExportHandler) auditLogs(r *http.Request) (*table, error) {
	logs, _, err := h.auditRepo.List(database.AuditFilter{
		Page:      database.Page{Page: 1, PageSize: maxAuditExport},
		Action:    r.URL.Query().Get("action"),
		StartTime: r.URL.Query().Get("start_time"),
		EndTime:   r.URL.Query().Get("end_time"),
	})
	if err != nil {
		return nil, err
	}
	t := &table{header: []string{"id", "user_id", "username", "action", "result", "detail", "ip", "created_at"}, objects: logs}
	if logs == nil {
		t.objects = []database.AuditLog{}
	}
	for _, l := range logs {
		t.rows = append(t.rows, []string{
			itoa(l.ID), itoa(l.UserID), l.Username, l.Action, l.Result, l.Detail, l.IP,
			l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return t, nil
}

// Export handles GET /export/{resource}?format=json|csv.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		web.FailErr(w, r, web.ErrExportFormat)
		return
	}

	var (
		t   *table
		err error
	)
	switch resource {
	case "investigations":
		t, err = h.investigations()
	case "cases":
		t, err = h.cases()
	case "reports":
		t, err = h.reports()
	case "audit":
		if web.GetRole(r) != constants.RoleAdmin {
			web.FailErr(w, r, web.ErrForbidden)
			return
		}
		t, err = h.auditLogs(r)
	default:
		web.FailErr(w, r, web.ErrExportResource, resource)
		return
	}
	if err != nil {
		logger.DB.Error().Err(err).Str("resource", resource).Msg("export query failed")
		web.FailErr(w, r, web.ErrExportFailed)
		return
	}

	body, err := t.encode(format)
	if err != nil {
		web.FailErr(w, r, web.ErrExportFailed)
		return
	}
	h.audit.log(r, constants.ActionExport, "success", fmt.Sprintf("%s as %s", resource, format))

	filename := fmt.Sprintf("%s_%s.%s", resource, h.now().Format(exportTimestamp), format)
	contentType := "application/json; charset=utf-8"
	if format == "csv" {
		contentType = "text/csv; charset=utf-8"
	}
	web.Attachment(w, contentType, filename, body)
}

func (t *table) encode(format string) ([]byte, error) {
	var buf bytes.Buffer
	if format == "csv" {
		cw := csv.NewWriter(&buf)
		if err := cw.Write(t.header); err != nil {
			return nil, err
		}
		if err := cw.WriteAll(t.rows); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t.objects); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ImportInvestigations loads a JSON array in the export format. Ids and timestamps are
// preserved; rows whose id already exists are skipped.
func (h *ExportHandler) ImportInvestigations(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	var records []investigationRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		web.FailErr(w, r, web.ErrImportMalformed, err.Error())
		return
	}

	items := make([]database.Investigation, 0, len(records))
	invalid := 0
	for _, rec := range records {
		if !constants.IsKind(rec.Kind) || rec.Query == "" {
			invalid++
			continue
		}
		created := rec.CreatedAt
		if created.IsZero() {
			created = h.now().UTC()
		}
		items = append(items, database.Investigation{
			ID: rec.ID, Kind: rec.Kind, Query: rec.Query, ResultJSON: rec.ResultJSON,
			UserID: rec.UserID, CaseID: rec.CaseID, CreatedAt: created,
		})
	}

	inserted, err := h.invRepo.Import(items)
	if err != nil {
		logger.DB.Error().Err(err).Int("records", len(items)).Msg("investigation import failed")
		h.audit.log(r, constants.ActionInvestigationImport, "failed", err.Error())
		web.FailErr(w, r, web.ErrImportFailed)
		return
	}
	h.audit.log(r, constants.ActionInvestigationImport, "success", fmt.Sprintf("%d of %d records", inserted, len(records)))
	if inserted > 0 {
		h.refresh()
	}
	web.OK(w, r, map[string]int{
		"received": len(records),
		"imported": inserted,
		"skipped":  len(items) - inserted,
		"invalid":  invalid,
	})
}
