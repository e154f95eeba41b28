package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/graph"
	"osintdeck/internal/investigation"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"
)

// maxImageBytes caps image uploads.
const maxImageBytes = 10 << 20

// Broadcaster pushes realtime messages to WebSocket subscribers.
type Broadcaster interface {
	Broadcast(channel, msgType string, data interface{})
}

type InvestigationHandler struct {
	svc     *investigation.Service
	invRepo *database.InvestigationRepo
	graphs  *graph.Store
	hub     Broadcaster
	audit   auditor
}

func NewInvestigationHandler(svc *investigation.Service, hub Broadcaster) *InvestigationHandler {
	return &InvestigationHandler{
		svc:     svc,
		invRepo: database.NewInvestigationRepo(),
		graphs:  svc.Graphs,
		hub:     hub,
		audit:   newAuditor(),
	}
}

type runRequest struct {
	Query  string `json:"query"`
	CaseID *uint  `json:"case_id"`
}

// investigationKey is the wildcard shared by POST /investigations/{key} (an indicator
// kind) and GET /investigations/{key} (an id); one mux pattern serves both methods.
const investigationKey = "key"

// Run handles POST /investigations/{kind}. Image lookups take a multipart "file" field,
// every other kind a JSON body.
func (h *InvestigationHandler) Run(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue(investigationKey)
	if !constants.IsKind(kind) {
		web.FailErr(w, r, web.ErrUnknownKind, kind)
		return
	}

	req := investigation.Request{
		Kind:      kind,
		UserID:    web.GetUserID(r),
		SessionID: web.GetSessionID(r),
	}
	if kind == constants.KindImage {
		if appErr := readImage(r, &req); appErr != nil {
			web.FailErr(w, r, appErr)
			return
		}
	} else {
		var body runRequest
		if err := decodeJSON(r, &body); err != nil {
			web.FailErr(w, r, web.ErrInvalidBody)
			return
		}
		req.Query = body.Query
		req.CaseID = body.CaseID
	}

	out, err := h.svc.Run(r.Context(), req)
	if err != nil {
		h.audit.log(r, constants.ActionInvestigationRun, "failed", kind+": "+investigation.ErrorClass(err))
		h.fail(w, r, err)
		return
	}

	h.audit.log(r, constants.ActionInvestigationRun, "success", kind)
	if req.SessionID != "" && h.hub != nil {
		h.hub.Broadcast(web.GraphChannel(req.SessionID), "graph_update", h.graphs.Session(req.SessionID).Snapshot())
	}
	web.OK(w, r, out)
}

func readImage(r *http.Request, req *investigation.Request) *web.AppError {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return web.ErrImageTooLarge
		}
		return web.ErrImageMissing
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return web.ErrImageMissing
	}
	defer file.Close()
	if header.Size > maxImageBytes {
		return web.ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return web.ErrImageMissing
	}
	if len(data) > maxImageBytes {
		return web.ErrImageTooLarge
	}
	req.Data = data
	req.FileName = header.Filename
	if v := r.FormValue("case_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil && id > 0 {
			cid := uint(id)
			req.CaseID = &cid
		}
	}
	return nil
}

func (h *InvestigationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rl *investigation.RateLimitError
	switch {
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(rl)))
		web.FailErr(w, r, web.ErrRateLimited, err.Error())
	case errors.Is(err, investigation.ErrUnknownKind):
		web.FailErr(w, r, web.ErrUnknownKind)
	case errors.Is(err, investigation.ErrEmptyQuery):
		web.FailErr(w, r, web.ErrEmptyQuery)
	case errors.Is(err, investigation.ErrInvalidIndicator):
		web.FailErr(w, r, web.ErrInvalidIndicator, err.Error())
	case errors.Is(err, investigation.ErrCaseNotFound):
		web.FailErr(w, r, web.ErrCaseNotFound)
	case errors.Is(err, investigation.ErrNoData):
		web.FailErr(w, r, web.ErrNoData)
	default:
		logger.Investigation.Error().Err(err).Msg("investigation failed")
		web.FailErr(w, r, web.ErrInvestigationFail)
	}
}

func retrySeconds(rl *investigation.RateLimitError) int {
	secs := int(time.Until(rl.Decision.ResetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// investigationView exposes the stored result as JSON along with its threat estimate.
type investigationView struct {
	database.Investigation
	Result      json.RawMessage `json:"result"`
	ThreatScore int             `json:"threat_score"`
	ThreatLevel string          `json:"threat_level"`
}

func toInvestigationView(inv database.Investigation) investigationView {
	v := investigationView{Investigation: inv}
	if json.Valid([]byte(inv.ResultJSON)) {
		v.Result = json.RawMessage(inv.ResultJSON)
	} else {
		v.Result = json.RawMessage("null")
	}
	v.ThreatScore = investigation.EstimateThreat(inv.Kind, inv.ResultJSON)
	v.ThreatLevel = investigation.ThreatLevel(v.ThreatScore)
	return v
}

func (h *InvestigationHandler) List(w http.ResponseWriter, r *http.Request) {
	pq := web.ParsePageQuery(r)
	filter := database.InvestigationFilter{
		Page:      pq.DB(),
		Kind:      r.URL.Query().Get("kind"),
		UserID:    web.QueryUint(r, "user_id"),
		CaseID:    web.QueryUint(r, "case_id"),
		StartTime: pq.StartTime,
		EndTime:   pq.EndTime,
	}
	rows, total, err := h.invRepo.List(filter)
	if err != nil {
		web.FailErr(w, r, web.ErrInvestigationQuery)
		return
	}
	views := make([]investigationView, 0, len(rows))
	for _, inv := range rows {
		views = append(views, toInvestigationView(inv))
	}
	web.OKPage(w, r, views, total, pq.Page, pq.PageSize)
}

func (h *InvestigationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, investigationKey)
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	inv, err := h.invRepo.Get(id)
	if err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrInvestigationNone)
			return
		}
		web.FailErr(w, r, web.ErrInvestigationQuery)
		return
	}
	web.OK(w, r, toInvestigationView(*inv))
}

// GraphHandler serves the entity graph of the caller's session.
type GraphHandler struct {
	graphs *graph.Store
	hub    Broadcaster
}

func NewGraphHandler(graphs *graph.Store, hub Broadcaster) *GraphHandler {
	return &GraphHandler{graphs: graphs, hub: hub}
}

func (h *GraphHandler) Get(w http.ResponseWriter, r *http.Request) {
	sid := web.GetSessionID(r)
	if sid == "" {
		web.OK(w, r, graph.New().Snapshot())
		return
	}
	web.OK(w, r, h.graphs.Session(sid).Snapshot())
}

func (h *GraphHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sid := web.GetSessionID(r)
	if sid == "" {
		web.OK(w, r, graph.New().Snapshot())
		return
	}
	g := h.graphs.Session(sid)
	g.Clear()
	snap := g.Snapshot()
	if h.hub != nil {
		h.hub.Broadcast(web.GraphChannel(sid), "graph_update", snap)
	}
	web.OK(w, r, snap)
}
