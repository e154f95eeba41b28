package handlers

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"
)

const maxSampleCases = 100

type CaseHandler struct {
	caseRepo *database.CaseRepo
	audit    auditor
	refresh  func()
}

// NewCaseHandler calls refresh after every change so dashboard counts stay current; refresh may be nil.
func NewCaseHandler(refresh func()) *CaseHandler {
	if refresh == nil {
		refresh = func() {}
	}
	return &CaseHandler{
		caseRepo: database.NewCaseRepo(),
		audit:    newAuditor(),
		refresh:  refresh,
	}
}

func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	pq := web.ParsePageQuery(r)
	filter := database.CaseFilter{
		Page:        pq.DB(),
		Status:      r.URL.Query().Get("status"),
		Priority:    r.URL.Query().Get("priority"),
		OwnerUserID: web.QueryUint(r, "owner_user_id"),
		Keyword:     pq.Keyword,
	}
	cases, total, err := h.caseRepo.List(filter)
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	web.OKPage(w, r, cases, total, pq.Page, pq.PageSize)
}

type caseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

func (h *CaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req caseRequest
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		web.FailErr(w, r, web.ErrInvalidParam, "title")
		return
	}
	if req.Priority == "" {
		req.Priority = constants.PriorityMedium
	}
	if req.Status == "" {
		req.Status = constants.CaseOpen
	}
	if !contains(constants.AllPriorities, req.Priority) || !contains(constants.AllCaseStatuses, req.Status) {
		web.FailErr(w, r, web.ErrCaseInvalidEnum)
		return
	}

	c := &database.Case{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		OwnerUserID: uintPtr(web.GetUserID(r)),
	}
	if err := h.caseRepo.Create(c); err != nil {
		logger.Investigation.Error().Err(err).Msg("case creation failed")
		web.FailErr(w, r, web.ErrCaseCreateFail)
		return
	}
	h.audit.log(r, constants.ActionCaseCreate, "success", fmt.Sprintf("case %d: %s", c.ID, c.Title))
	h.refresh()
	web.Created(w, r, c)
}

func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	c, err := h.caseRepo.Get(id)
	if err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrCaseNotFound)
			return
		}
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	web.OK(w, r, c)
}

// Update applies the fields present in the body; absent fields keep their value.
func (h *CaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
	}
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		web.FailErr(w, r, web.ErrInvalidParam, "title")
		return
	}
	if (req.Status != nil && !contains(constants.AllCaseStatuses, *req.Status)) ||
		(req.Priority != nil && !contains(constants.AllPriorities, *req.Priority)) {
		web.FailErr(w, r, web.ErrCaseInvalidEnum)
		return
	}

	c, err := h.caseRepo.Update(id, database.CaseUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	})
	if err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrCaseNotFound)
			return
		}
		web.FailErr(w, r, web.ErrCaseUpdateFail)
		return
	}
	h.audit.log(r, constants.ActionCaseUpdate, "success", fmt.Sprintf("case %d", id))
	h.refresh()
	web.OK(w, r, c)
}

func (h *CaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	if err := h.caseRepo.Delete(id); err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrCaseNotFound)
			return
		}
		web.FailErr(w, r, web.ErrCaseDeleteFail)
		return
	}
	h.audit.log(r, constants.ActionCaseDelete, "success", fmt.Sprintf("case %d", id))
	h.refresh()
	web.OK(w, r, map[string]string{"message": "ok"})
}

// GenerateSamples creates ?count= demo cases (default 10) owned by the caller.
func (h *CaseHandler) GenerateSamples(w http.ResponseWriter, r *http.Request) {
	count := web.QueryInt(r, "count", 10)
	if count <= 0 || count > maxSampleCases {
		web.FailErr(w, r, web.ErrInvalidParam, fmt.Sprintf("count must be between 1 and %d", maxSampleCases))
		return
	}
	owner := uintPtr(web.GetUserID(r))
	created := make([]database.Case, 0, count)
	for i := 0; i < count; i++ {
		c := database.Case{
			Title:       fmt.Sprintf("Sample Case %d", 1000+rand.IntN(9000)),
			Description: fmt.Sprintf("Demo case generated for testing (%d)", i+1),
			Status:      constants.CaseOpen,
			Priority:    constants.AllPriorities[rand.IntN(len(constants.AllPriorities))],
			OwnerUserID: owner,
		}
		if err := h.caseRepo.Create(&c); err != nil {
			logger.Investigation.Error().Err(err).Int("created", len(created)).Msg("sample case creation failed")
			web.FailErr(w, r, web.ErrCaseCreateFail)
			return
		}
		created = append(created, c)
	}
	h.audit.log(r, constants.ActionCaseCreate, "success", fmt.Sprintf("generated %d sample cases", count))
	h.refresh()
	web.Created(w, r, created)
}
