package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"
)

type TeamHandler struct {
	teamRepo *database.TeamRepo
	userRepo *database.UserRepo
	audit    auditor
}

func NewTeamHandler() *TeamHandler {
	return &TeamHandler{
		teamRepo: database.NewTeamRepo(),
		userRepo: database.NewUserRepo(),
		audit:    newAuditor(),
	}
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teamRepo.List()
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	web.OK(w, r, teams)
}

// Create makes a team with the caller enrolled as owner.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		web.FailErr(w, r, web.ErrInvalidParam, "name")
		return
	}
	team := &database.Team{
		Name:        req.Name,
		Description: req.Description,
		OwnerUserID: uintPtr(web.GetUserID(r)),
	}
	if err := h.teamRepo.CreateWithOwner(team, constants.TeamRoleOwner); err != nil {
		logger.Auth.Error().Err(err).Str("team", req.Name).Msg("team creation failed")
		web.FailErr(w, r, web.ErrTeamCreateFail)
		return
	}
	h.audit.log(r, constants.ActionTeamCreate, "success", fmt.Sprintf("team %d: %s", team.ID, team.Name))
	web.Created(w, r, team)
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	if err := h.teamRepo.Delete(id); err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrTeamNotFound)
			return
		}
		web.FailErr(w, r, web.ErrTeamDeleteFail)
		return
	}
	h.audit.log(r, constants.ActionTeamDelete, "success", fmt.Sprintf("team %d", id))
	web.OK(w, r, map[string]string{"message": "ok"})
}

// team resolves the {id} wildcard, answering the error itself when it fails.
func (h *TeamHandler) team(w http.ResponseWriter, r *http.Request) (*database.Team, bool) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return nil, false
	}
	team, err := h.teamRepo.Get(id)
	if err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrTeamNotFound)
		} else {
			web.FailErr(w, r, web.ErrDBQuery)
		}
		return nil, false
	}
	return team, true
}

func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	team, ok := h.team(w, r)
	if !ok {
		return
	}
	members, err := h.teamRepo.Members(team.ID)
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	if members == nil {
		members = []database.TeamMemberView{}
	}
	web.OK(w, r, members)
}

func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	team, ok := h.team(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	if req.Role == "" {
		req.Role = constants.TeamRoleMember
	}
	if !contains(constants.AllTeamRoles, req.Role) {
		web.FailErr(w, r, web.ErrTeamInvalidRole)
		return
	}
	user, err := h.userRepo.FindByID(req.UserID)
	if err != nil {
		web.FailErr(w, r, web.ErrUserNotFound)
		return
	}

	members, err := h.teamRepo.Members(team.ID)
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	for _, m := range members {
		if m.UserID == user.ID {
			web.FailErr(w, r, web.ErrTeamMemberExists)
			return
		}
	}

	m := &database.TeamMember{TeamID: team.ID, UserID: user.ID, Role: req.Role}
	if err := h.teamRepo.AddMember(m); err != nil {
		web.FailErr(w, r, web.ErrTeamMemberFail)
		return
	}
	h.audit.log(r, constants.ActionTeamMemberAdd, "success", fmt.Sprintf("team %d: %s as %s", team.ID, user.Username, req.Role))
	web.Created(w, r, database.TeamMemberView{TeamMember: *m, Username: user.Username})
}

func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	team, ok := h.team(w, r)
	if !ok {
		return
	}
	userID, ok := web.PathID(r, "user_id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	if err := h.teamRepo.RemoveMember(team.ID, userID); err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrTeamMemberNone)
			return
		}
		web.FailErr(w, r, web.ErrTeamMemberFail)
		return
	}
	h.audit.log(r, constants.ActionTeamMemberRemove, "success", fmt.Sprintf("team %d: user %d", team.ID, userID))
	web.OK(w, r, map[string]string{"message": "ok"})
}

func (h *TeamHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	team, ok := h.team(w, r)
	if !ok {
		return
	}
	userID, ok := web.PathID(r, "user_id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	if !contains(constants.AllTeamRoles, req.Role) {
		web.FailErr(w, r, web.ErrTeamInvalidRole)
		return
	}
	if err := h.teamRepo.UpdateMemberRole(team.ID, userID, req.Role); err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrTeamMemberNone)
			return
		}
		web.FailErr(w, r, web.ErrTeamMemberFail)
		return
	}
	h.audit.log(r, constants.ActionTeamMemberRole, "success", fmt.Sprintf("team %d: user %d -> %s", team.ID, userID, req.Role))
	web.OK(w, r, map[string]string{"message": "ok"})
}
