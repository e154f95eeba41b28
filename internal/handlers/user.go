package handlers

import (
	"net/http"
	"strings"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"

	"golang.org/x/crypto/bcrypt"
)

var userRoles = []string{constants.RoleAdmin, constants.RoleAnalyst, constants.RoleReadonly}

// UserHandler manages user CRUD operations.
type UserHandler struct {
	userRepo *database.UserRepo
	audit    auditor
}

func NewUserHandler() *UserHandler {
	return &UserHandler{
		userRepo: database.NewUserRepo(),
		audit:    newAuditor(),
	}
}

// UserResponse is the user info response (no password).
type UserResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u *database.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userRepo.List()
	if err != nil {
		web.FailErr(w, r, web.ErrUserQueryFail)
		return
	}
	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	web.OK(w, r, resp)
}

// Create adds a user with the given role; the role defaults to readonly.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		web.FailErr(w, r, web.ErrEmptyCredentials)
		return
	}
	if len(req.Password) < constants.MinPasswordLen {
		web.FailErr(w, r, web.ErrPasswordTooShort)
		return
	}
	if req.Role == "" {
		req.Role = constants.RoleReadonly
	}
	if !contains(userRoles, req.Role) {
		web.FailErr(w, r, web.ErrInvalidParam, "role")
		return
	}
	if existing, _ := h.userRepo.FindByUsername(req.Username); existing != nil {
		web.FailErr(w, r, web.ErrUserExists)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		web.FailErr(w, r, web.ErrEncrypt)
		return
	}
	user := &database.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := h.userRepo.Create(user); err != nil {
		web.FailErr(w, r, web.ErrUserCreateFail)
		return
	}

	h.audit.log(r, constants.ActionUserCreate, "success", "created user: "+req.Username)
	logger.Auth.Info().Str("username", req.Username).Str("role", req.Role).Msg("user created")
	web.Created(w, r, toUserResponse(user))
}

// Delete removes a user. Admins cannot delete themselves.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	if id == web.GetUserID(r) {
		web.FailErr(w, r, web.ErrUserSelfDelete)
		return
	}

	user, err := h.userRepo.FindByID(id)
	if err != nil {
		web.FailErr(w, r, web.ErrUserNotFound)
		return
	}
	if err := h.userRepo.Delete(id); err != nil {
		web.FailErr(w, r, web.ErrUserDeleteFail)
		return
	}

	h.audit.log(r, constants.ActionUserDelete, "success", "deleted user: "+user.Username)
	logger.Auth.Info().Str("username", user.Username).Msg("user deleted")
	web.OK(w, r, map[string]string{"message": "ok"})
}

// SetActive enables or disables a login without deleting the account.
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Active == nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	if id == web.GetUserID(r) {
		web.FailErr(w, r, web.ErrUserSelfActive)
		return
	}

	user, err := h.userRepo.FindByID(id)
	if err != nil {
		web.FailErr(w, r, web.ErrUserNotFound)
		return
	}
	if err := h.userRepo.SetActive(id, *req.Active); err != nil {
		web.FailErr(w, r, web.ErrUserUpdateFail)
		return
	}
	user.IsActive = *req.Active

	state := "disabled"
	if user.IsActive {
		state = "enabled"
	}
	h.audit.log(r, constants.ActionUserActive, "success", state+" user: "+user.Username)
	logger.Auth.Info().Str("username", user.Username).Bool("active", user.IsActive).Msg("user active state changed")
	web.OK(w, r, toUserResponse(user))
}
