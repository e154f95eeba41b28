package handlers

import (
	"net/http"
	"strings"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/graph"
	"osintdeck/internal/logger"
	"osintdeck/internal/web"
	"osintdeck/internal/webconfig"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxFailedAttempts = 5
	lockDuration      = 15 * time.Minute
)

type AuthHandler struct {
	userRepo *database.UserRepo
	audit    auditor
	cfg      *webconfig.Config
	graphs   *graph.Store
	now      func() time.Time
}

// NewAuthHandler drops the caller's graph session from graphs on logout; graphs may be nil.
func NewAuthHandler(cfg *webconfig.Config, graphs *graph.Store) *AuthHandler {
	return &AuthHandler{
		userRepo: database.NewUserRepo(),
		audit:    newAuditor(),
		cfg:      cfg,
		graphs:   graphs,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt string        `json:"expires_at"`
	User      loginUserInfo `json:"user"`
}

type loginUserInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		web.FailErr(w, r, web.ErrEmptyCredentials)
		return
	}
	ip := web.ClientIP(r)

	user, err := h.userRepo.FindByUsername(req.Username)
	if err != nil {
		h.audit.logAs(r, 0, req.Username, constants.ActionLoginFailed, "failed", "user not found")
		logger.Auth.Warn().Str("username", req.Username).Str("ip", ip).Msg("login failed: user not found")
		web.FailErr(w, r, web.ErrInvalidPassword)
		return
	}

	if user.LockedUntil != nil && user.LockedUntil.After(h.now()) {
		h.audit.logAs(r, user.ID, user.Username, constants.ActionLoginFailed, "failed", "account locked")
		logger.Auth.Warn().Str("username", req.Username).Str("ip", ip).Msg("login failed: account locked")
		web.FailErr(w, r, web.ErrAccountLocked)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.userRepo.IncrementFailedAttempts(user.ID)
		h.audit.logAs(r, user.ID, user.Username, constants.ActionLoginFailed, "failed", "wrong password")
		if user.FailedAttempts+1 >= maxFailedAttempts {
			h.userRepo.LockUntil(user.ID, h.now().Add(lockDuration))
			h.audit.logAs(r, user.ID, user.Username, constants.ActionAccountLocked, "locked", "too many failed attempts")
			logger.Auth.Warn().Str("username", req.Username).Str("ip", ip).Msg("account locked")
		}
		logger.Auth.Warn().Str("username", req.Username).Str("ip", ip).Msg("login failed: wrong password")
		web.FailErr(w, r, web.ErrInvalidPassword)
		return
	}

	if !user.IsActive {
		h.audit.logAs(r, user.ID, user.Username, constants.ActionLoginFailed, "failed", "account disabled")
		web.FailErr(w, r, web.ErrAccountDisabled)
		return
	}

	h.userRepo.ResetFailedAttempts(user.ID)

	token, expiresAt, err := web.GenerateJWT(user.ID, user.Username, user.Role, h.cfg.Auth.JWTSecret, h.cfg.JWTExpireDuration())
	if err != nil {
		logger.Auth.Error().Err(err).Msg("JWT generation failed")
		web.FailErr(w, r, web.ErrLoginFailed)
		return
	}

	h.audit.logAs(r, user.ID, user.Username, constants.ActionLogin, "success", "")
	logger.Auth.Info().Str("username", user.Username).Str("ip", ip).Msg("user logged in")

	http.SetCookie(w, &http.Cookie{
		Name:     web.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	web.OK(w, r, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      loginUserInfo{ID: user.ID, Username: user.Username, Role: user.Role},
	})
}

// Setup creates the first admin. It is refused once any user exists.
func (h *AuthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	count, err := h.userRepo.Count()
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	if count > 0 {
		web.FailErr(w, r, web.ErrSetupDone)
		return
	}

	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	user, appErr := h.createUser(req, constants.RoleAdmin)
	if appErr != nil {
		web.FailErr(w, r, appErr)
		return
	}

	h.audit.logAs(r, user.ID, user.Username, constants.ActionSetup, "success", "")
	logger.Auth.Info().Str("username", user.Username).Msg("admin account created")
	web.OK(w, r, map[string]string{"message": "ok"})
}

// Register is self sign-up as an analyst, available only when the config allows it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Auth.AllowRegistration {
		web.FailErr(w, r, web.ErrRegistration)
		return
	}
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	if existing, _ := h.userRepo.FindByUsername(strings.TrimSpace(req.Username)); existing != nil {
		web.FailErr(w, r, web.ErrUserExists)
		return
	}
	user, appErr := h.createUser(req, constants.RoleAnalyst)
	if appErr != nil {
		web.FailErr(w, r, appErr)
		return
	}

	h.audit.logAs(r, user.ID, user.Username, constants.ActionRegister, "success", "")
	logger.Auth.Info().Str("username", user.Username).Msg("user registered")
	web.Created(w, r, toUserResponse(user))
}

func (h *AuthHandler) createUser(req credentials, role string) (*database.User, *web.AppError) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, web.ErrEmptyCredentials
	}
	if len(req.Password) < constants.MinPasswordLen {
		return nil, web.ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, web.ErrEncrypt
	}
	user := &database.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := h.userRepo.Create(user); err != nil {
		logger.Auth.Error().Err(err).Str("username", req.Username).Msg("user creation failed")
		return nil, web.ErrUserCreateFail
	}
	return user, nil
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	if len(req.NewPassword) < constants.MinPasswordLen {
		web.FailErr(w, r, web.ErrPasswordTooShort)
		return
	}

	user, err := h.userRepo.FindByID(web.GetUserID(r))
	if err != nil {
		web.FailErr(w, r, web.ErrUserNotFound)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.audit.log(r, constants.ActionPasswordChange, "failed", "wrong old password")
		web.FailErr(w, r, web.ErrOldPasswordWrong)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		web.FailErr(w, r, web.ErrEncrypt)
		return
	}
	if err := h.userRepo.UpdatePassword(user.ID, string(hash)); err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}

	h.audit.log(r, constants.ActionPasswordChange, "success", "")
	logger.Auth.Info().Str("username", user.Username).Msg("password changed")
	web.OK(w, r, map[string]string{"message": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userRepo.FindByID(web.GetUserID(r))
	if err != nil {
		web.FailErr(w, r, web.ErrUserNotFound)
		return
	}
	web.OK(w, r, map[string]interface{}{
		"id":         user.ID,
		"username":   user.Username,
		"role":       user.Role,
		"session_id": web.GetSessionID(r),
	})
}

func (h *AuthHandler) NeedsSetup(w http.ResponseWriter, r *http.Request) {
	count, err := h.userRepo.Count()
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	resp := map[string]interface{}{
		"needs_setup":        count == 0,
		"allow_registration": h.cfg.Auth.AllowRegistration,
	}
	if count > 0 {
		resp["login_hint"] = h.userRepo.FirstUsername()
	}
	web.OK(w, r, resp)
}

// Logout clears the cookie and forgets the session's entity graph.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.graphs != nil {
		if sid := web.GetSessionID(r); sid != "" {
			h.graphs.Drop(sid)
		}
	}
	h.audit.log(r, constants.ActionLogout, "success", "")
	http.SetCookie(w, &http.Cookie{
		Name:     web.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	web.OK(w, r, map[string]string{"message": "logged out"})
}
