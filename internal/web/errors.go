package web

import (
	"fmt"
	"net/http"
)

// AppError represents a structured API error with a machine-readable code.
// Message is an English fallback; clients key their own text off Code.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// FailErr writes a structured error response from an AppError.
// Optional detail is appended to the message (e.g. err.Error()).
func FailErr(w http.ResponseWriter, r *http.Request, e *AppError, detail ...string) {
	msg := e.Message
	if len(detail) > 0 && detail[0] != "" {
		msg = msg + ": " + detail[0]
	}
	Fail(w, r, e.Code, msg, e.HTTPStatus)
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

var (
	ErrUnauthorized     = &AppError{"AUTH_UNAUTHORIZED", "not logged in or session expired", 401, nil}
	ErrForbidden        = &AppError{"AUTH_FORBIDDEN", "permission denied", 403, nil}
	ErrInvalidPassword  = &AppError{"AUTH_INVALID_PASSWORD", "invalid username or password", 401, nil}
	ErrAccountLocked    = &AppError{"AUTH_ACCOUNT_LOCKED", "account locked, try again later", 423, nil}
	ErrTokenExpired     = &AppError{"AUTH_TOKEN_EXPIRED", "session expired, please login again", 401, nil}
	ErrTokenInvalid     = &AppError{"AUTH_TOKEN_INVALID", "invalid token", 400, nil}
	ErrEmptyCredentials = &AppError{"AUTH_EMPTY_CREDENTIALS", "username and password required", 400, nil}
	ErrPasswordTooShort = &AppError{"AUTH_PASSWORD_TOO_SHORT", "password must be at least 6 characters", 400, nil}
	ErrSetupDone        = &AppError{"AUTH_SETUP_DONE", "admin account already exists", 409, nil}
	ErrOldPasswordWrong = &AppError{"AUTH_OLD_PASSWORD_WRONG", "old password incorrect", 401, nil}
	ErrLoginFailed      = &AppError{"AUTH_LOGIN_FAILED", "login failed", 500, nil}
	ErrAccountDisabled  = &AppError{"AUTH_ACCOUNT_DISABLED", "account disabled", 403, nil}
)

// ---------------------------------------------------------------------------
// System / generic
// ---------------------------------------------------------------------------

var (
	ErrNotFound      = &AppError{"NOT_FOUND", "resource not found", 404, nil}
	ErrInvalidParam  = &AppError{"INVALID_PARAM", "invalid request parameter", 400, nil}
	ErrInvalidBody   = &AppError{"INVALID_BODY", "invalid request body", 400, nil}
	ErrInternalError = &AppError{"INTERNAL_ERROR", "internal server error", 500, nil}
	ErrRateLimited   = &AppError{"RATE_LIMITED", "too many requests, please try later", 429, nil}
	ErrInvalidInput  = &AppError{"INVALID_INPUT", "input contains illegal characters", 400, nil}
	ErrDBQuery       = &AppError{"DB_QUERY_FAILED", "database query failed", 500, nil}
	ErrEncrypt       = &AppError{"ENCRYPT_FAILED", "encryption failed", 500, nil}
	ErrRegistration  = &AppError{"REGISTRATION_DISABLED", "self registration is disabled", 403, nil}
)

// ---------------------------------------------------------------------------
// User management
// ---------------------------------------------------------------------------

var (
	ErrUserNotFound   = &AppError{"USER_NOT_FOUND", "user not found", 404, nil}
	ErrUserExists     = &AppError{"USER_EXISTS", "username already exists", 409, nil}
	ErrUserCreateFail = &AppError{"USER_CREATE_FAILED", "user creation failed", 500, nil}
	ErrUserDeleteFail = &AppError{"USER_DELETE_FAILED", "user deletion failed", 500, nil}
	ErrUserQueryFail  = &AppError{"USER_QUERY_FAILED", "user query failed", 500, nil}
	ErrUserSelfDelete = &AppError{"USER_SELF_DELETE", "cannot delete current user", 403, nil}
	ErrUserSelfActive = &AppError{"USER_SELF_ACTIVE", "cannot change own active state", 403, nil}
	ErrUserUpdateFail = &AppError{"USER_UPDATE_FAILED", "user update failed", 500, nil}
)

// ---------------------------------------------------------------------------
// Investigation
// ---------------------------------------------------------------------------

var (
	ErrUnknownKind        = &AppError{"INVESTIGATION_UNKNOWN_KIND", "unsupported indicator kind", 404, nil}
	ErrEmptyQuery         = &AppError{"INVESTIGATION_EMPTY_QUERY", "query is required", 400, nil}
	ErrInvalidIndicator   = &AppError{"INVESTIGATION_INVALID_INDICATOR", "query does not match the indicator format", 422, nil}
	ErrNoData             = &AppError{"INVESTIGATION_NO_DATA", "no data returned; ensure the service is configured", 502, nil}
	ErrInvestigationFail  = &AppError{"INVESTIGATION_FAILED", "investigation failed", 500, nil}
	ErrInvestigationQuery = &AppError{"INVESTIGATION_QUERY_FAILED", "investigation query failed", 500, nil}
	ErrInvestigationNone  = &AppError{"INVESTIGATION_NOT_FOUND", "investigation not found", 404, nil}
	ErrImageMissing       = &AppError{"INVESTIGATION_IMAGE_MISSING", "image file is required", 400, nil}
	ErrImageTooLarge      = &AppError{"INVESTIGATION_IMAGE_TOO_LARGE", "image file too large", 413, nil}
)

// ---------------------------------------------------------------------------
// Case
// ---------------------------------------------------------------------------

var (
	ErrCaseNotFound    = &AppError{"CASE_NOT_FOUND", "case not found", 404, nil}
	ErrCaseCreateFail  = &AppError{"CASE_CREATE_FAILED", "case creation failed", 500, nil}
	ErrCaseUpdateFail  = &AppError{"CASE_UPDATE_FAILED", "case update failed", 500, nil}
	ErrCaseDeleteFail  = &AppError{"CASE_DELETE_FAILED", "case deletion failed", 500, nil}
	ErrCaseInvalidEnum = &AppError{"CASE_INVALID_VALUE", "invalid case status or priority", 400, nil}
)

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

var (
	ErrReportNotFound   = &AppError{"REPORT_NOT_FOUND", "report not found", 404, nil}
	ErrReportCreateFail = &AppError{"REPORT_CREATE_FAILED", "report creation failed", 500, nil}
	ErrReportDeleteFail = &AppError{"REPORT_DELETE_FAILED", "report deletion failed", 500, nil}
	ErrReportEnrichFail = &AppError{"REPORT_ENRICH_FAILED", "report enrichment failed", 500, nil}
)

// ---------------------------------------------------------------------------
// Team
// ---------------------------------------------------------------------------

var (
	ErrTeamNotFound     = &AppError{"TEAM_NOT_FOUND", "team not found", 404, nil}
	ErrTeamCreateFail   = &AppError{"TEAM_CREATE_FAILED", "team creation failed", 500, nil}
	ErrTeamDeleteFail   = &AppError{"TEAM_DELETE_FAILED", "team deletion failed", 500, nil}
	ErrTeamMemberExists = &AppError{"TEAM_MEMBER_EXISTS", "user is already a member", 409, nil}
	ErrTeamMemberNone   = &AppError{"TEAM_MEMBER_NOT_FOUND", "team member not found", 404, nil}
	ErrTeamInvalidRole  = &AppError{"TEAM_INVALID_ROLE", "invalid team role", 400, nil}
	ErrTeamMemberFail   = &AppError{"TEAM_MEMBER_FAILED", "team member update failed", 500, nil}
)

// ---------------------------------------------------------------------------
// API config
// ---------------------------------------------------------------------------

var (
	ErrAPIConfigNotFound = &AppError{"APICONFIG_NOT_FOUND", "api config not found", 404, nil}
	ErrAPIConfigSaveFail = &AppError{"APICONFIG_SAVE_FAILED", "api config save failed", 500, nil}
	ErrAPIConfigDelFail  = &AppError{"APICONFIG_DELETE_FAILED", "api config deletion failed", 500, nil}
	ErrAPIConfigName     = &AppError{"APICONFIG_NAME_REQUIRED", "service name is required", 400, nil}
)

// ---------------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------------

var (
	ErrNotificationNotFound = &AppError{"NOTIFICATION_NOT_FOUND", "notification not found", 404, nil}
	ErrNotificationFail     = &AppError{"NOTIFICATION_FAILED", "notification update failed", 500, nil}
	ErrNotifyTestFailed     = &AppError{"NOTIFY_TEST_FAILED", "notification test failed", 502, nil}
	ErrNotifyNoChannels     = &AppError{"NOTIFY_NO_CHANNELS", "no notification channels configured", 400, nil}
)

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

var (
	ErrSettingsQueryFail  = &AppError{"SETTINGS_QUERY_FAILED", "settings query failed", 500, nil}
	ErrSettingsUpdateFail = &AppError{"SETTINGS_UPDATE_FAILED", "settings update failed", 500, nil}
)

// ---------------------------------------------------------------------------
// Audit / Export / Import
// ---------------------------------------------------------------------------

var (
	ErrAuditQueryFail  = &AppError{"AUDIT_QUERY_FAILED", "audit log query failed", 500, nil}
	ErrExportFailed    = &AppError{"EXPORT_FAILED", "export failed", 500, nil}
	ErrExportFormat    = &AppError{"EXPORT_FORMAT", "format must be json or csv", 400, nil}
	ErrExportResource  = &AppError{"EXPORT_RESOURCE", "unknown export resource", 404, nil}
	ErrImportFailed    = &AppError{"IMPORT_FAILED", "import failed", 500, nil}
	ErrImportMalformed = &AppError{"IMPORT_MALFORMED", "import file is not a JSON array of investigations", 400, nil}
)
