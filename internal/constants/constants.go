package constants

// Indicator kinds
const (
	KindDomain = "domain"
	KindIP     = "ip"
	KindEmail  = "email"
	KindSocial = "social"
	KindPhone  = "phone"
	KindImage  = "image"
	KindIMEI   = "imei"
)

var AllKinds = []string{KindDomain, KindIP, KindEmail, KindSocial, KindPhone, KindImage, KindIMEI}

// IsKind reports whether k names a supported indicator kind.
func IsKind(k string) bool {
	for _, v := range AllKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Threat levels
const (
	ThreatLow    = "low"
	ThreatMedium = "medium"
	ThreatHigh   = "high"
)

// Case status
const (
	CaseOpen       = "open"
	CaseInProgress = "in_progress"
	CaseClosed     = "closed"
)

var AllCaseStatuses = []string{CaseOpen, CaseInProgress, CaseClosed}

// Case priority
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

var AllPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// MinPasswordLen applies to every password set through the api or the cli.
const MinPasswordLen = 6

// User roles
const (
	RoleAdmin    = "admin"
	RoleAnalyst  = "analyst"
	RoleReadonly = "readonly"
)

// Team member roles
const (
	TeamRoleOwner   = "owner"
	TeamRoleAdmin   = "admin"
	TeamRoleAnalyst = "analyst"
	TeamRoleMember  = "member"
)

var AllTeamRoles = []string{TeamRoleOwner, TeamRoleAdmin, TeamRoleAnalyst, TeamRoleMember}

// Notification types
const (
	NotifyInfo    = "info"
	NotifySuccess = "success"
	NotifyWarning = "warning"
	NotifyError   = "error"
)

// Audit actions
const (
	ActionLogin               = "login"
	ActionLoginFailed         = "login.failed"
	ActionAccountLocked       = "account.locked"
	ActionLogout              = "logout"
	ActionAuthFailed          = "auth.failed"
	ActionForbidden           = "forbidden"
	ActionRegister            = "register"
	ActionPasswordChange      = "password.change"
	ActionPasswordReset       = "password.reset"
	ActionSetup               = "setup"
	ActionSettingsUpdate      = "settings.update"
	ActionUserCreate          = "user.create"
	ActionUserDelete          = "user.delete"
	ActionUserActive          = "user.active"
	ActionInvestigationRun    = "investigation.run"
	ActionInvestigationImport = "investigation.import"
	ActionCaseCreate          = "case.create"
	ActionCaseUpdate          = "case.update"
	ActionCaseDelete          = "case.delete"
	ActionReportCreate        = "report.create"
	ActionReportDelete        = "report.delete"
	ActionReportEnrich        = "report.enrich"
	ActionTeamCreate          = "team.create"
	ActionTeamDelete          = "team.delete"
	ActionTeamMemberAdd       = "team.member.add"
	ActionTeamMemberRemove    = "team.member.remove"
	ActionTeamMemberRole      = "team.member.role"
	ActionAPIConfigSave       = "apiconfig.save"
	ActionAPIConfigDelete     = "apiconfig.delete"
	ActionExport              = "export"
)

// WebSocket channels
const (
	ChannelDashboard = "dashboard"
	ChannelGraph     = "graph"
)
