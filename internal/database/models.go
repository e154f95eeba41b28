package database

import (
	"time"
)

type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash   string     `gorm:"not null" json:"-"`
	Role           string     `gorm:"not null;default:analyst" json:"role"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	FailedAttempts int        `gorm:"default:0" json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Case struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"not null;default:open;index" json:"status"`
	Priority    string    `gorm:"not null;default:medium" json:"priority"`
	OwnerUserID *uint     `gorm:"index" json:"owner_user_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Investigation is one persisted enrichment attempt. Rows are never updated.
// Query holds the SHA-256 of the raw input for email and phone kinds.
type Investigation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"not null;index" json:"kind"`
	Query      string    `gorm:"not null" json:"query"`
	ResultJSON string    `gorm:"type:text" json:"result_json"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	CaseID     *uint     `gorm:"index" json:"case_id,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

type APIConfig struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ServiceName string    `gorm:"uniqueIndex;not null" json:"service_name"`
	APIKey      string    `gorm:"type:text" json:"-"`
	BaseURL     string    `json:"base_url"`
	IsEnabled   bool      `gorm:"not null" json:"is_enabled"`
	RateLimit   int       `gorm:"not null;default:100" json:"rate_limit"` // requests per hour
	Notes       string    `gorm:"type:text" json:"notes"`
	Credentials string    `gorm:"type:text" json:"-"` // JSON object for multi-key providers
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type IntelligenceReport struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"not null" json:"title"`
	Summary       string    `gorm:"type:text" json:"summary"`
	Indicators    string    `gorm:"type:text" json:"indicators"`
	RelatedCaseID *uint     `gorm:"index" json:"related_case_id,omitempty"`
	AuthorUserID  *uint     `gorm:"index" json:"author_user_id,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

type Team struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerUserID *uint     `gorm:"index" json:"owner_user_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

type TeamMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	TeamID   uint      `gorm:"not null;uniqueIndex:idx_team_user" json:"team_id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_team_user" json:"user_id"`
	Role     string    `gorm:"not null;default:member" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Username  string    `json:"username"`
	Action    string    `gorm:"index" json:"action"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	Result    string    `json:"result"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Type      string    `gorm:"not null;default:info" json:"type"`
	Read      bool      `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
