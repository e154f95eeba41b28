package database

import (
	"osintdeck/internal/logger"

	"gorm.io/gorm"
)

type AuditLogRepo struct {
	db *gorm.DB
}

func NewAuditLogRepo() *AuditLogRepo {
	return &AuditLogRepo{db: DB}
}

func (r *AuditLogRepo) Create(log *AuditLog) error {
	if err := r.db.Create(log).Error; err != nil {
		logger.Audit.Error().Err(err).Str("action", log.Action).Msg("audit log write failed")
		return err
	}
	return nil
}

func (r *AuditLogRepo) List(filter AuditFilter) ([]AuditLog, int64, error) {
	var logs []AuditLog
	q := r.db.Model(&AuditLog{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.UserID > 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.StartTime != "" {
		q = q.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != "" {
		q = q.Where("created_at <= ?", filter.EndTime)
	}
	total, err := paginate(q, &filter.Page, &logs, "action", "username")
	return logs, total, err
}

type AuditFilter struct {
	Page
	Action    string
	UserID    uint
	StartTime string
	EndTime   string
}
