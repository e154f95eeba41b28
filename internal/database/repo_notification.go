package database

import (
	"gorm.io/gorm"
)

type NotificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{db: DB}
}

func (r *NotificationRepo) Create(n *Notification) error {
	return r.db.Create(n).Error
}

// List returns the user's notifications newest first.
func (r *NotificationRepo) List(userID uint, unreadOnly bool, limit int) ([]Notification, error) {
	var items []Notification
	q := r.db.Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("created_at desc, id desc").Find(&items).Error
	return items, err
}

func (r *NotificationRepo) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&count).Error
	return count, err
}

func (r *NotificationRepo) MarkRead(userID, id uint) error {
	res := r.db.Model(&Notification{}).Where("id = ? AND user_id = ?", id, userID).Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(userID uint) error {
	return r.db.Model(&Notification{}).Where("user_id = ? AND read = ?", userID, false).Update("read", true).Error
}

func (r *NotificationRepo) Clear(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&Notification{}).Error
}
