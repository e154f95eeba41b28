package notify

import (
	"context"
	"fmt"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/logger"
)

const (
	TypeInfo    = constants.NotifyInfo
	TypeSuccess = constants.NotifySuccess
	TypeWarning = constants.NotifyWarning
	TypeError   = constants.NotifyError
)

// ValidType reports whether t is one of the four notification types.
func ValidType(t string) bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Pusher delivers realtime events; the websocket hub satisfies it.
type Pusher interface {
	Broadcast(channel, msgType string, data interface{})
}

// UserChannel is the websocket channel carrying one user's notifications.
func UserChannel(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// Center stores per-user notifications, pushes them live and forwards
// warnings and errors to the external channels.
type Center struct {
	repo    *database.NotificationRepo
	pusher  Pusher
	manager *Manager
}

func NewCenter(repo *database.NotificationRepo, pusher Pusher, manager *Manager) *Center {
	return &Center{repo: repo, pusher: pusher, manager: manager}
}

// Add never fails the caller; storage errors are logged.
func (c *Center) Add(userID uint, title, message, typ string) {
	if !ValidType(typ) {
		typ = TypeInfo
	}
	n := &database.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.repo.Create(n); err != nil {
		logger.Notify.Error().Err(err).Uint("user_id", userID).Msg("保存通知失败")
	}
	if c.pusher != nil && userID != 0 {
		c.pusher.Broadcast(UserChannel(userID), "notification", n)
	}
	if c.manager != nil && (typ == TypeWarning || typ == TypeError) {
		go c.manager.Forward(context.Background(), typ, title, message)
	}
}

func (c *Center) List(userID uint, unreadOnly bool, limit int) ([]database.Notification, error) {
	return c.repo.List(userID, unreadOnly, limit)
}

func (c *Center) UnreadCount(userID uint) (int64, error) {
	return c.repo.UnreadCount(userID)
}

func (c *Center) MarkRead(userID, id uint) error {
	return c.repo.MarkRead(userID, id)
}

func (c *Center) MarkAllRead(userID uint) error {
	return c.repo.MarkAllRead(userID)
}

func (c *Center) Clear(userID uint) error {
	return c.repo.Clear(userID)
}
