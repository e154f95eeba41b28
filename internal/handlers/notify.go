package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/logger"
	"osintdeck/internal/notify"
	"osintdeck/internal/secrets"
	"osintdeck/internal/web"
)

const notifyTestTimeout = 15 * time.Second

// NotifyHandler manages external notification channel configuration.
type NotifyHandler struct {
	settingRepo *database.SettingRepo
	audit       auditor
	manager     *notify.Manager
}

func NewNotifyHandler(manager *notify.Manager) *NotifyHandler {
	return &NotifyHandler{
		settingRepo: database.NewSettingRepo(),
		audit:       newAuditor(),
		manager:     manager,
	}
}

// GetConfig returns the notify_* settings with tokens masked.
func (h *NotifyHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	all, err := h.settingRepo.GetAll()
	if err != nil {
		web.FailErr(w, r, web.ErrSettingsQueryFail)
		return
	}
	result := make(map[string]string, len(notify.SettingKeys))
	for _, key := range notify.SettingKeys {
		v := all[key]
		if notify.SecretKeys[key] {
			v = secrets.Mask(v)
		}
		result[key] = v
	}
	web.OK(w, r, map[string]interface{}{
		"config":          result,
		"active_channels": h.manager.ChannelNames(),
	})
}

// UpdateConfig saves known notify_* keys and reloads the channels. Masked values
// echoed back by the client leave the stored secret untouched.
func (h *NotifyHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var items map[string]string
	if err := decodeJSON(r, &items); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}

	filtered := make(map[string]string)
	for k, v := range items {
		if !contains(notify.SettingKeys, k) {
			continue
		}
		if notify.SecretKeys[k] && strings.HasPrefix(v, "****") {
			continue
		}
		filtered[k] = strings.TrimSpace(v)
	}
	if len(filtered) == 0 {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}

	if err := h.settingRepo.SetBatch(filtered); err != nil {
		web.FailErr(w, r, web.ErrSettingsUpdateFail)
		return
	}
	if err := h.manager.Reload(h.settingRepo); err != nil {
		logger.Notify.Warn().Err(err).Msg("通知渠道重载失败")
	}

	h.audit.log(r, constants.ActionSettingsUpdate, "success", "notification config updated")
	logger.Notify.Info().Str("user", web.GetUsername(r)).Strs("channels", h.manager.ChannelNames()).Msg("notification config updated")
	web.OK(w, r, map[string]interface{}{
		"message":         "ok",
		"active_channels": h.manager.ChannelNames(),
	})
}

// TestSend sends a test message to all configured channels.
func (h *NotifyHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			web.FailErr(w, r, web.ErrInvalidBody)
			return
		}
	}
	if req.Message == "" {
		req.Message = "🔔 OSINTDeck 通知测试 / Notification Test"
	}
	if !h.manager.HasChannels() {
		web.FailErr(w, r, web.ErrNotifyNoChannels)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), notifyTestTimeout)
	defer cancel()
	if err := h.manager.Send(ctx, req.Message); err != nil {
		web.FailErr(w, r, web.ErrNotifyTestFailed, err.Error())
		return
	}
	web.OK(w, r, map[string]string{"message": "ok"})
}

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	center *notify.Center
}

func NewNotificationHandler(center *notify.Center) *NotificationHandler {
	return &NotificationHandler{center: center}
}

// List returns notifications newest first; ?unread=true limits to unread ones.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	items, err := h.center.List(web.GetUserID(r), unread, web.QueryInt(r, "limit", 50))
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	if items == nil {
		items = []database.Notification{}
	}
	web.OK(w, r, items)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.center.UnreadCount(web.GetUserID(r))
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	web.OK(w, r, map[string]int64{"count": n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidParam)
		return
	}
	if err := h.center.MarkRead(web.GetUserID(r), id); err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrNotificationNotFound)
			return
		}
		web.FailErr(w, r, web.ErrNotificationFail)
		return
	}
	web.OK(w, r, map[string]string{"message": "ok"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.center.MarkAllRead(web.GetUserID(r)); err != nil {
		web.FailErr(w, r, web.ErrNotificationFail)
		return
	}
	web.OK(w, r, map[string]string{"message": "ok"})
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.center.Clear(web.GetUserID(r)); err != nil {
		web.FailErr(w, r, web.ErrNotificationFail)
		return
	}
	web.OK(w, r, map[string]string{"message": "ok"})
}
