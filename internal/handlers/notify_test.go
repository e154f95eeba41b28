package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/notify"
	"osintdeck/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationHandler(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, "alice", "password123", constants.RoleAnalyst)
	bob := createTestUser(t, "bob", "password123", constants.RoleAnalyst)
	center := notify.NewCenter(database.NewNotificationRepo(), nil, nil)
	handler := NewNotificationHandler(center)

	center.Add(alice.ID, "Case updated", "Case #1 changed", notify.TypeInfo)
	center.Add(alice.ID, "Lookup failed", "shodan returned 500", notify.TypeError)
	center.Add(bob.ID, "Hello", "bob only", notify.TypeInfo)

	w := do(handler.List, http.MethodGet, "/api/v1/notifications", "", as(alice))
	require.Equal(t, http.StatusOK, w.Code)
	list := respList(t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "Lookup failed", list[0].(map[string]interface{})["title"], "newest first")

	w = do(handler.UnreadCount, http.MethodGet, "/api/v1/notifications/unread-count", "", as(alice))
	assert.Equal(t, float64(2), respData(t, w)["count"])

	// bob's notification is not visible to alice
	bobItems, err := center.List(bob.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, bobItems, 1)
	bobID := fmt.Sprint(bobItems[0].ID)
	w = do(handler.MarkRead, http.MethodPost, "/api/v1/notifications/"+bobID+"/read", "", as(alice), withPath("id", bobID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	first := fmt.Sprintf("%.0f", list[0].(map[string]interface{})["id"].(float64))
	w = do(handler.MarkRead, http.MethodPost, "/api/v1/notifications/"+first+"/read", "", as(alice), withPath("id", first))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(handler.List, http.MethodGet, "/api/v1/notifications?unread=true", "", as(alice))
	assert.Len(t, respList(t, w), 1)

	w = do(handler.MarkAllRead, http.MethodPost, "/api/v1/notifications/read-all", "", as(alice))
	require.Equal(t, http.StatusOK, w.Code)
	w = do(handler.UnreadCount, http.MethodGet, "/api/v1/notifications/unread-count", "", as(alice))
	assert.Equal(t, float64(0), respData(t, w)["count"])

	w = do(handler.Clear, http.MethodDelete, "/api/v1/notifications", "", as(alice))
	require.Equal(t, http.StatusOK, w.Code)
	w = do(handler.List, http.MethodGet, "/api/v1/notifications", "", as(alice))
	assert.Empty(t, respList(t, w))

	n, err := center.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNotifyHandler_ConfigMasksSecrets(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	require.NoError(t, database.NewSettingRepo().SetBatch(map[string]string{
		"notify_telegram_token": "123456:ABCDEFGHIJ",
		"notify_min_level":      "error",
		"unrelated_key":         "x",
	}))
	handler := NewNotifyHandler(notify.NewManager())

	w := do(handler.GetConfig, http.MethodGet, "/api/v1/notify/config", "", asAdmin())
	require.Equal(t, http.StatusOK, w.Code)
	cfg := respData(t, w)["config"].(map[string]interface{})
	assert.Equal(t, "********GHIJ", cfg["notify_telegram_token"])
	assert.Equal(t, "error", cfg["notify_min_level"])
	assert.NotContains(t, cfg, "unrelated_key")

	// echoing the masked token back leaves the stored one alone
	w = do(handler.UpdateConfig, http.MethodPut, "/api/v1/notify/config",
		`{"notify_telegram_token":"********GHIJ","notify_min_level":"warning"}`, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	all, err := database.NewSettingRepo().GetAll()
	require.NoError(t, err)
	assert.Equal(t, "123456:ABCDEFGHIJ", all["notify_telegram_token"])
	assert.Equal(t, "warning", all["notify_min_level"])
}

func TestNotifyHandler_UpdateConfigRejectsUnknownKeys(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	handler := NewNotifyHandler(notify.NewManager())
	w := do(handler.UpdateConfig, http.MethodPut, "/api/v1/notify/config", `{"jwt_secret":"x"}`, asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifyHandler_WebhookChannel(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	var hits atomic.Int32
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body.Store(string(raw))
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	manager := notify.NewManager()
	handler := NewNotifyHandler(manager)

	w := do(handler.TestSend, http.MethodPost, "/api/v1/notify/test", "", asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NOTIFY_NO_CHANNELS", errorCode(t, w))

	w = do(handler.UpdateConfig, http.MethodPut, "/api/v1/notify/config", `{"notify_webhook_url":"`+srv.URL+`"}`, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, respData(t, w)["active_channels"], "webhook")

	w = do(handler.TestSend, http.MethodPost, "/api/v1/notify/test", `{"message":"ping from test"}`, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, body.Load(), "ping from test")
}
