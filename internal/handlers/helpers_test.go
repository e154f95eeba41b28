package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/web"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func createTestUser(t *testing.T, username, password, role string) *database.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &database.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, database.NewUserRepo().Create(user))
	return user
}

type reqOption func(*http.Request) *http.Request

// as puts u into the request context the way AuthMiddleware does.
func as(u *database.User) reqOption {
	return func(r *http.Request) *http.Request {
		return web.SetUserInfo(r, u.ID, u.Username, u.Role)
	}
}

func asAdmin() reqOption {
	return func(r *http.Request) *http.Request {
		return web.SetUserInfo(r, 1, "admin", constants.RoleAdmin)
	}
}

func withPath(name, value string) reqOption {
	return func(r *http.Request) *http.Request {
		r.SetPathValue(name, value)
		return r
	}
}

func do(h http.HandlerFunc, method, target, body string, opts ...reqOption) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		req = opt(req)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeResp(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func respData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := decodeResp(t, w)["data"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return data
}

func respList(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	resp := decodeResp(t, w)
	if page, ok := resp["data"].(map[string]interface{}); ok {
		list, _ := page["list"].([]interface{})
		return list
	}
	list, ok := resp["data"].([]interface{})
	require.True(t, ok, w.Body.String())
	return list
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decodeResp(t, w)["error_code"].(string)
	return code
}
