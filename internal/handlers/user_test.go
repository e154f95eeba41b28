package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreateAndList(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	admin := createTestUser(t, "admin", "password123", constants.RoleAdmin)
	handler := NewUserHandler()

	w := do(handler.Create, http.MethodPost, "/api/v1/users", `{"username":"viewer","password":"password123"}`, as(admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, constants.RoleReadonly, respData(t, w)["role"])

	w = do(handler.Create, http.MethodPost, "/api/v1/users", `{"username":"viewer","password":"password123"}`, as(admin))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(handler.Create, http.MethodPost, "/api/v1/users", `{"username":"x","password":"password123","role":"root"}`, as(admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(handler.List, http.MethodGet, "/api/v1/users", "", as(admin))
	assert.Len(t, respList(t, w), 2)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestUserDelete(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	admin := createTestUser(t, "admin", "password123", constants.RoleAdmin)
	other := createTestUser(t, "other", "password123", constants.RoleAnalyst)
	handler := NewUserHandler()

	self := fmt.Sprint(admin.ID)
	w := do(handler.Delete, http.MethodDelete, "/api/v1/users/"+self, "", as(admin), withPath("id", self))
	assert.Equal(t, "USER_SELF_DELETE", errorCode(t, w))

	id := fmt.Sprint(other.ID)
	w = do(handler.Delete, http.MethodDelete, "/api/v1/users/"+id, "", as(admin), withPath("id", id))
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := database.NewUserRepo().FindByID(other.ID)
	assert.Error(t, err)
}

func TestUserSetActive(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	admin := createTestUser(t, "admin", "password123", constants.RoleAdmin)
	other := createTestUser(t, "other", "password123", constants.RoleAnalyst)
	handler := NewUserHandler()

	id := fmt.Sprint(other.ID)
	w := do(handler.SetActive, http.MethodPut, "/api/v1/users/"+id+"/active", `{"active":false}`, as(admin), withPath("id", id))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, respData(t, w)["is_active"])

	u, err := database.NewUserRepo().FindByID(other.ID)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	w = do(handler.SetActive, http.MethodPut, "/api/v1/users/"+id+"/active", `{}`, as(admin), withPath("id", id))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	self := fmt.Sprint(admin.ID)
	w = do(handler.SetActive, http.MethodPut, "/api/v1/users/"+self+"/active", `{"active":false}`, as(admin), withPath("id", self))
	assert.Equal(t, "USER_SELF_ACTIVE", errorCode(t, w))
}
