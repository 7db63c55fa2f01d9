package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hids-dashboard-go/internal/models"
)

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.sendJSON(http.MethodPost, "/api/admin/users", map[string]string{
		"username": "lena",
		"password": "lena-password",
		"role":     models.RoleAnalyst,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "lena", user["username"])
	assert.NotContains(t, user, "PasswordHash")

	rec = env.sendJSON(http.MethodPost, "/api/admin/users", map[string]string{
		"username": "lena",
		"password": "other-password",
		"role":     models.RoleAdmin,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Message, "username already exists")

	rec = env.get("/api/admin/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]models.User](t, rec)["users"], 1)

	assert.Equal(t, []string{"create_user"}, env.audit.actions())
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	for name, req := range map[string]map[string]string{
		"short username": {"username": "lo", "password": "long-enough", "role": models.RoleAnalyst},
		"short password": {"username": "mona", "password": "short", "role": models.RoleAnalyst},
		"unknown role":   {"username": "mona", "password": "long-enough", "role": "root"},
	} {
		rec := env.sendJSON(http.MethodPost, "/api/admin/users", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.True(t, decodeBody[errorBody](t, rec).Error, name)
	}

	users, err := env.users.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestListUsersEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/admin/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "nina", "nina-password", models.RoleAnalyst)
	path := "/api/admin/users/" + strconv.Itoa(user.ID)

	rec := env.sendJSON(http.MethodPut, path, map[string]string{"username": "nina2", "role": models.RoleAdmin})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.users.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "nina2", stored.Username)
	assert.Equal(t, models.RoleAdmin, stored.Role)
	assert.True(t, stored.CheckPassword("nina-password"))

	rec = env.sendJSON(http.MethodPut, path, map[string]string{"username": "nina2", "role": models.RoleAdmin, "password": "reset-password"})
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err = env.users.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.CheckPassword("reset-password"))

	require.Len(t, env.audit.entries, 2)
	assert.Equal(t, "update_user", env.audit.entries[1].Action)
	assert.Contains(t, env.audit.entries[1].Metadata, `"password_reset":true`)

	rec = env.sendJSON(http.MethodPut, "/api/admin/users/999", map[string]string{"username": "ghost", "role": models.RoleAnalyst})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.sendJSON(http.MethodPut, "/api/admin/users/abc", map[string]string{"username": "ghost", "role": models.RoleAnalyst})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid user ID", decodeBody[errorBody](t, rec).Message)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t, withAuth)
	admin := env.addUser(t, "olga", "olga-password", models.RoleAdmin)
	other := env.addUser(t, "pete", "pete-password", models.RoleAnalyst)
	cookies := env.login(t, "olga", "olga-password")

	del := func(id int) *httptest.ResponseRecorder {
		return env.do(httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+strconv.Itoa(id), nil), cookies...)
	}

	rec := del(admin.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You cannot delete your own account", decodeBody[errorBody](t, rec).Message)

	rec = del(other.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := env.users.GetUser(context.Background(), other.ID)
	assert.Error(t, err)

	rec = del(other.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, env.audit.entries, 1)
	entry := env.audit.entries[0]
	assert.Equal(t, "delete_user", entry.Action)
	assert.Equal(t, admin.ID, entry.ActorID)
	assert.Equal(t, strconv.Itoa(other.ID), entry.TargetID)
}

func TestGetAuditLogs(t *testing.T) {
	env := newTestEnv(t)
	for range 3 {
		rec := env.sendJSON(http.MethodPost, "/api/keystroke/collection/stop", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.get("/api/admin/audit?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decodeBody[map[string][]models.AuditLog](t, rec)["logs"]
	require.Len(t, logs, 2)
	assert.Equal(t, "stop_collection", logs[0].Action)
	assert.Equal(t, 0, logs[0].ActorID)
	assert.Equal(t, "{}", logs[0].Metadata)
}
