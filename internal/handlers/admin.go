package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"hids-dashboard-go/internal/models"
)

// === User Management ===

func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.GetUsers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get users", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,role"`
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	user, err := h.Users.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.fail(w, r, "Failed to create user", err)
		return
	}

	h.audit(r, "create_user", "user", strconv.Itoa(user.ID), map[string]any{"username": req.Username, "role": req.Role})
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

type updateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255"`
	Role     string `json:"role" validate:"required,role"`
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		h.writeError(w, r, http.StatusBadRequest, "Invalid user ID", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	if err := h.Users.UpdateUser(r.Context(), id, req.Username, req.Role); err != nil {
		h.fail(w, r, "Failed to update user", err)
		return
	}
	meta := map[string]any{"username": req.Username, "role": req.Role}

	// Admin reset, no old password check
	if req.Password != "" {
		if err := h.Users.UpdateUserPassword(r.Context(), id, req.Password); err != nil {
			h.fail(w, r, "Failed to reset password", err)
			return
		}
		meta["password_reset"] = true
	}

	h.audit(r, "update_user", "user", strconv.Itoa(id), meta)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if current := h.currentUser(r); current != nil && current.ID == id {
		h.writeError(w, r, http.StatusBadRequest, "You cannot delete your own account", nil)
		return
	}

	if err := h.Users.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete user", err)
		return
	}

	h.audit(r, "delete_user", "user", strconv.Itoa(id), nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Audit listing
func (h *Handler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Audit.ListAudit(r.Context(), intParam(r, "limit", defaultAuditLimit))
	if err != nil {
		h.fail(w, r, "Failed to load audit logs", err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
