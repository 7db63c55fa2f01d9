package handlers

import (
	"net/http"
	"strconv"
)

// GetProfile returns the signed-in user's account.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.signedInUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72,nefield=OldPassword"`
}

// ChangePassword allows users to change their password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.signedInUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	if !user.CheckPassword(req.OldPassword) {
		h.writeError(w, r, http.StatusUnauthorized, "Incorrect old password", nil)
		return
	}

	if err := h.Users.UpdateUserPassword(r.Context(), user.ID, req.NewPassword); err != nil {
		h.fail(w, r, "Failed to update password", err)
		return
	}

	h.audit(r, "change_password", "user", strconv.Itoa(user.ID), nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
