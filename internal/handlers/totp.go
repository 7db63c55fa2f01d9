package handlers

import (
	"net/http"
	"strconv"

	"hids-dashboard-go/internal/models"
)

// signedInUser loads the session user's account. Accounts only exist when
// authentication is enabled.
func (h *Handler) signedInUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	current := h.currentUser(r)
	if current == nil || current.ID == 0 {
		h.writeError(w, r, http.StatusUnauthorized, "Authentication required", nil)
		return models.User{}, false
	}
	user, err := h.Users.GetUser(r.Context(), current.ID)
	if err != nil {
		h.fail(w, r, "Failed to load user", err)
		return models.User{}, false
	}
	return user, true
}

// Generate2FA creates a TOTP secret and QR code for the signed-in user.
// Nothing is stored until Enable2FA confirms a code.
func (h *Handler) Generate2FA(w http.ResponseWriter, r *http.Request) {
	user, ok := h.signedInUser(w, r)
	if !ok {
		return
	}

	key, err := models.GenerateTOTPSecret(user.Username)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "Failed to generate secret", err)
		return
	}
	qrCode, err := models.QRCodeDataURI(key)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "Failed to generate QR code", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret":  key.Secret(),
		"qr_code": qrCode,
		"issuer":  models.TOTPIssuer,
		"account": user.Username,
	})
}

type enable2FARequest struct {
	Secret string `json:"secret" validate:"required"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

// Enable2FA verifies the TOTP code and enables 2FA
func (h *Handler) Enable2FA(w http.ResponseWriter, r *http.Request) {
	user, ok := h.signedInUser(w, r)
	if !ok {
		return
	}
	var req enable2FARequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	if !models.VerifyTOTPCode(req.Secret, req.Code) {
		h.writeError(w, r, http.StatusUnauthorized, "Invalid verification code", nil)
		return
	}

	if err := h.Users.UpdateUser2FA(r.Context(), user.ID, req.Secret, true); err != nil {
		h.fail(w, r, "Failed to enable 2FA", err)
		return
	}

	h.audit(r, "enable_2fa", "user", strconv.Itoa(user.ID), nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA enabled successfully"})
}

type disable2FARequest struct {
	UserID int `json:"user_id" validate:"omitempty,gt=0"`
}

// Disable2FA turns 2FA off for the signed-in user, or for user_id when an
// admin resets another account. Admins cannot disable their own 2FA.
func (h *Handler) Disable2FA(w http.ResponseWriter, r *http.Request) {
	user, ok := h.signedInUser(w, r)
	if !ok {
		return
	}
	var req disable2FARequest
	if r.ContentLength != 0 && !h.decodeOrReject(w, r, &req) {
		return
	}

	targetID := user.ID
	switch {
	case req.UserID != 0 && req.UserID != user.ID:
		if !user.IsAdmin() {
			h.writeError(w, r, http.StatusForbidden, "Admin role required", nil)
			return
		}
		targetID = req.UserID
	case user.IsAdmin():
		h.writeError(w, r, http.StatusForbidden, "Admins cannot disable their own 2FA", nil)
		return
	}

	if err := h.Users.Disable2FA(r.Context(), targetID); err != nil {
		h.fail(w, r, "Failed to disable 2FA", err)
		return
	}

	h.audit(r, "disable_2fa", "user", strconv.Itoa(targetID), nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA disabled successfully"})
}
