package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/sessions"

	"hids-dashboard-go/internal/models"
	"hids-dashboard-go/internal/store"
	"hids-dashboard-go/web"
)

const (
	sessionName = "hids-session"

	sessionUserID  = "user_id"
	sessionUser    = "username"
	sessionRole    = "role"
	sessionPending = "pending_user_id"
)

const invalidCredentials = "Invalid username or password"

func newSessionStore(secret string, production bool) *sessions.CookieStore {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   8 * 60 * 60,
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
	}
	return cs
}

// currentUserInfo is the identity kept in the session cookie.
type currentUserInfo struct {
	ID       int
	Username string
	Role     string
}

func (u *currentUserInfo) IsAdmin() bool {
	return u.Role == models.RoleAdmin
}

// anonymous stands in for a signed-in user when authentication is disabled.
var anonymous = currentUserInfo{Username: "anonymous", Role: models.RoleAdmin}

func (h *Handler) session(r *http.Request) *sessions.Session {
	// A cookie that fails to decode yields a fresh session.
	session, _ := h.sessions.Get(r, sessionName)
	return session
}

// currentUser returns the signed-in user, or nil.
func (h *Handler) currentUser(r *http.Request) *currentUserInfo {
	if !h.authEnabled {
		u := anonymous
		return &u
	}
	session := h.session(r)
	userID, ok := session.Values[sessionUserID].(int)
	if !ok || userID == 0 {
		return nil
	}
	username, _ := session.Values[sessionUser].(string)
	role, _ := session.Values[sessionRole].(string)
	return &currentUserInfo{ID: userID, Username: username, Role: role}
}

// AuthMiddleware sends anonymous browsers to the login page and rejects
// anonymous API calls with 401.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.currentUser(r) == nil {
			if isAPIRequest(r) {
				h.writeError(w, r, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminMiddleware checks if user is admin
func (h *Handler) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := h.currentUser(r)
		if user == nil || !user.IsAdmin() {
			h.writeError(w, r, http.StatusForbidden, "Admin role required", nil)
			return
		}
		next(w, r)
	}
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Next     string `json:"next"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
	Next string `json:"next"`
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if h.currentUser(r) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, web.PageLogin, map[string]any{"Next": next})
}

// Login checks credentials posted from the login form or as JSON. Users
// with 2FA enabled are parked in the session until Login2FA verifies them.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	jsonMode := isAPIRequest(r)

	var req loginRequest
	if jsonMode {
		if !h.decodeOrReject(w, r, &req) {
			return
		}
	} else {
		req = loginRequest{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
			Next:     r.PostFormValue("next"),
		}
	}
	next := safeNext(req.Next)

	user, err := h.Users.GetUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.writeError(w, r, http.StatusInternalServerError, "Failed to sign in", err)
		return
	}
	if err != nil || !user.CheckPassword(req.Password) {
		h.logger.Warnw("Failed login", "username", req.Username, "request_id", requestID(r.Context()))
		if jsonMode {
			h.writeError(w, r, http.StatusUnauthorized, invalidCredentials, nil)
			return
		}
		h.render(w, r, http.StatusUnauthorized, web.PageLogin, map[string]any{
			"Next":  next,
			"Error": invalidCredentials,
		})
		return
	}

	session := h.session(r)
	if user.TOTPEnabled {
		session.Values[sessionPending] = user.ID
		if err := session.Save(r, w); err != nil {
			h.writeError(w, r, http.StatusInternalServerError, "Failed to save session", err)
			return
		}
		if jsonMode {
			writeJSON(w, http.StatusOK, map[string]any{"requires_2fa": true})
			return
		}
		h.render(w, r, http.StatusOK, web.PageLogin2FA, map[string]any{"Next": next})
		return
	}

	h.startSession(w, r, session, user, next, jsonMode)
}

// Login2FA completes a login parked by Login.
func (h *Handler) Login2FA(w http.ResponseWriter, r *http.Request) {
	jsonMode := isAPIRequest(r)

	var req codeRequest
	if jsonMode {
		if !h.decodeOrReject(w, r, &req) {
			return
		}
	} else {
		req = codeRequest{Code: r.PostFormValue("code"), Next: r.PostFormValue("next")}
	}
	next := safeNext(req.Next)

	session := h.session(r)
	pendingID, ok := session.Values[sessionPending].(int)
	if !ok || pendingID == 0 {
		if jsonMode {
			h.writeError(w, r, http.StatusUnauthorized, "Sign in first", nil)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.Users.GetUser(r.Context(), pendingID)
	if err != nil {
		h.fail(w, r, "Failed to sign in", err)
		return
	}

	if !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
		h.logger.Warnw("Failed 2FA verification", "username", user.Username, "request_id", requestID(r.Context()))
		if jsonMode {
			h.writeError(w, r, http.StatusUnauthorized, "Invalid verification code", nil)
			return
		}
		h.render(w, r, http.StatusUnauthorized, web.PageLogin2FA, map[string]any{
			"Next":  next,
			"Error": "Invalid verification code",
		})
		return
	}

	delete(session.Values, sessionPending)
	h.startSession(w, r, session, user, next, jsonMode)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, session *sessions.Session, user models.User, next string, jsonMode bool) {
	session.Values[sessionUserID] = user.ID
	session.Values[sessionUser] = user.Username
	session.Values[sessionRole] = user.Role
	if err := session.Save(r, w); err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "Failed to save session", err)
		return
	}
	h.logger.Infow("User signed in", "username", user.Username, "role", user.Role)

	if jsonMode {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user, "redirect": next})
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout handles logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	_ = session.Save(r, w)

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// InitAdmin creates the default admin account when no users exist yet.
func (h *Handler) InitAdmin(ctx context.Context, password string) error {
	users, err := h.Users.GetUsers(ctx)
	if err != nil {
		return errors.Wrap(err, "list users")
	}
	if len(users) > 0 {
		return nil
	}

	user, err := h.Users.CreateUser(ctx, "admin", password, models.RoleAdmin)
	if err != nil {
		return errors.Wrap(err, "create default admin")
	}
	h.logger.Infow("Created default admin user", "username", user.Username)
	return nil
}
