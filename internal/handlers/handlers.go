package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"hids-dashboard-go/internal/aggregate"
	"hids-dashboard-go/internal/models"
	"hids-dashboard-go/internal/sources"
	"hids-dashboard-go/internal/store"
	"hids-dashboard-go/web"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	defaultRecentLimit = 10
	defaultAuditLimit  = 50

	maxBodyBytes = 1 << 20
)

// Aggregator is the alert read path shared by the JSON API and the views.
type Aggregator interface {
	Adapter(name string) (sources.Adapter, error)
	Summary(ctx context.Context) (map[models.Source]any, error)
	RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error)
	Alerts(ctx context.Context, q aggregate.Query) (models.AlertPage, error)
	AlertByID(ctx context.Context, id, source string) sources.Lookup
}

// WazuhService covers the Wazuh operations beyond the common adapter ones.
type WazuhService interface {
	AgentStatus(ctx context.Context) (json.RawMessage, error)
	RegisterAgent(ctx context.Context, name, ip string) (models.AgentInfo, error)
	FIMAlerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error)
	MalwareAlerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error)
	VulnerabilityAlerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error)
}

// KeystrokeService is the ML service surface used by the keystroke pages.
type KeystrokeService interface {
	Summary(ctx context.Context) (any, error)
	RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error)

	Models(ctx context.Context) (json.RawMessage, error)
	Model(ctx context.Context, modelType string) (json.RawMessage, error)
	ActiveModel(ctx context.Context) (json.RawMessage, error)
	SwitchModel(ctx context.Context, modelType string) (json.RawMessage, error)
	MultiBinaryUsers(ctx context.Context) (json.RawMessage, error)

	Train(ctx context.Context, req models.TrainRequest) (models.TrainResponse, error)
	TrainingStatus(ctx context.Context, jobID string) (models.TrainingJob, error)
	Predict(ctx context.Context, req models.PredictRequest) (json.RawMessage, error)

	Schedules(ctx context.Context) ([]models.Schedule, error)
	CreateSchedule(ctx context.Context, s models.Schedule) (models.Schedule, error)
	UpdateSchedule(ctx context.Context, id string, u models.ScheduleUpdate) (models.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error

	StartCollection(ctx context.Context, username, modelType string) (json.RawMessage, error)
	StopCollection(ctx context.Context) (json.RawMessage, error)
	CollectionStatus(ctx context.Context) (json.RawMessage, error)
	CollectionFiles(ctx context.Context) (json.RawMessage, error)
}

// Deps wires a Handler.
type Deps struct {
	Aggregator Aggregator
	Wazuh      WazuhService
	Keystroke  KeystrokeService
	Users      store.UserStore
	Audit      store.AuditStore
	Settings   store.SettingsStore
	Pages      map[string]*template.Template
	Static     fs.FS
	Logger     *zap.SugaredLogger

	SessionSecret string
	AuthEnabled   bool
	Production    bool
}

type Handler struct {
	Aggregator Aggregator
	Wazuh      WazuhService
	Keystroke  KeystrokeService
	Users      store.UserStore
	Audit      store.AuditStore
	Settings   store.SettingsStore
	Pages      map[string]*template.Template

	static      fs.FS
	logger      *zap.SugaredLogger
	sessions    *sessions.CookieStore
	validate    *validator.Validate
	authEnabled bool
	production  bool
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		Aggregator:  d.Aggregator,
		Wazuh:       d.Wazuh,
		Keystroke:   d.Keystroke,
		Users:       d.Users,
		Audit:       d.Audit,
		Settings:    d.Settings,
		Pages:       d.Pages,
		static:      d.Static,
		logger:      d.Logger,
		sessions:    newSessionStore(d.SessionSecret, d.Production),
		validate:    newValidator(),
		authEnabled: d.AuthEnabled,
		production:  d.Production,
	}
}

// newValidator reports fields by their JSON names and adds the "role" tag.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.ValidRole(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// === Responses ===

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// writeError answers with the JSON error envelope on API routes and the
// error page on views. Stack traces are only exposed outside production.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	fields := []any{
		"request_id", requestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
	}
	if err != nil {
		fields = append(fields, "error", err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Errorw(message, fields...)
	} else {
		h.logger.Warnw(message, fields...)
	}

	var stack string
	if err != nil && !h.production {
		stack = fmt.Sprintf("%+v", err)
	}

	if isAPIRequest(r) {
		body := map[string]any{"error": true, "message": message}
		if stack != "" {
			body["stack"] = stack
		}
		writeJSON(w, status, body)
		return
	}

	h.render(w, r, status, web.PageError, map[string]any{
		"Status":  status,
		"Message": message,
		"Stack":   stack,
	})
}

// statusFor maps the errors handlers pass through to an HTTP status.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, aggregate.ErrUnknownSource), errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), sources.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail reports err with the status statusFor picks. Client errors carry the
// error text; server errors carry message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		message = clientMessage(err)
	}
	h.writeError(w, r, status, message, err)
}

func clientMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		msgs := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			msg := fe.Field() + " failed " + fe.Tag()
			if fe.Param() != "" {
				msg += "=" + fe.Param()
			}
			msgs = append(msgs, msg)
		}
		return "Invalid request: " + strings.Join(msgs, ", ")
	}
	if errors.Is(err, errBadRequest) {
		return "Invalid request: " + errors.UnwrapAll(err).Error()
	}
	if errors.Is(err, store.ErrNotFound) || sources.IsNotFound(err) {
		return "Not found"
	}
	return err.Error()
}

// render executes page through the shared layout. The output is buffered
// so a template failure never leaves a half-written page.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	tmpl, ok := h.Pages[page]
	if !ok {
		h.logger.Errorw("Unknown page", "page", page)
		http.Error(w, "Page not found", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["User"] = h.currentUser(r)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Errorw("Template error", "page", page, "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// === Requests ===

// intParam parses a positive integer query parameter, falling back to def
// when it is missing, malformed or below 1.
func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func pageParams(r *http.Request) (page, limit int, filter string) {
	return intParam(r, "page", defaultPage), intParam(r, "limit", defaultLimit), r.URL.Query().Get("filter")
}

// decodeJSON reads a JSON body into v and validates it.
func (h *Handler) decodeJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid JSON body"), errBadRequest)
	}
	return h.validate.Struct(v)
}

// errBadRequest marks request errors that are not validator failures.
var errBadRequest = errors.New("bad request")

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, http.StatusBadRequest, clientMessage(err), err)
}

// decodeOrReject decodes and validates the body, answering 400 on failure.
func (h *Handler) decodeOrReject(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := h.decodeJSON(r, v); err != nil {
		h.badRequest(w, r, err)
		return false
	}
	return true
}

// audit records a change. Failures are logged and never fail the request.
func (h *Handler) audit(r *http.Request, action, targetType, targetID string, meta map[string]any) {
	actorID := 0
	if user := h.currentUser(r); user != nil {
		actorID = user.ID
	}
	metadata := "{}"
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			metadata = string(b)
		}
	}
	if err := h.Audit.InsertAudit(r.Context(), actorID, action, targetType, targetID, metadata); err != nil {
		h.logger.Warnw("Failed to write audit log", "action", action, "target_type", targetType, "target_id", targetID, "error", err)
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "Page not found", nil)
}
