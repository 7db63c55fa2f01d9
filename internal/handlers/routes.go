package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the dashboard's routes. Specific paths are registered
// before the {source} patterns that would otherwise shadow them.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.NotFoundHandler = h.RequestLogger(http.HandlerFunc(h.notFound))

	// Operational
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if h.static != nil {
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServerFS(h.static)))
	}

	// Sign in
	r.HandleFunc("/login", h.LoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/login/2fa", h.Login2FA).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)
	r.HandleFunc("/api/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/login/2fa", h.Login2FA).Methods(http.MethodPost)

	h.apiRoutes(r.PathPrefix("/api").Subrouter())
	h.viewRoutes(r)
	return r
}

func (h *Handler) apiRoutes(api *mux.Router) {
	api.Use(h.AuthMiddleware)

	// Unified alerts
	api.HandleFunc("/summary", h.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/recent", h.GetRecentAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.GetAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}", h.GetAlert).Methods(http.MethodGet)

	// Wazuh
	api.HandleFunc("/wazuh/agent/status", h.GetAgentStatus).Methods(http.MethodGet)
	api.HandleFunc("/wazuh/fim", h.categoryAlerts("FIM", h.Wazuh.FIMAlerts)).Methods(http.MethodGet)
	api.HandleFunc("/wazuh/malware", h.categoryAlerts("malware", h.Wazuh.MalwareAlerts)).Methods(http.MethodGet)
	api.HandleFunc("/wazuh/vulnerabilities", h.categoryAlerts("vulnerability", h.Wazuh.VulnerabilityAlerts)).Methods(http.MethodGet)
	api.HandleFunc("/wazuh/agents", h.RegisterAgent).Methods(http.MethodPost)

	// Keystroke
	api.HandleFunc("/keystroke/models", h.passThrough("models", h.Keystroke.Models)).Methods(http.MethodGet)
	api.HandleFunc("/keystroke/models/active", h.passThrough("active model", h.Keystroke.ActiveModel)).Methods(http.MethodGet)
	api.HandleFunc("/keystroke/models/{modelType}", h.GetModel).Methods(http.MethodGet)
	api.HandleFunc("/keystroke/switch/{modelType}", h.SwitchModel).Methods(http.MethodPut)
	api.HandleFunc("/keystroke/train", h.TrainModel).Methods(http.MethodPost)
	api.HandleFunc("/keystroke/status/{jobId}", h.GetTrainingStatus).Methods(http.MethodGet)
	api.HandleFunc("/keystroke/predict", h.Predict).Methods(http.MethodPost)
	api.HandleFunc("/keystroke/schedule", h.GetSchedules).Methods(http.MethodGet)
	api.HandleFunc("/keystroke/schedule/create", h.CreateSchedule).Methods(http.MethodPost)
	api.HandleFunc("/keystroke/schedule/{id}", h.UpdateSchedule).Methods(http.MethodPut)
	api.HandleFunc("/keystroke/schedule/{id}", h.DeleteSchedule).Methods(http.MethodDelete)
	api.HandleFunc("/keystroke/collection/start/{username}/{modelType}", h.StartCollection).Methods(http.MethodPost)
	api.HandleFunc("/keystroke/collection/stop", h.StopCollection).Methods(http.MethodPost)
	api.HandleFunc("/keystroke/collection/status", h.passThrough("collection status", h.Keystroke.CollectionStatus)).Methods(http.MethodGet)
	api.HandleFunc("/keystroke/collection/files", h.passThrough("collection files", h.Keystroke.CollectionFiles)).Methods(http.MethodGet)
	api.HandleFunc("/keystroke/multi-binary/users", h.passThrough("multi-binary users", h.Keystroke.MultiBinaryUsers)).Methods(http.MethodGet)

	// Settings
	api.HandleFunc("/settings/thresholds", h.GetThresholds).Methods(http.MethodGet)
	api.HandleFunc("/settings/thresholds", h.AdminMiddleware(h.UpdateThresholds)).Methods(http.MethodPut)

	// Users and audit (admin)
	api.HandleFunc("/admin/users", h.AdminMiddleware(h.GetUsers)).Methods(http.MethodGet)
	api.HandleFunc("/admin/users", h.AdminMiddleware(h.CreateUser)).Methods(http.MethodPost)
	api.HandleFunc("/admin/users/{id}", h.AdminMiddleware(h.UpdateUser)).Methods(http.MethodPut)
	api.HandleFunc("/admin/users/{id}", h.AdminMiddleware(h.DeleteUser)).Methods(http.MethodDelete)
	api.HandleFunc("/admin/audit", h.AdminMiddleware(h.GetAuditLogs)).Methods(http.MethodGet)

	// Own account
	api.HandleFunc("/me", h.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/me/password", h.ChangePassword).Methods(http.MethodPost)
	api.HandleFunc("/2fa/generate", h.Generate2FA).Methods(http.MethodPost)
	api.HandleFunc("/2fa/enable", h.Enable2FA).Methods(http.MethodPost)
	api.HandleFunc("/2fa/disable", h.Disable2FA).Methods(http.MethodPost)

	// Per source
	api.HandleFunc("/{source}/summary", h.GetSourceSummary).Methods(http.MethodGet)
	api.HandleFunc("/{source}/recent", h.GetSourceRecentAlerts).Methods(http.MethodGet)
	api.HandleFunc("/{source}/alerts", h.GetSourceAlerts).Methods(http.MethodGet)
	api.HandleFunc("/{source}/alerts/{id}", h.GetAlert).Methods(http.MethodGet)
}

func (h *Handler) viewRoutes(r *mux.Router) {
	view := func(f http.HandlerFunc) http.Handler { return h.AuthMiddleware(f) }

	r.Handle("/", view(h.DashboardPage)).Methods(http.MethodGet)
	r.Handle("/alerts", view(h.AlertsPage)).Methods(http.MethodGet)
	r.Handle("/alerts/{id}", view(h.AlertDetailPage)).Methods(http.MethodGet)

	r.Handle("/keystroke/overview", view(h.KeystrokeOverviewPage)).Methods(http.MethodGet)
	r.Handle("/keystroke/models", view(h.KeystrokeModelsPage)).Methods(http.MethodGet)
	r.Handle("/keystroke/schedule", view(h.SchedulePage)).Methods(http.MethodGet)
	r.Handle("/keystroke/schedule", view(h.CreateScheduleForm)).Methods(http.MethodPost)
	r.Handle("/keystroke/training-status/{jobId}", view(h.TrainingStatusPage)).Methods(http.MethodGet)

	r.Handle("/settings/thresholds", view(h.ThresholdsPage)).Methods(http.MethodGet)
	r.Handle("/settings/thresholds", view(h.AdminMiddleware(h.UpdateThresholdsForm))).Methods(http.MethodPost)
}
