package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"hids-dashboard-go/internal/models"
	"hids-dashboard-go/web"
)

func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	t, err := h.Settings.GetThresholds(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load thresholds", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateThresholds applies a full or partial thresholds document over the
// saved values.
func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	t, err := h.Settings.GetThresholds(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load thresholds", err)
		return
	}
	if !h.decodeOrReject(w, r, &t) {
		return
	}
	if !h.saveThresholds(w, r, t) {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) saveThresholds(w http.ResponseWriter, r *http.Request, t models.Thresholds) bool {
	if err := h.Settings.SaveThresholds(r.Context(), t); err != nil {
		h.fail(w, r, "Failed to save thresholds", err)
		return false
	}
	h.audit(r, "update_thresholds", "settings", "thresholds", map[string]any{
		"wazuh_fim":            t.Wazuh.FIM,
		"wazuh_malware":        t.Wazuh.Malware,
		"wazuh_vulnerability":  t.Wazuh.Vulnerability,
		"keystroke_confidence": t.Keystroke.Confidence,
	})
	return true
}

func (h *Handler) ThresholdsPage(w http.ResponseWriter, r *http.Request) {
	t, err := h.Settings.GetThresholds(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load thresholds", err)
		return
	}
	h.renderThresholds(w, r, http.StatusOK, t, "")
}

func (h *Handler) renderThresholds(w http.ResponseWriter, r *http.Request, status int, t models.Thresholds, formError string) {
	user := h.currentUser(r)
	h.render(w, r, status, web.PageSettings, map[string]any{
		"Thresholds": t,
		"Saved":      r.URL.Query().Get("saved") == "1",
		"Error":      formError,
		"CanEdit":    user != nil && user.IsAdmin(),
	})
}

// thresholdsFromForm reads the settings form. Empty fields keep their
// default value.
func thresholdsFromForm(r *http.Request) (models.Thresholds, error) {
	t := models.DefaultThresholds()
	fields := []struct {
		name string
		dst  *int
	}{
		{"wazuh_fim", &t.Wazuh.FIM},
		{"wazuh_malware", &t.Wazuh.Malware},
		{"wazuh_vulnerability", &t.Wazuh.Vulnerability},
		{"keystroke_confidence", &t.Keystroke.Confidence},
	}
	for _, f := range fields {
		v := strings.TrimSpace(r.PostFormValue(f.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return t, errors.Mark(errors.Newf("%s %q is not a number", f.name, v), errBadRequest)
		}
		*f.dst = n
	}
	return t, nil
}

func (h *Handler) UpdateThresholdsForm(w http.ResponseWriter, r *http.Request) {
	t, err := thresholdsFromForm(r)
	if err == nil {
		err = h.validate.Struct(t)
	}
	if err != nil {
		h.logger.Warnw("Rejected thresholds form", "error", err, "request_id", requestID(r.Context()))
		h.renderThresholds(w, r, http.StatusBadRequest, t, clientMessage(err))
		return
	}
	if !h.saveThresholds(w, r, t) {
		return
	}
	http.Redirect(w, r, "/settings/thresholds?saved=1", http.StatusSeeOther)
}
