package handlers

import (
	"context"
	"net/http"

	"hids-dashboard-go/internal/models"
)

func (h *Handler) GetAgentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Wazuh.AgentStatus(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load agent status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type categoryFunc func(ctx context.Context, page, limit int, filter string) (models.AlertPage, error)

// categoryAlerts serves one page of a Wazuh alert category.
func (h *Handler) categoryAlerts(category string, fetch categoryFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, filter := pageParams(r)
		result, err := fetch(r.Context(), page, limit, filter)
		if err != nil {
			h.fail(w, r, "Failed to load "+category+" alerts", err)
			return
		}
		result.Alerts = nonNil(result.Alerts)
		writeJSON(w, http.StatusOK, result)
	}
}

type registerAgentRequest struct {
	Name string `json:"name" validate:"required,max=128"`
	IP   string `json:"ip" validate:"required,ip|eq=any"`
}

func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	agent, err := h.Wazuh.RegisterAgent(r.Context(), req.Name, req.IP)
	if err != nil {
		h.fail(w, r, "Failed to register agent", err)
		return
	}

	h.audit(r, "register_agent", "agent", agent.ID, map[string]any{"name": agent.Name, "ip": agent.IP})
	writeJSON(w, http.StatusCreated, agent)
}
