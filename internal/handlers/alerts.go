package handlers

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"hids-dashboard-go/internal/aggregate"
	"hids-dashboard-go/internal/models"
	"hids-dashboard-go/internal/sources"
	"hids-dashboard-go/web"
)

const alertNotFound = "Alert not found"

// === Unified JSON API ===

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Aggregator.Summary(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetRecentAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Aggregator.RecentAlerts(r.Context(), intParam(r, "limit", defaultRecentLimit))
	if err != nil {
		h.fail(w, r, "Failed to load recent alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(alerts))
}

func alertQuery(r *http.Request) aggregate.Query {
	page, limit, filter := pageParams(r)
	source := r.URL.Query().Get("source")
	if source == "" {
		source = models.SourceAll
	}
	return aggregate.Query{Page: page, Limit: limit, Filter: filter, Source: source}
}

func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	page, err := h.Aggregator.Alerts(r.Context(), alertQuery(r))
	if err != nil {
		h.fail(w, r, "Failed to load alerts", err)
		return
	}
	page.Alerts = nonNil(page.Alerts)
	writeJSON(w, http.StatusOK, page)
}

// GetAlert looks an alert up by id. The source comes from the path on
// per-source routes and from ?source= otherwise; without one every source
// is searched.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	source := vars["source"]
	if source == "" {
		source = r.URL.Query().Get("source")
	}

	lookup := h.Aggregator.AlertByID(r.Context(), vars["id"], source)
	switch {
	case lookup.IsFound():
		writeJSON(w, http.StatusOK, lookup.Alert)
	case lookup.IsFailed():
		h.lookupFailed(w, r, lookup)
	default:
		h.writeError(w, r, http.StatusNotFound, alertNotFound, nil)
	}
}

func (h *Handler) lookupFailed(w http.ResponseWriter, r *http.Request, lookup sources.Lookup) {
	if errors.Is(lookup.Err, aggregate.ErrUnknownSource) {
		h.badRequest(w, r, lookup.Err)
		return
	}
	h.writeError(w, r, http.StatusInternalServerError, "Failed to load alert", lookup.Err)
}

// === Per-source JSON API ===

func (h *Handler) sourceAdapter(w http.ResponseWriter, r *http.Request) (sources.Adapter, bool) {
	adapter, err := h.Aggregator.Adapter(mux.Vars(r)["source"])
	if err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	return adapter, true
}

func (h *Handler) GetSourceSummary(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.sourceAdapter(w, r)
	if !ok {
		return
	}
	summary, err := adapter.Summary(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load "+string(adapter.Source())+" summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetSourceRecentAlerts(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.sourceAdapter(w, r)
	if !ok {
		return
	}
	alerts, err := adapter.RecentAlerts(r.Context(), intParam(r, "limit", defaultRecentLimit))
	if err != nil {
		h.fail(w, r, "Failed to load recent "+string(adapter.Source())+" alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(alerts))
}

func (h *Handler) GetSourceAlerts(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.sourceAdapter(w, r)
	if !ok {
		return
	}
	page, limit, filter := pageParams(r)
	result, err := adapter.Alerts(r.Context(), page, limit, filter)
	if err != nil {
		h.fail(w, r, "Failed to load "+string(adapter.Source())+" alerts", err)
		return
	}
	result.Alerts = nonNil(result.Alerts)
	writeJSON(w, http.StatusOK, result)
}

// === Views ===

// dashboardSummary holds the typed per-source summaries shown on the dashboard.
type dashboardSummary struct {
	Wazuh     *models.WazuhSummary
	Keystroke *models.KeystrokeSummary
	Anomaly   *models.AnomalySummary
}

func typedSummary(summary map[models.Source]any) dashboardSummary {
	var out dashboardSummary
	if s, ok := summary[models.SourceWazuh].(models.WazuhSummary); ok {
		out.Wazuh = &s
	}
	if s, ok := summary[models.SourceKeystroke].(models.KeystrokeSummary); ok {
		out.Keystroke = &s
	}
	if s, ok := summary[models.SourceAnomaly].(models.AnomalySummary); ok {
		out.Anomaly = &s
	}
	return out
}

func (h *Handler) DashboardPage(w http.ResponseWriter, r *http.Request) {
	var (
		summary map[models.Source]any
		recent  []models.Alert
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		summary, err = h.Aggregator.Summary(ctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = h.Aggregator.RecentAlerts(ctx, defaultRecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, "Failed to load dashboard", err)
		return
	}

	typed := typedSummary(summary)
	h.render(w, r, http.StatusOK, web.PageDashboard, map[string]any{
		"Wazuh":     typed.Wazuh,
		"Keystroke": typed.Keystroke,
		"Anomaly":   typed.Anomaly,
		"Recent":    recent,
	})
}

func (h *Handler) AlertsPage(w http.ResponseWriter, r *http.Request) {
	q := alertQuery(r)
	page, err := h.Aggregator.Alerts(r.Context(), q)
	if err != nil {
		h.fail(w, r, "Failed to load alerts", err)
		return
	}

	sourceNames := []string{models.SourceAll}
	for _, s := range models.Sources {
		sourceNames = append(sourceNames, string(s))
	}

	h.render(w, r, http.StatusOK, web.PageAlerts, map[string]any{
		"Alerts":     page.Alerts,
		"TotalCount": page.TotalCount,
		"TotalPages": totalPages(page.TotalCount, q.Limit),
		"Page":       q.Page,
		"Limit":      q.Limit,
		"Filter":     q.Filter,
		"Source":     q.Source,
		"Sources":    sourceNames,
	})
}

func totalPages(total, limit int) int {
	if limit < 1 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

func (h *Handler) AlertDetailPage(w http.ResponseWriter, r *http.Request) {
	lookup := h.Aggregator.AlertByID(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("source"))
	switch {
	case lookup.IsFound():
		h.render(w, r, http.StatusOK, web.PageAlertDetail, map[string]any{"Alert": lookup.Alert})
	case lookup.IsFailed():
		h.lookupFailed(w, r, lookup)
	default:
		h.writeError(w, r, http.StatusNotFound, alertNotFound, nil)
	}
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil(alerts []models.Alert) []models.Alert {
	if alerts == nil {
		return []models.Alert{}
	}
	return alerts
}
