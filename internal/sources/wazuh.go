package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hids-dashboard-go/internal/models"
)

// WazuhConfig locates the Wazuh manager API and its OpenSearch indexer.
type WazuhConfig struct {
	APIURL      string
	APIUser     string
	APIPassword string
	APITimeout  time.Duration

	SearchURL      string
	SearchUser     string
	SearchPassword string
	SearchTimeout  time.Duration
	Index          string
}

// WazuhAdapter reads alerts from OpenSearch and agent data from the Wazuh API.
type WazuhAdapter struct {
	cfg    WazuhConfig
	api    *jsonClient
	search *jsonClient
	logger *zap.SugaredLogger
}

func NewWazuhAdapter(cfg WazuhConfig, logger *zap.SugaredLogger) *WazuhAdapter {
	return &WazuhAdapter{
		cfg: cfg,
		api: &jsonClient{
			source:  models.SourceWazuh,
			baseURL: cfg.APIURL,
			http:    NewHTTPClient(cfg.APITimeout, true),
			logger:  logger,
		},
		search: &jsonClient{
			source:  models.SourceWazuh,
			baseURL: cfg.SearchURL,
			http:    NewHTTPClient(cfg.SearchTimeout, true),
			logger:  logger,
			opts:    []requestOption{withBasicAuth(cfg.SearchUser, cfg.SearchPassword)},
		},
		logger: logger,
	}
}

func (w *WazuhAdapter) Source() models.Source { return models.SourceWazuh }

// token authenticates against the Wazuh API. Tokens are not cached; every
// call that needs one logs in again.
func (w *WazuhAdapter) token(ctx context.Context) (string, error) {
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	err := w.api.do(ctx, "authenticate", http.MethodPost, "/security/user/authenticate", nil, &resp,
		withBasicAuth(w.cfg.APIUser, w.cfg.APIPassword))
	if err != nil {
		return "", errors.Wrap(err, "failed to authenticate with Wazuh API")
	}
	if resp.Data.Token == "" {
		return "", errors.New("failed to authenticate with Wazuh API: no token received")
	}
	return resp.Data.Token, nil
}

// AgentStatus returns the manager's agent summary document as-is.
func (w *WazuhAdapter) AgentStatus(ctx context.Context) (json.RawMessage, error) {
	token, err := w.token(ctx)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := w.api.do(ctx, "agent_status", http.MethodGet, "/agents/summary/status", nil, &resp, withBearer(token)); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// RegisterAgent adds an agent to the manager and fetches its enrollment key.
func (w *WazuhAdapter) RegisterAgent(ctx context.Context, name, ip string) (models.AgentInfo, error) {
	token, err := w.token(ctx)
	if err != nil {
		return models.AgentInfo{}, err
	}

	var created struct {
		Error int `json:"error"`
		Data  struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	body := map[string]string{"name": name, "ip": ip}
	if err := w.api.do(ctx, "register_agent", http.MethodPost, "/agents", body, &created, withBearer(token)); err != nil {
		return models.AgentInfo{}, err
	}
	if created.Error != 0 || created.Data.ID == "" {
		return models.AgentInfo{}, errors.Newf("failed to register agent %q: wazuh error code %d", name, created.Error)
	}

	var keyResp struct {
		Error int `json:"error"`
		Data  struct {
			AffectedItems []struct {
				Key string `json:"key"`
			} `json:"affected_items"`
		} `json:"data"`
	}
	path := "/agents/" + url.PathEscape(created.Data.ID) + "/key"
	if err := w.api.do(ctx, "agent_key", http.MethodGet, path, nil, &keyResp, withBearer(token)); err != nil {
		return models.AgentInfo{}, err
	}
	if keyResp.Error != 0 || len(keyResp.Data.AffectedItems) == 0 {
		return models.AgentInfo{}, errors.Newf("failed to register agent %q: no key returned", name)
	}

	info := models.AgentInfo{ID: created.Data.ID, Name: name, IP: ip, Key: keyResp.Data.AffectedItems[0].Key}
	w.logger.Infow("Registered Wazuh agent", "id", info.ID, "name", name, "ip", ip)
	return info, nil
}

// Query clauses for the alert categories.
var (
	fimClause = map[string]any{"term": map[string]any{"rule.groups": "syscheck"}}

	malwareClause = map[string]any{"bool": map[string]any{
		"should": []any{
			map[string]any{"term": map[string]any{"rule.groups": "rootcheck"}},
			map[string]any{"term": map[string]any{"rule.groups": "virustotal"}},
		},
		"minimum_should_match": 1,
	}}

	vulnerabilityClause = map[string]any{"term": map[string]any{"rule.groups": "vulnerability-detector"}}

	matchAll = map[string]any{"match_all": map[string]any{}}

	sortNewestFirst = []any{map[string]any{"@timestamp": map[string]any{"order": "desc"}}}
)

func filterClause(filter string) map[string]any {
	return map[string]any{"query_string": map[string]any{
		"query":         "*" + filter + "*",
		"default_field": "*",
	}}
}

// buildQuery combines an optional category clause with an optional free-text
// filter.
func buildQuery(category map[string]any, filter string) map[string]any {
	var must []any
	if category != nil {
		must = append(must, category)
	}
	if filter != "" {
		if category == nil {
			return filterClause(filter)
		}
		must = append(must, filterClause(filter))
	}
	if len(must) == 0 {
		return matchAll
	}
	return map[string]any{"bool": map[string]any{"must": must}}
}

func (w *WazuhAdapter) indexPath(endpoint string) string {
	return "/" + w.cfg.Index + "/" + endpoint
}

func (w *WazuhAdapter) count(ctx context.Context, operation string, query map[string]any) (int, error) {
	var body any
	if query != nil {
		body = map[string]any{"query": query}
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := w.search.do(ctx, operation, http.MethodPost, w.indexPath("_count"), body, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type searchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

func (w *WazuhAdapter) searchAlerts(ctx context.Context, operation string, body map[string]any) ([]models.Alert, error) {
	var resp struct {
		Hits struct {
			Hits []searchHit `json:"hits"`
		} `json:"hits"`
	}
	if err := w.search.do(ctx, operation, http.MethodPost, w.indexPath("_search"), body, &resp); err != nil {
		return nil, err
	}

	alerts := make([]models.Alert, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		raw, err := models.DecodeWazuhAlert(hit.ID, hit.Source)
		if err != nil {
			w.logger.Warnw("Skipping malformed Wazuh alert", "operation", operation, "id", hit.ID, "error", err)
			continue
		}
		alerts = append(alerts, models.FromWazuh(raw))
	}
	return alerts, nil
}

// page counts matches first and then fetches one page of them.
func (w *WazuhAdapter) page(ctx context.Context, operation string, category map[string]any, page, limit int, filter string) (models.AlertPage, error) {
	query := buildQuery(category, filter)

	total, err := w.count(ctx, operation+"_count", query)
	if err != nil {
		return models.AlertPage{}, err
	}

	alerts, err := w.searchAlerts(ctx, operation, map[string]any{
		"query": query,
		"sort":  sortNewestFirst,
		"from":  offset(page, limit),
		"size":  limit,
	})
	if err != nil {
		return models.AlertPage{}, err
	}
	return models.AlertPage{Alerts: alerts, TotalCount: total}, nil
}

// Summary returns agent status and per-category alert counts.
func (w *WazuhAdapter) Summary(ctx context.Context) (any, error) {
	status, err := w.AgentStatus(ctx)
	if err != nil {
		return nil, err
	}

	summary := models.WazuhSummary{AgentStatus: status}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.FIMAlerts, err = w.count(gctx, "count_fim", fimClause)
		return err
	})
	g.Go(func() (err error) {
		summary.MalwareAlerts, err = w.count(gctx, "count_malware", malwareClause)
		return err
	})
	g.Go(func() (err error) {
		summary.VulnerabilityAlerts, err = w.count(gctx, "count_vulnerability", vulnerabilityClause)
		return err
	})
	g.Go(func() (err error) {
		summary.TotalAlerts, err = w.count(gctx, "count_total", nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (w *WazuhAdapter) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	return w.searchAlerts(ctx, "recent_alerts", map[string]any{
		"query": matchAll,
		"sort":  sortNewestFirst,
		"size":  limit,
	})
}

func (w *WazuhAdapter) Alerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error) {
	return w.page(ctx, "alerts", nil, page, limit, filter)
}

func (w *WazuhAdapter) FIMAlerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error) {
	return w.page(ctx, "fim_alerts", fimClause, page, limit, filter)
}

func (w *WazuhAdapter) MalwareAlerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error) {
	return w.page(ctx, "malware_alerts", malwareClause, page, limit, filter)
}

func (w *WazuhAdapter) VulnerabilityAlerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error) {
	return w.page(ctx, "vulnerability_alerts", vulnerabilityClause, page, limit, filter)
}

func (w *WazuhAdapter) AlertByID(ctx context.Context, id string) Lookup {
	var resp struct {
		ID     string          `json:"_id"`
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	err := w.search.do(ctx, "alert_by_id", http.MethodGet, w.indexPath("_doc/"+url.PathEscape(id)), nil, &resp)
	if IsNotFound(err) {
		return NotFound()
	}
	if err != nil {
		return Failed(err)
	}
	if !resp.Found {
		return NotFound()
	}

	docID := resp.ID
	if docID == "" {
		docID = id
	}
	raw, err := models.DecodeWazuhAlert(docID, resp.Source)
	if err != nil {
		return Failed(errors.Wrapf(err, "decode alert %s", id))
	}
	return Found(models.FromWazuh(raw))
}
