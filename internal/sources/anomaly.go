package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hids-dashboard-go/internal/models"
)

const anomalyRecordCount = 50

var anomalyTypes = []string{"CPU", "Memory", "Network"}

// AnomalyAdapter serves a fixed synthetic data set until a real anomaly
// detector is connected. Records are derived from their index and the
// current hour, so repeated calls within an hour return identical data.
type AnomalyAdapter struct {
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewAnomalyAdapter(logger *zap.SugaredLogger) *AnomalyAdapter {
	return &AnomalyAdapter{now: time.Now, logger: logger}
}

// WithClock replaces the adapter clock; used by tests.
func (a *AnomalyAdapter) WithClock(now func() time.Time) *AnomalyAdapter {
	a.now = now
	return a
}

func (a *AnomalyAdapter) Source() models.Source { return models.SourceAnomaly }

func (a *AnomalyAdapter) record(anchor time.Time, n int) models.AnomalyRecord {
	kind := anomalyTypes[n%len(anomalyTypes)]
	return models.AnomalyRecord{
		ID:        "anomaly-" + strconv.Itoa(n),
		Timestamp: anchor.Add(-time.Duration(n) * time.Hour).Format(time.RFC3339),
		Score:     float64((n*37 + 11) % 100),
		Details: models.AnomalyDetails{
			Description:      fmt.Sprintf("Unusual %s activity detected", kind),
			AffectedResource: "Resource-" + strconv.Itoa(n%10),
			AnomalyType:      kind,
		},
	}
}

// records returns the data set newest first.
func (a *AnomalyAdapter) records() []models.AnomalyRecord {
	anchor := a.now().UTC().Truncate(time.Hour)
	out := make([]models.AnomalyRecord, anomalyRecordCount)
	for n := range out {
		out[n] = a.record(anchor, n)
	}
	return out
}

func matchesFilter(r models.AnomalyRecord, filter string) bool {
	if filter == "" {
		return true
	}
	data, err := json.Marshal(r)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), strings.ToLower(filter))
}

func (a *AnomalyAdapter) Summary(_ context.Context) (any, error) {
	summary := models.AnomalySummary{ByType: map[string]int{}}
	for _, r := range a.records() {
		summary.TotalAnomalies++
		if r.Score >= 90 {
			summary.HighSeverity++
		}
		summary.ByType[r.Details.AnomalyType]++
	}
	return summary, nil
}

func (a *AnomalyAdapter) RecentAlerts(_ context.Context, limit int) ([]models.Alert, error) {
	records := a.records()
	if limit < len(records) {
		records = records[:max(limit, 0)]
	}
	alerts := make([]models.Alert, 0, len(records))
	for _, r := range records {
		alerts = append(alerts, models.FromAnomaly(r))
	}
	return alerts, nil
}

func (a *AnomalyAdapter) Alerts(_ context.Context, page, limit int, filter string) (models.AlertPage, error) {
	var matched []models.AnomalyRecord
	for _, r := range a.records() {
		if matchesFilter(r, filter) {
			matched = append(matched, r)
		}
	}

	start := min(max(offset(page, limit), 0), len(matched))
	end := min(start+max(limit, 0), len(matched))

	alerts := make([]models.Alert, 0, end-start)
	for _, r := range matched[start:end] {
		alerts = append(alerts, models.FromAnomaly(r))
	}
	a.logger.Debugw("Served placeholder anomaly page", "page", page, "limit", limit, "filter", filter, "matched", len(matched))
	return models.AlertPage{Alerts: alerts, TotalCount: len(matched)}, nil
}

func (a *AnomalyAdapter) AlertByID(_ context.Context, id string) Lookup {
	suffix, ok := strings.CutPrefix(id, "anomaly-")
	if !ok {
		return NotFound()
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || strconv.Itoa(n) != suffix || n < 0 || n >= anomalyRecordCount {
		return NotFound()
	}
	anchor := a.now().UTC().Truncate(time.Hour)
	return Found(models.FromAnomaly(a.record(anchor, n)))
}
