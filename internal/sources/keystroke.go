package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"hids-dashboard-go/internal/models"
)

// KeystrokeAdapter talks to the keystroke ML service. Besides alerts it
// proxies model management, training, prediction, schedules and collection.
type KeystrokeAdapter struct {
	client *jsonClient
	zone   *time.Location
	logger *zap.SugaredLogger
}

// NewKeystrokeAdapter builds the adapter. zone is the ML host's time zone,
// applied to the offset-less timestamps it writes; nil means UTC.
func NewKeystrokeAdapter(baseURL string, timeout time.Duration, zone *time.Location, logger *zap.SugaredLogger) *KeystrokeAdapter {
	return &KeystrokeAdapter{
		client: &jsonClient{
			source:  models.SourceKeystroke,
			baseURL: baseURL,
			http:    NewHTTPClient(timeout, false),
			logger:  logger,
		},
		zone:   zone,
		logger: logger,
	}
}

func (k *KeystrokeAdapter) Source() models.Source { return models.SourceKeystroke }

func (k *KeystrokeAdapter) get(ctx context.Context, operation, path string, out any) error {
	return k.client.do(ctx, operation, http.MethodGet, "/api/keystroke"+path, nil, out)
}

func (k *KeystrokeAdapter) send(ctx context.Context, operation, method, path string, body, out any) error {
	return k.client.do(ctx, operation, method, "/api/keystroke"+path, body, out)
}

func (k *KeystrokeAdapter) getRaw(ctx context.Context, operation, path string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := k.get(ctx, operation, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (k *KeystrokeAdapter) sendRaw(ctx context.Context, operation, method, path string, body any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := k.send(ctx, operation, method, path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (k *KeystrokeAdapter) Summary(ctx context.Context) (any, error) {
	var summary models.KeystrokeSummary
	if err := k.get(ctx, "summary", "/summary", &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// alertList accepts both the paged envelope and a bare array of alerts.
type alertList struct {
	Alerts     []json.RawMessage
	TotalCount int
}

func (l *alertList) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &l.Alerts); err != nil {
			return err
		}
		l.TotalCount = len(l.Alerts)
		return nil
	}

	var envelope struct {
		Alerts     []json.RawMessage `json:"alerts"`
		TotalCount int               `json:"totalCount"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	l.Alerts, l.TotalCount = envelope.Alerts, envelope.TotalCount
	return nil
}

func (k *KeystrokeAdapter) toAlert(raw models.KeystrokeAlert) models.Alert {
	a := models.FromKeystroke(raw)
	a.Timestamp = models.LocalizeTimestamp(a.Timestamp, k.zone)
	return a
}

func (k *KeystrokeAdapter) normalize(l alertList) []models.Alert {
	alerts := make([]models.Alert, 0, len(l.Alerts))
	for _, data := range l.Alerts {
		raw, err := models.DecodeKeystrokeAlert(data)
		if err != nil {
			k.logger.Warnw("Skipping malformed keystroke alert", "error", err)
			continue
		}
		alerts = append(alerts, k.toAlert(raw))
	}
	return alerts
}

func (k *KeystrokeAdapter) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	var list alertList
	if err := k.get(ctx, "recent_alerts", "/alerts?limit="+strconv.Itoa(limit), &list); err != nil {
		return nil, err
	}
	return k.normalize(list), nil
}

func (k *KeystrokeAdapter) Alerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if filter != "" {
		q.Set("filter", filter)
	}

	var list alertList
	if err := k.get(ctx, "alerts", "/alerts?"+q.Encode(), &list); err != nil {
		return models.AlertPage{}, err
	}
	return models.AlertPage{Alerts: k.normalize(list), TotalCount: list.TotalCount}, nil
}

func (k *KeystrokeAdapter) AlertByID(ctx context.Context, id string) Lookup {
	var data json.RawMessage
	err := k.get(ctx, "alert_by_id", "/alerts/"+url.PathEscape(id), &data)
	if IsNotFound(err) {
		return NotFound()
	}
	if err != nil {
		return Failed(err)
	}
	if len(data) == 0 || string(data) == "null" {
		return NotFound()
	}

	raw, err := models.DecodeKeystrokeAlert(data)
	if err != nil {
		return Failed(errors.Wrapf(err, "decode keystroke alert %s", id))
	}
	return Found(k.toAlert(raw))
}

func (k *KeystrokeAdapter) Models(ctx context.Context) (json.RawMessage, error) {
	return k.getRaw(ctx, "models", "/models")
}

func (k *KeystrokeAdapter) Model(ctx context.Context, modelType string) (json.RawMessage, error) {
	return k.getRaw(ctx, "model", "/models/"+url.PathEscape(modelType))
}

func (k *KeystrokeAdapter) ActiveModel(ctx context.Context) (json.RawMessage, error) {
	return k.getRaw(ctx, "active_model", "/models/active")
}

func (k *KeystrokeAdapter) SwitchModel(ctx context.Context, modelType string) (json.RawMessage, error) {
	return k.sendRaw(ctx, "switch_model", http.MethodPut, "/switch/"+url.PathEscape(modelType), nil)
}

func (k *KeystrokeAdapter) MultiBinaryUsers(ctx context.Context) (json.RawMessage, error) {
	return k.getRaw(ctx, "multi_binary_users", "/multi-binary/users")
}

// Train starts an asynchronous training job and returns its id.
func (k *KeystrokeAdapter) Train(ctx context.Context, req models.TrainRequest) (models.TrainResponse, error) {
	var out models.TrainResponse
	if err := k.send(ctx, "train", http.MethodPost, "/train", req, &out); err != nil {
		return models.TrainResponse{}, err
	}
	if out.JobID == "" {
		return models.TrainResponse{}, errors.New("train: no job id returned")
	}
	k.logger.Infow("Started keystroke training", "model_type", req.ModelType, "job_id", out.JobID)
	return out, nil
}

func (k *KeystrokeAdapter) TrainingStatus(ctx context.Context, jobID string) (models.TrainingJob, error) {
	var out models.TrainingJob
	err := k.get(ctx, "training_status", "/status/"+url.PathEscape(jobID), &out)
	return out, err
}

func (k *KeystrokeAdapter) Predict(ctx context.Context, req models.PredictRequest) (json.RawMessage, error) {
	return k.sendRaw(ctx, "predict", http.MethodPost, "/predict", req)
}

func (k *KeystrokeAdapter) Schedules(ctx context.Context) ([]models.Schedule, error) {
	var out []models.Schedule
	if err := k.get(ctx, "schedules", "/schedule", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (k *KeystrokeAdapter) CreateSchedule(ctx context.Context, s models.Schedule) (models.Schedule, error) {
	var out models.Schedule
	err := k.send(ctx, "create_schedule", http.MethodPost, "/schedule/create", s, &out)
	return out, err
}

func (k *KeystrokeAdapter) UpdateSchedule(ctx context.Context, id string, u models.ScheduleUpdate) (models.Schedule, error) {
	var out models.Schedule
	err := k.send(ctx, "update_schedule", http.MethodPut, "/schedule/"+url.PathEscape(id), u, &out)
	return out, err
}

func (k *KeystrokeAdapter) DeleteSchedule(ctx context.Context, id string) error {
	return k.send(ctx, "delete_schedule", http.MethodDelete, "/schedule/"+url.PathEscape(id), nil, nil)
}

func (k *KeystrokeAdapter) StartCollection(ctx context.Context, username, modelType string) (json.RawMessage, error) {
	path := "/collection/start/" + url.PathEscape(username) + "/" + url.PathEscape(modelType)
	return k.sendRaw(ctx, "start_collection", http.MethodPost, path, nil)
}

func (k *KeystrokeAdapter) StopCollection(ctx context.Context) (json.RawMessage, error) {
	return k.sendRaw(ctx, "stop_collection", http.MethodPost, "/collection/stop", nil)
}

func (k *KeystrokeAdapter) CollectionStatus(ctx context.Context) (json.RawMessage, error) {
	return k.getRaw(ctx, "collection_status", "/collection/status")
}

func (k *KeystrokeAdapter) CollectionFiles(ctx context.Context) (json.RawMessage, error) {
	return k.getRaw(ctx, "collection_files", "/collection/files")
}
