package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hids-dashboard-go/internal/models"
	"hids-dashboard-go/internal/sources"
)

func TestKeystrokePassThrough(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]string{
		"/api/keystroke/models":             `[{"type":"fixed-text"},{"type":"free-text"}]`,
		"/api/keystroke/models/active":      `{"type":"fixed-text"}`,
		"/api/keystroke/models/free-text":   `{"type":"free-text"}`,
		"/api/keystroke/collection/status":  `{"collecting":false}`,
		"/api/keystroke/collection/files":   `[]`,
		"/api/keystroke/multi-binary/users": `["alice","bob"]`,
	}
	for path, want := range tests {
		rec := env.get(path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, want, rec.Body.String(), path)
	}
}

func TestModelTypeValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/keystroke/models/gpt")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid model type: gpt", decodeBody[errorBody](t, rec).Message)

	rec = env.sendJSON(http.MethodPut, "/api/keystroke/switch/gpt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.sendJSON(http.MethodPost, "/api/keystroke/collection/start/alice/gpt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, env.ksAPI.called())
	assert.Empty(t, env.audit.actions())
}

func TestSwitchModel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.sendJSON(http.MethodPut, "/api/keystroke/switch/multi-binary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, []string{"switch multi-binary"}, env.ksAPI.called())
	assert.Equal(t, []string{"switch_model"}, env.audit.actions())
}

func TestTrainModel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.sendJSON(http.MethodPost, "/api/keystroke/train", map[string]any{"modelType": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Message, "modelType failed oneof")
	assert.Empty(t, env.ksAPI.called())

	rec = env.sendJSON(http.MethodPost, "/api/keystroke/train", map[string]any{
		"modelType":  models.ModelFixedText,
		"parameters": map[string]any{"epochs": 10},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"jobId":"job-1"}`, rec.Body.String())
	assert.Equal(t, []string{"train fixed-text"}, env.ksAPI.called())

	require.Len(t, env.audit.entries, 1)
	entry := env.audit.entries[0]
	assert.Equal(t, "train_model", entry.Action)
	assert.Equal(t, models.ModelFixedText, entry.TargetID)
	assert.JSONEq(t, `{"job_id":"job-1"}`, entry.Metadata)
}

func TestTrainingStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/keystroke/status/job-9")
	require.Equal(t, http.StatusOK, rec.Code)
	job := decodeBody[models.TrainingJob](t, rec)
	assert.Equal(t, "job-9", job.ID)
	assert.Equal(t, 40, job.Progress)

	env.ksAPI.err = &sources.StatusError{Method: http.MethodGet, URL: "http://ml/training/status/job-x", StatusCode: http.StatusNotFound}
	rec = env.get("/api/keystroke/status/job-x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decodeBody[errorBody](t, rec).Message)
	env.ksAPI.err = nil

	rec = env.get("/api/keystroke/status/job-done")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":{"accuracy":0.93}`)
	assert.Contains(t, rec.Body.String(), `"end_time":"2025-03-01T12:30:00"`)

	env.ksAPI.err = &sources.StatusError{Method: http.MethodGet, URL: "http://ml/training/status/job-x", StatusCode: http.StatusBadGateway}
	rec = env.get("/api/keystroke/status/job-x")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to load training status", decodeBody[errorBody](t, rec).Message)
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]string{
		"missing data": `{"modelType":"fixed-text"}`,
		"null data":    `{"data":null}`,
		"bad model":    `{"modelType":"gpt","data":[1,2]}`,
	} {
		rec := env.sendJSON(http.MethodPost, "/api/keystroke/predict", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	assert.Empty(t, env.ksAPI.called())

	rec := env.sendJSON(http.MethodPost, "/api/keystroke/predict", `{"data":{"timings":[0.12,0.3]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prediction":1,"confidence":0.93}`, rec.Body.String())
}

func TestScheduleAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/keystroke/schedule")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.sendJSON(http.MethodPost, "/api/keystroke/schedule/create", map[string]any{
		"modelType":    models.ModelFreeText,
		"intervalType": "daily",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Message, "operationType failed required")

	rec = env.sendJSON(http.MethodPost, "/api/keystroke/schedule/create", map[string]any{
		"modelType":      models.ModelFreeText,
		"operationType":  "train",
		"intervalType":   "custom",
		"customInterval": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.sendJSON(http.MethodPost, "/api/keystroke/schedule/create", map[string]any{
		"modelType":     models.ModelFreeText,
		"operationType": "train",
		"intervalType":  "weekly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[models.Schedule](t, rec)
	assert.Equal(t, "sched-1", created.ID)

	rec = env.sendJSON(http.MethodPut, "/api/keystroke/schedule/sched-1", map[string]any{"intervalType": "monthly"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "monthly", decodeBody[models.Schedule](t, rec).IntervalType)

	rec = env.sendJSON(http.MethodPut, "/api/keystroke/schedule/sched-1", map[string]any{"modelType": "gpt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/keystroke/schedule/sched-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	assert.Equal(t, []string{"create_schedule", "update_schedule", "delete_schedule"}, env.audit.actions())
	assert.Equal(t, "sched-1", env.audit.entries[0].TargetID)
	assert.Contains(t, env.audit.entries[0].Metadata, `"intervalType":"weekly"`)
}

func TestCollection(t *testing.T) {
	env := newTestEnv(t)

	rec := env.sendJSON(http.MethodPost, "/api/keystroke/collection/start/alice/free-text", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"started"}`, rec.Body.String())

	rec = env.sendJSON(http.MethodPost, "/api/keystroke/collection/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"start alice free-text", "stop"}, env.ksAPI.called())
	assert.Equal(t, []string{"start_collection", "stop_collection"}, env.audit.actions())
	assert.Equal(t, "alice", env.audit.entries[0].TargetID)
}

func TestKeystrokeViews(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/keystroke/overview")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keystroke alert 4")
	assert.NotContains(t, rec.Body.String(), "keystroke alert 5")
	assert.Contains(t, env.ksAPI.called(), "recent 5")

	rec = env.get("/keystroke/models")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "free-text")

	rec = env.get("/keystroke/training-status/job-3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "job-3")
	assert.Contains(t, rec.Body.String(), "running")

	rec = env.get("/keystroke/training-status/job-done")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "2025-03-01T12:30:00")
	assert.Contains(t, body, "<dt>accuracy</dt><dd>0.93</dd>")
}

func TestScheduleForm(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm("/keystroke/schedule", url.Values{
		"modelType":      {models.ModelFixedText},
		"operationType":  {"train"},
		"intervalType":   {"custom"},
		"customInterval": {"6"},
		"nextRunTime":    {"2024-06-01T08:30"},
		"parameters":     {`{"epochs":5}`},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/keystroke/schedule", rec.Header().Get("Location"))

	require.Len(t, env.ksAPI.schedules, 1)
	s := env.ksAPI.schedules[0]
	require.NotNil(t, s.CustomInterval)
	assert.Equal(t, 6, *s.CustomInterval)
	want, err := time.ParseInLocation(formTimeLayout, "2024-06-01T08:30", time.Local)
	require.NoError(t, err)
	assert.Equal(t, want.Format(time.RFC3339), s.NextRunTime)
	assert.EqualValues(t, 5, s.Parameters["epochs"])
	assert.Equal(t, []string{"create_schedule"}, env.audit.actions())

	// The new schedule is listed on the page.
	rec = env.get("/keystroke/schedule")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sched-1")
}

func TestScheduleFormRejects(t *testing.T) {
	tests := map[string]url.Values{
		"interval not a number": {
			"modelType": {models.ModelFixedText}, "operationType": {"train"}, "intervalType": {"custom"},
			"customInterval": {"six"},
		},
		"bad time": {
			"modelType": {models.ModelFixedText}, "operationType": {"train"}, "intervalType": {"daily"},
			"nextRunTime": {"tomorrow"},
		},
		"bad parameters": {
			"modelType": {models.ModelFixedText}, "operationType": {"train"}, "intervalType": {"daily"},
			"parameters": {"{epochs"},
		},
		"unknown model": {
			"modelType": {"gpt"}, "operationType": {"train"}, "intervalType": {"daily"},
		},
	}
	for name, form := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.postForm("/keystroke/schedule", form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Invalid request")
			assert.Empty(t, env.ksAPI.schedules)
			assert.Empty(t, env.audit.actions())
		})
	}
}
