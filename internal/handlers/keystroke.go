package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"hids-dashboard-go/internal/models"
	"hids-dashboard-go/web"
)

const (
	modelTypeRule       = "required,oneof=fixed-text free-text multi-binary"
	overviewRecentLimit = 5

	// datetime-local input format
	formTimeLayout = "2006-01-02T15:04"
)

// rawFunc is a keystroke call answering with the service's own JSON.
type rawFunc func(ctx context.Context) (json.RawMessage, error)

// passThrough relays a keystroke service document unchanged.
func (h *Handler) passThrough(what string, fetch rawFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fetch(r.Context())
		if err != nil {
			h.fail(w, r, "Failed to load "+what, err)
			return
		}
		writeRaw(w, http.StatusOK, data)
	}
}

func writeRaw(w http.ResponseWriter, status int, data json.RawMessage) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// modelType reads and validates the {modelType} path variable.
func (h *Handler) modelType(w http.ResponseWriter, r *http.Request) (string, bool) {
	modelType := mux.Vars(r)["modelType"]
	if err := h.validate.Var(modelType, modelTypeRule); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid model type: "+modelType, err)
		return "", false
	}
	return modelType, true
}

// === Models ===

func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	modelType, ok := h.modelType(w, r)
	if !ok {
		return
	}
	data, err := h.Keystroke.Model(r.Context(), modelType)
	if err != nil {
		h.fail(w, r, "Failed to load model "+modelType, err)
		return
	}
	writeRaw(w, http.StatusOK, data)
}

func (h *Handler) SwitchModel(w http.ResponseWriter, r *http.Request) {
	modelType, ok := h.modelType(w, r)
	if !ok {
		return
	}
	data, err := h.Keystroke.SwitchModel(r.Context(), modelType)
	if err != nil {
		h.fail(w, r, "Failed to switch model", err)
		return
	}
	h.audit(r, "switch_model", "model", modelType, nil)
	writeRaw(w, http.StatusOK, data)
}

// === Training and prediction ===

func (h *Handler) TrainModel(w http.ResponseWriter, r *http.Request) {
	var req models.TrainRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	resp, err := h.Keystroke.Train(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to start training", err)
		return
	}
	h.audit(r, "train_model", "model", req.ModelType, map[string]any{"job_id": resp.JobID})
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) GetTrainingStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.Keystroke.TrainingStatus(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		h.fail(w, r, "Failed to load training status", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if !h.decodeOrReject(w, r, &req) {
		return
	}
	if string(bytes.TrimSpace(req.Data)) == "null" {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request: data failed required", nil)
		return
	}

	data, err := h.Keystroke.Predict(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to run prediction", err)
		return
	}
	writeRaw(w, http.StatusOK, data)
}

// === Schedules ===

func (h *Handler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Keystroke.Schedules(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load schedules", err)
		return
	}
	if schedules == nil {
		schedules = []models.Schedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req models.Schedule
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	created, err := h.Keystroke.CreateSchedule(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to create schedule", err)
		return
	}
	h.auditSchedule(r, "create_schedule", created.ID, req)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req models.ScheduleUpdate
	if !h.decodeOrReject(w, r, &req) {
		return
	}

	updated, err := h.Keystroke.UpdateSchedule(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "Failed to update schedule", err)
		return
	}
	h.auditSchedule(r, "update_schedule", id, req)
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Keystroke.DeleteSchedule(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete schedule", err)
		return
	}
	h.audit(r, "delete_schedule", "schedule", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) auditSchedule(r *http.Request, action, id string, body any) {
	var meta map[string]any
	if b, err := json.Marshal(body); err == nil {
		_ = json.Unmarshal(b, &meta)
	}
	h.audit(r, action, "schedule", id, meta)
}

// === Collection ===

func (h *Handler) StartCollection(w http.ResponseWriter, r *http.Request) {
	modelType, ok := h.modelType(w, r)
	if !ok {
		return
	}
	username := mux.Vars(r)["username"]
	data, err := h.Keystroke.StartCollection(r.Context(), username, modelType)
	if err != nil {
		h.fail(w, r, "Failed to start collection", err)
		return
	}
	h.audit(r, "start_collection", "collection", username, map[string]any{"model_type": modelType})
	writeRaw(w, http.StatusOK, data)
}

func (h *Handler) StopCollection(w http.ResponseWriter, r *http.Request) {
	data, err := h.Keystroke.StopCollection(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to stop collection", err)
		return
	}
	h.audit(r, "stop_collection", "collection", "", nil)
	writeRaw(w, http.StatusOK, data)
}

// === Views ===

func (h *Handler) KeystrokeOverviewPage(w http.ResponseWriter, r *http.Request) {
	var (
		summary any
		active  json.RawMessage
		recent  []models.Alert
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		summary, err = h.Keystroke.Summary(ctx)
		return err
	})
	g.Go(func() (err error) {
		active, err = h.Keystroke.ActiveModel(ctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = h.Keystroke.RecentAlerts(ctx, overviewRecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, "Failed to load keystroke overview", err)
		return
	}

	data := map[string]any{"ActiveModel": active, "Recent": recent}
	if s, ok := summary.(models.KeystrokeSummary); ok {
		data["Summary"] = &s
	}
	h.render(w, r, http.StatusOK, web.PageKeystrokeOverview, data)
}

func (h *Handler) KeystrokeModelsPage(w http.ResponseWriter, r *http.Request) {
	modelsDoc, err := h.Keystroke.Models(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load models", err)
		return
	}
	h.render(w, r, http.StatusOK, web.PageKeystrokeModels, map[string]any{"Models": modelsDoc})
}

func (h *Handler) SchedulePage(w http.ResponseWriter, r *http.Request) {
	h.renderSchedules(w, r, http.StatusOK, "")
}

func (h *Handler) renderSchedules(w http.ResponseWriter, r *http.Request, status int, formError string) {
	schedules, err := h.Keystroke.Schedules(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load schedules", err)
		return
	}
	h.render(w, r, status, web.PageKeystrokeSchedule, map[string]any{
		"Schedules": schedules,
		"Error":     formError,
	})
}

// scheduleFromForm builds a schedule from the schedule page form.
func scheduleFromForm(r *http.Request) (models.Schedule, error) {
	s := models.Schedule{
		ModelType:     r.PostFormValue("modelType"),
		OperationType: r.PostFormValue("operationType"),
		IntervalType:  r.PostFormValue("intervalType"),
	}

	if v := strings.TrimSpace(r.PostFormValue("customInterval")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, errors.Mark(errors.Newf("customInterval %q is not a number", v), errBadRequest)
		}
		s.CustomInterval = &n
	}

	if v := strings.TrimSpace(r.PostFormValue("nextRunTime")); v != "" {
		t, err := time.ParseInLocation(formTimeLayout, v, time.Local)
		if err != nil {
			return s, errors.Mark(errors.Newf("nextRunTime %q is not a valid time", v), errBadRequest)
		}
		s.NextRunTime = t.Format(time.RFC3339)
	}

	if v := strings.TrimSpace(r.PostFormValue("parameters")); v != "" {
		if err := json.Unmarshal([]byte(v), &s.Parameters); err != nil {
			return s, errors.Mark(errors.Wrap(err, "parameters must be a JSON object"), errBadRequest)
		}
	}
	return s, nil
}

func (h *Handler) CreateScheduleForm(w http.ResponseWriter, r *http.Request) {
	s, err := scheduleFromForm(r)
	if err == nil {
		err = h.validate.Struct(s)
	}
	if err != nil {
		h.logger.Warnw("Rejected schedule form", "error", err, "request_id", requestID(r.Context()))
		h.renderSchedules(w, r, http.StatusBadRequest, clientMessage(err))
		return
	}

	created, err := h.Keystroke.CreateSchedule(r.Context(), s)
	if err != nil {
		h.fail(w, r, "Failed to create schedule", err)
		return
	}
	h.auditSchedule(r, "create_schedule", created.ID, s)
	http.Redirect(w, r, "/keystroke/schedule", http.StatusSeeOther)
}

func (h *Handler) TrainingStatusPage(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	job, err := h.Keystroke.TrainingStatus(r.Context(), jobID)
	if err != nil {
		h.fail(w, r, "Failed to load training status", err)
		return
	}
	h.render(w, r, http.StatusOK, web.PageTrainingStatus, map[string]any{"JobID": jobID, "Job": job})
}
