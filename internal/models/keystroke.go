package models

import "encoding/json"

// Keystroke model types known to the ML service.
const (
	ModelFixedText   = "fixed-text"
	ModelFreeText    = "free-text"
	ModelMultiBinary = "multi-binary"
)

type KeystrokeModel struct {
	Type        string          `json:"type"`
	Info        json.RawMessage `json:"info,omitempty"`
	IsActive    bool            `json:"is_active,omitempty"`
	LastUpdated string          `json:"last_updated,omitempty"`
}

// TrainRequest starts a training job on the ML service.
type TrainRequest struct {
	ModelType  string         `json:"modelType" validate:"required,oneof=fixed-text free-text multi-binary"`
	Parameters map[string]any `json:"parameters"`
	Username   string         `json:"username,omitempty"`
}

type TrainResponse struct {
	JobID string `json:"jobId"`
}

// TrainingJob is the status document of a training run.
type TrainingJob struct {
	ID         string         `json:"id"`
	ModelType  string         `json:"model_type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     string         `json:"status"`
	Progress   int            `json:"progress"`
	CreatedAt  string         `json:"created_at,omitempty"`
	StartTime  string         `json:"start_time,omitempty"`
	EndTime    string         `json:"end_time,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type PredictRequest struct {
	ModelType string          `json:"modelType,omitempty" validate:"omitempty,oneof=fixed-text free-text multi-binary"`
	Data      json.RawMessage `json:"data" validate:"required"`
}

// Schedule is a recurring training or collection job on the ML service.
type Schedule struct {
	ID             string         `json:"id,omitempty"`
	ModelType      string         `json:"modelType" validate:"required,oneof=fixed-text free-text multi-binary"`
	OperationType  string         `json:"operationType" validate:"required"`
	IntervalType   string         `json:"intervalType" validate:"required"`
	CustomInterval *int           `json:"customInterval,omitempty" validate:"omitempty,gt=0"`
	NextRunTime    string         `json:"nextRunTime,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
	IsActive       *bool          `json:"isActive,omitempty"`
}

// ScheduleUpdate carries the fields a schedule update may change.
type ScheduleUpdate struct {
	ModelType      *string        `json:"modelType,omitempty" validate:"omitempty,oneof=fixed-text free-text multi-binary"`
	OperationType  *string        `json:"operationType,omitempty" validate:"omitempty,min=1"`
	IntervalType   *string        `json:"intervalType,omitempty" validate:"omitempty,min=1"`
	CustomInterval *int           `json:"customInterval,omitempty" validate:"omitempty,gt=0"`
	NextRunTime    *string        `json:"nextRunTime,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	IsActive       *bool          `json:"isActive,omitempty"`
}
