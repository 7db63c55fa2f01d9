package models

import (
	"encoding/json"
)

// WazuhRule is the subset of a Wazuh rule the dashboard reads.
type WazuhRule struct {
	ID          string   `json:"id"`
	Level       int      `json:"level"`
	Description string   `json:"description"`
	Groups      []string `json:"groups"`
}

type WazuhAgent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// WazuhAlert is a wazuh-alerts document as stored in OpenSearch.
type WazuhAlert struct {
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Rule      *WazuhRule  `json:"rule,omitempty"`
	Agent     *WazuhAgent `json:"agent,omitempty"`

	raw map[string]any
}

func (a WazuhAlert) details() any {
	if a.raw != nil {
		return a.raw
	}
	return a
}

// DecodeWazuhAlert narrows an OpenSearch _source document. The document id
// is injected into the raw record so drill-down views see it.
func DecodeWazuhAlert(id string, source json.RawMessage) (WazuhAlert, error) {
	var a WazuhAlert
	if len(source) > 0 {
		if err := json.Unmarshal(source, &a); err != nil {
			return WazuhAlert{}, err
		}
		if err := json.Unmarshal(source, &a.raw); err != nil {
			return WazuhAlert{}, err
		}
	}
	if a.raw == nil {
		a.raw = map[string]any{}
	}
	a.ID = id
	a.raw["id"] = id

	if a.Timestamp == "" {
		if ts, ok := a.raw["@timestamp"].(string); ok {
			a.Timestamp = ts
		}
	}
	return a, nil
}

// KeystrokeAlert is an intrusion alert saved by the keystroke ML service.
type KeystrokeAlert struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	ModelType  string  `json:"model_type"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
	Details    any     `json:"details,omitempty"`

	raw map[string]any
}

func (a KeystrokeAlert) details() any {
	if a.raw != nil {
		return a.raw
	}
	return a
}

// DecodeKeystrokeAlert narrows one alert record returned by the ML service.
func DecodeKeystrokeAlert(data json.RawMessage) (KeystrokeAlert, error) {
	var a KeystrokeAlert
	if err := json.Unmarshal(data, &a); err != nil {
		return KeystrokeAlert{}, err
	}
	if err := json.Unmarshal(data, &a.raw); err != nil {
		return KeystrokeAlert{}, err
	}
	return a, nil
}

type AnomalyDetails struct {
	Description      string `json:"description"`
	AffectedResource string `json:"affected_resource"`
	AnomalyType      string `json:"anomaly_type"`
}

// AnomalyRecord is one anomaly-detection finding.
type AnomalyRecord struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Score     float64        `json:"score"`
	Details   AnomalyDetails `json:"details"`
}

// WazuhSummary combines agent status with alert counts per category.
type WazuhSummary struct {
	AgentStatus         json.RawMessage `json:"agentStatus"`
	TotalAlerts         int             `json:"totalAlerts"`
	FIMAlerts           int             `json:"fimAlerts"`
	MalwareAlerts       int             `json:"malwareAlerts"`
	VulnerabilityAlerts int             `json:"vulnerabilityAlerts"`
}

type ModelStatus struct {
	Trained     bool     `json:"trained"`
	LastTrained *string  `json:"last_trained"`
	Accuracy    *float64 `json:"accuracy"`
}

// KeystrokeSummary mirrors the ML service's /summary payload.
type KeystrokeSummary struct {
	AlertCount       int                    `json:"alert_count"`
	Models           map[string]ModelStatus `json:"models"`
	ActiveModel      string                 `json:"active_model"`
	CollectionStatus json.RawMessage        `json:"collection_status,omitempty"`
}

type AnomalySummary struct {
	TotalAnomalies int            `json:"totalAnomalies"`
	HighSeverity   int            `json:"highSeverity"`
	ByType         map[string]int `json:"byType"`
}

// AgentInfo is returned after registering a Wazuh agent.
type AgentInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
	Key  string `json:"key"`
}
