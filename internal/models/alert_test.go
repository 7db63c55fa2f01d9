package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineAlertType(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		want   string
	}{
		{"syscheck", []string{"ossec", "syscheck"}, TypeFIM},
		{"vulnerability", []string{"vulnerability-detector"}, TypeVulnerability},
		{"virustotal", []string{"virustotal"}, TypeMalware},
		{"rootkit", []string{"rootkit"}, TypeMalware},
		{"syscheck beats rootkit", []string{"rootkit", "syscheck"}, TypeFIM},
		{"syscheck beats vulnerability", []string{"vulnerability-detector", "syscheck"}, TypeFIM},
		{"vulnerability beats malware", []string{"virustotal", "vulnerability-detector"}, TypeVulnerability},
		{"rootcheck is not rootkit", []string{"rootcheck"}, TypeOther},
		{"no groups", nil, TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineAlertType(tt.groups))
		})
	}
}

func TestFromWazuh(t *testing.T) {
	src := json.RawMessage(`{
		"timestamp": "2025-03-01T10:00:00.000+0000",
		"rule": {"id": "550", "level": 7, "description": "Integrity checksum changed.", "groups": ["ossec", "syscheck", "rootkit"]},
		"agent": {"id": "001", "name": "web-01"}
	}`)

	raw, err := DecodeWazuhAlert("doc-1", src)
	require.NoError(t, err)

	a := FromWazuh(raw)
	assert.Equal(t, "doc-1", a.ID)
	assert.Equal(t, SourceWazuh, a.Source)
	assert.Equal(t, TypeFIM, a.Type)
	assert.Equal(t, 7, a.Level)
	assert.Equal(t, "Integrity checksum changed.", a.Description)
	assert.Equal(t, "2025-03-01T10:00:00.000+0000", a.Timestamp)

	details, ok := a.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "doc-1", details["id"])
	assert.Contains(t, details, "agent")
}

func TestFromWazuh_Defaults(t *testing.T) {
	raw, err := DecodeWazuhAlert("doc-2", json.RawMessage(`{"@timestamp": "2025-03-01T09:00:00Z"}`))
	require.NoError(t, err)

	a := FromWazuh(raw)
	assert.Equal(t, "Unknown alert", a.Description)
	assert.Equal(t, 0, a.Level)
	assert.Equal(t, TypeOther, a.Type)
	assert.Equal(t, "2025-03-01T09:00:00Z", a.Timestamp)
}

func TestDecodeWazuhAlert_RejectsMalformedRule(t *testing.T) {
	_, err := DecodeWazuhAlert("doc-3", json.RawMessage(`{"rule": {"level": "high"}}`))
	assert.Error(t, err)
}

func TestFromKeystroke_Levels(t *testing.T) {
	tests := []struct {
		confidence float64
		want       int
	}{
		{95, 15},
		{90.01, 15},
		{90, 10},
		{80, 10},
		{75, 5},
		{50, 5},
	}

	for _, tt := range tests {
		a := FromKeystroke(KeystrokeAlert{ID: "k", ModelType: ModelFreeText, Confidence: tt.confidence})
		assert.Equal(t, tt.want, a.Level, "confidence %v", tt.confidence)
	}
}

func TestFromKeystroke(t *testing.T) {
	raw, err := DecodeKeystrokeAlert(json.RawMessage(`{
		"id": "6f1c", "type": "keystroke_anomaly", "model_type": "multi-binary",
		"confidence": 87.456, "timestamp": "2025-03-01T12:30:00.123456",
		"details": {"is_anomaly": true}
	}`))
	require.NoError(t, err)

	a := FromKeystroke(raw)
	assert.Equal(t, "6f1c", a.ID)
	assert.Equal(t, SourceKeystroke, a.Source)
	assert.Equal(t, "keystroke_multi-binary", a.Type)
	assert.Equal(t, "Keystroke anomaly detected with 87.46% confidence", a.Description)
	assert.Equal(t, 10, a.Level)
}

func TestFromAnomaly(t *testing.T) {
	a := FromAnomaly(AnomalyRecord{ID: "anomaly-1", Score: 90})
	assert.Equal(t, 15, a.Level)
	assert.Equal(t, "Anomaly detected", a.Description)
	assert.Equal(t, TypeAnomaly, a.Type)
	assert.Equal(t, SourceAnomaly, a.Source)

	a = FromAnomaly(AnomalyRecord{ID: "anomaly-2", Score: 75, Details: AnomalyDetails{Description: "CPU spike"}})
	assert.Equal(t, 10, a.Level)
	assert.Equal(t, "CPU spike", a.Description)

	a = FromAnomaly(AnomalyRecord{ID: "anomaly-3", Score: 74})
	assert.Equal(t, 5, a.Level)
}

func TestSortByTimestampDesc(t *testing.T) {
	alerts := []Alert{
		{ID: "old", Timestamp: "2025-01-01T00:00:00Z"},
		{ID: "bad", Timestamp: "not a time"},
		{ID: "new", Timestamp: "2025-03-01T00:00:00.000+0000"},
		{ID: "mid", Timestamp: "2025-02-01T00:00:00.5"},
	}

	SortByTimestampDesc(alerts)

	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"new", "mid", "old", "bad"}, ids)
}

func TestParseSource(t *testing.T) {
	src, ok := ParseSource("keystroke")
	assert.True(t, ok)
	assert.Equal(t, SourceKeystroke, src)

	_, ok = ParseSource("all")
	assert.False(t, ok)
}

func TestLocalizeTimestamp(t *testing.T) {
	kl := time.FixedZone("UTC+8", 8*3600)

	tests := []struct {
		name string
		ts   string
		loc  *time.Location
		want string
	}{
		{"naive micros", "2025-03-01T12:00:00.000000", kl, "2025-03-01T12:00:00+08:00"},
		{"naive space", "2025-03-01 12:00:00", kl, "2025-03-01T12:00:00+08:00"},
		{"already zoned", "2025-03-01T12:00:00.000+0000", kl, "2025-03-01T12:00:00.000+0000"},
		{"utc keeps naive", "2025-03-01T12:00:00", time.UTC, "2025-03-01T12:00:00"},
		{"nil zone", "2025-03-01T12:00:00", nil, "2025-03-01T12:00:00"},
		{"garbage", "yesterday", kl, "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocalizeTimestamp(tt.ts, tt.loc))
		})
	}

	// 12:00 at +08:00 is 04:00 UTC, so it sorts before a 05:00 UTC Wazuh alert.
	alerts := []Alert{
		{ID: "keystroke", Timestamp: LocalizeTimestamp("2025-03-01T12:00:00.000000", kl)},
		{ID: "wazuh", Timestamp: "2025-03-01T05:00:00.000+0000"},
	}
	SortByTimestampDesc(alerts)
	assert.Equal(t, "wazuh", alerts[0].ID)
}
