package models

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Source identifies the system an alert came from.
type Source string

const (
	SourceWazuh     Source = "wazuh"
	SourceKeystroke Source = "keystroke"
	SourceAnomaly   Source = "anomaly"
)

// SourceAll selects every source on aggregated queries.
const SourceAll = "all"

// Sources lists every alert source in merge order.
var Sources = []Source{SourceWazuh, SourceAnomaly, SourceKeystroke}

// ParseSource returns the Source named by s.
func ParseSource(s string) (Source, bool) {
	src := Source(s)
	if slices.Contains(Sources, src) {
		return src, true
	}
	return "", false
}

// Wazuh alert types
const (
	TypeFIM           = "fim"
	TypeVulnerability = "vulnerability"
	TypeMalware       = "malware"
	TypeOther         = "other"
	TypeAnomaly       = "opensearch_anomaly"
)

// Alert is the unified alert shape every source is mapped into.
// It is built per request and never modified afterwards.
type Alert struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	Level       int    `json:"level"`
	Source      Source `json:"source"`
	Type        string `json:"type"`
	Details     any    `json:"details"`
}

// AlertPage is one page of alerts plus the filtered total.
type AlertPage struct {
	Alerts     []Alert `json:"alerts"`
	TotalCount int     `json:"totalCount"`
}

// FromWazuh maps a Wazuh alert document.
func FromWazuh(a WazuhAlert) Alert {
	description := "Unknown alert"
	level := 0
	var groups []string
	if a.Rule != nil {
		if a.Rule.Description != "" {
			description = a.Rule.Description
		}
		level = a.Rule.Level
		groups = a.Rule.Groups
	}

	return Alert{
		ID:          a.ID,
		Timestamp:   a.Timestamp,
		Description: description,
		Level:       level,
		Source:      SourceWazuh,
		Type:        DetermineAlertType(groups),
		Details:     a.details(),
	}
}

// FromKeystroke maps an alert raised by the keystroke ML service.
func FromKeystroke(a KeystrokeAlert) Alert {
	return Alert{
		ID:          a.ID,
		Timestamp:   a.Timestamp,
		Description: fmt.Sprintf("Keystroke anomaly detected with %.2f%% confidence", a.Confidence),
		Level:       keystrokeLevel(a.Confidence),
		Source:      SourceKeystroke,
		Type:        "keystroke_" + a.ModelType,
		Details:     a.details(),
	}
}

// FromAnomaly maps an anomaly-detection record.
func FromAnomaly(a AnomalyRecord) Alert {
	description := "Anomaly detected"
	if a.Details.Description != "" {
		description = a.Details.Description
	}

	return Alert{
		ID:          a.ID,
		Timestamp:   a.Timestamp,
		Description: description,
		Level:       anomalyLevel(a.Score),
		Source:      SourceAnomaly,
		Type:        TypeAnomaly,
		Details:     a,
	}
}

// DetermineAlertType classifies a Wazuh alert from its rule groups.
// The first matching check wins, so syscheck beats every other tag.
func DetermineAlertType(groups []string) string {
	switch {
	case slices.Contains(groups, "syscheck"):
		return TypeFIM
	case slices.Contains(groups, "vulnerability-detector"):
		return TypeVulnerability
	case slices.Contains(groups, "virustotal"), slices.Contains(groups, "rootkit"):
		return TypeMalware
	default:
		return TypeOther
	}
}

// keystrokeLevel uses strict comparisons: a confidence of exactly 90 is level 10.
func keystrokeLevel(confidence float64) int {
	switch {
	case confidence > 90:
		return 15
	case confidence > 75:
		return 10
	default:
		return 5
	}
}

func anomalyLevel(score float64) int {
	switch {
	case score >= 90:
		return 15
	case score >= 75:
		return 10
	default:
		return 5
	}
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
}

// naiveLayouts carry no offset; the keystroke service writes its host's
// local time this way.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the ISO-8601 variants emitted by the sources.
// Timestamps without an offset are read as UTC; sources on another zone
// must be passed through LocalizeTimestamp first. Unparseable values
// yield the zero time.
func ParseTimestamp(ts string) time.Time {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LocalizeTimestamp rewrites a timestamp without an offset as RFC 3339 in
// loc. Zoned, unparseable and UTC-bound values are returned unchanged.
func LocalizeTimestamp(ts string, loc *time.Location) string {
	if loc == nil || loc == time.UTC {
		return ts
	}
	for _, layout := range zonedLayouts {
		if _, err := time.Parse(layout, ts); err == nil {
			return ts
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			return t.Format(time.RFC3339Nano)
		}
	}
	return ts
}

// SortByTimestampDesc orders alerts newest first. Alerts with unparseable
// timestamps sink to the end; ties keep their input order.
func SortByTimestampDesc(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return ParseTimestamp(alerts[i].Timestamp).After(ParseTimestamp(alerts[j].Timestamp))
	})
}
