package models

// Thresholds are the per-category alerting thresholds edited on the
// settings page.
type Thresholds struct {
	Wazuh struct {
		FIM           int `json:"fim" validate:"gte=0,lte=100"`
		Malware       int `json:"malware" validate:"gte=0,lte=100"`
		Vulnerability int `json:"vulnerability" validate:"gte=0,lte=100"`
	} `json:"wazuh"`
	Keystroke struct {
		Confidence int `json:"confidence" validate:"gte=0,lte=100"`
	} `json:"keystroke"`
}

// DefaultThresholds returns the values used until an operator saves new ones.
func DefaultThresholds() Thresholds {
	var t Thresholds
	t.Wazuh.FIM = 75
	t.Wazuh.Malware = 90
	t.Wazuh.Vulnerability = 60
	t.Keystroke.Confidence = 80
	return t
}
