package model

import "time"

// Impact is the severity of a finding. Higher values are more severe.
type Impact int

const (
	ImpactLow Impact = iota
	ImpactMedium
	ImpactHigh
	ImpactCritical
)

func (i Impact) String() string {
	switch i {
	case ImpactLow:
		return "Low"
	case ImpactMedium:
		return "Medium"
	case ImpactHigh:
		return "High"
	case ImpactCritical:
		return "Critical"
	}
	return "Unknown"
}

// MarshalText renders the impact by name in JSON output.
func (i Impact) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// ImpactsBySeverity lists impacts in presentation order, most severe first.
var ImpactsBySeverity = []Impact{ImpactCritical, ImpactHigh, ImpactMedium, ImpactLow}

// Bottleneck is one classifier finding.
type Bottleneck struct {
	Category       Domain    `json:"category"`
	Issue          string    `json:"issue"`
	Counter        string    `json:"counter"`
	Instance       string    `json:"instance"`
	Observed       float64   `json:"observed"`
	Comparator     string    `json:"comparator"` // ">" or "<"
	Threshold      float64   `json:"threshold"`
	Unit           string    `json:"unit,omitempty"`
	Impact         Impact    `json:"impact"`
	Recommendation string    `json:"recommendation,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
}
