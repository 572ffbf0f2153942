package safety

import (
	"fmt"
	"time"
)

// Message is one utterance handed to the classifier. Only messages with
// IsFromUser == false are scanned by the hard rules.
type Message struct {
	Text       string     `json:"text"`
	Sender     string     `json:"sender,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	IsFromUser bool       `json:"is_from_user"`
}

// RiskType is the category of a detected concern. Collaborators may return
// types outside the known set; they are carried through unchanged.
type RiskType string

const (
	RiskManipulation RiskType = "manipulation"
	RiskGaslighting  RiskType = "gaslighting"
	RiskPressuring   RiskType = "pressuring"
	RiskToxicity     RiskType = "toxicity"
	RiskRedFlag      RiskType = "red_flag"
	RiskViolence     RiskType = "violence"
)

// Known reports whether t is one of the six built-in categories.
func (t RiskType) Known() bool {
	switch t {
	case RiskManipulation, RiskGaslighting, RiskPressuring, RiskToxicity, RiskRedFlag, RiskViolence:
		return true
	}
	return false
}

// Severity of a single flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for aggregation: high=3, medium=2, low=1. Anything
// else ranks below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// RiskFlag is one detected concern.
type RiskFlag struct {
	Type        RiskType `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

// RiskLevel is the overall ordinal: none < low < medium < high.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "none"
	}
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(b []byte) error {
	level, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ParseRiskLevel is the inverse of RiskLevel.String.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "none":
		return RiskNone, nil
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return RiskNone, fmt.Errorf("unknown risk level %q", s)
}

// SupportResource is a static reference shown alongside high-risk results.
type SupportResource struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Phone       string `json:"phone,omitempty"`
	Website     string `json:"website,omitempty"`
}

// Analysis is the classifier result.
type Analysis struct {
	Flags            []RiskFlag        `json:"flags"`
	OverallRisk      RiskLevel         `json:"overall_risk"`
	Recommendations  []string          `json:"recommendations"`
	SupportResources []SupportResource `json:"support_resources"`
}

// FlagTypes lists the types of the analysis flags in order.
func (a *Analysis) FlagTypes() []string {
	out := make([]string, 0, len(a.Flags))
	for _, f := range a.Flags {
		out = append(out, string(f.Type))
	}
	return out
}
