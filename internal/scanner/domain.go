package scanner

import "time"

// Severity grades how dangerous a matched pattern is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// weight returns the scoring weight for a severity.
func (s Severity) weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.7
	case SeverityMedium:
		return 0.4
	case SeverityLow:
		return 0.1
	default:
		return 0.1
	}
}

// ThreatType categorises the kind of suspicious construct found.
type ThreatType string

const (
	ThreatSystemCommand ThreatType = "system_command"
	ThreatFilesystem    ThreatType = "filesystem_access"
	ThreatNetwork       ThreatType = "network_access"
	ThreatCodeInjection ThreatType = "code_injection"
	ThreatBackdoor      ThreatType = "backdoor"
	ThreatCryptoMining  ThreatType = "crypto_mining"
)

// Threat is a single pattern match inside a scanned source file. The matched
// pattern and line are always carried so a human can adjudicate false
// positives.
type Threat struct {
	Type           ThreatType `json:"type"`
	Severity       Severity   `json:"severity"`
	File           string     `json:"file"`
	Line           int        `json:"line"`
	Snippet        string     `json:"snippet"`
	Pattern        string     `json:"pattern"`
	Description    string     `json:"description"`
	Recommendation string     `json:"recommendation"`
}

// Metrics summarises the volume of code inspected.
type Metrics struct {
	FilesScanned int `json:"files_scanned"`
	LinesScanned int `json:"lines_scanned"`
}

// Result is the outcome of scanning one module.
type Result struct {
	ModuleName string    `json:"module_name"`
	Threats    []Threat  `json:"threats"`
	RiskScore  float64   `json:"risk_score"`
	IsSafe     bool      `json:"is_safe"`
	Metrics    Metrics   `json:"metrics"`
	ScannedAt  time.Time `json:"scanned_at"`
}
