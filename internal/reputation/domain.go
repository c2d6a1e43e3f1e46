package reputation

import "time"

// Level is the discrete trust band derived from a total score.
type Level string

const (
	LevelUntrusted  Level = "untrusted"
	LevelSuspicious Level = "suspicious"
	LevelNeutral    Level = "neutral"
	LevelTrusted    Level = "trusted"
	LevelVerified   Level = "verified"
)

// LevelForScore maps a 0-100 score onto its band.
func LevelForScore(score float64) Level {
	switch {
	case score > 80:
		return LevelVerified
	case score > 60:
		return LevelTrusted
	case score > 40:
		return LevelNeutral
	case score > 20:
		return LevelSuspicious
	default:
		return LevelUntrusted
	}
}

// Weights configures the contribution of each factor. These are deployment
// defaults to be tuned, not invariants.
type Weights struct {
	SignatureValid   float64
	CodeQuality      float64
	ScanResult       float64
	UserFeedback     float64
	TimeActive       float64
	UpdateCadence    float64
	ViolationPenalty float64
	MaxAgeDays       int
	MaxUpdatesPerYr  int
}

// DefaultWeights returns the standard factor weighting.
func DefaultWeights() Weights {
	return Weights{
		SignatureValid:   0.25,
		CodeQuality:      0.20,
		ScanResult:       0.20,
		UserFeedback:     0.15,
		TimeActive:       0.10,
		UpdateCadence:    0.10,
		ViolationPenalty: 0.20,
		MaxAgeDays:       365,
		MaxUpdatesPerYr:  12,
	}
}

// InputFromScore reverses a persisted score's factor contributions back into
// a scoring input, advancing the observed age by the time elapsed since the
// score was last updated. Facts that only arrive with an admission (fresh
// scan, feedback) keep their last recorded value.
func (w Weights) InputFromScore(score Score, now time.Time) Input {
	input := Input{
		ModuleName:     score.ModuleName,
		DeveloperID:    score.DeveloperID,
		SignatureValid: score.Factors.SignatureValid > 0,
	}
	if w.CodeQuality > 0 {
		input.CodeQuality = score.Factors.CodeQuality / w.CodeQuality
	}
	if w.ScanResult > 0 {
		input.ScanRiskScore = 100 - score.Factors.ScanResult/w.ScanResult
	}
	if w.UserFeedback > 0 {
		input.UserFeedback = score.Factors.UserFeedback / w.UserFeedback
	}
	if w.ViolationPenalty > 0 {
		input.Violations = int(-score.Factors.ViolationPenalty/(w.ViolationPenalty*100) + 0.5)
	}
	if w.UpdateCadence > 0 && w.MaxUpdatesPerYr > 0 {
		input.UpdatesLastYear = int(score.Factors.UpdateCadence/w.UpdateCadence*float64(w.MaxUpdatesPerYr)/100 + 0.5)
	}
	ageDays := int(score.Confidence*float64(w.MaxAgeDays) + 0.5)
	if !score.LastUpdated.IsZero() && now.After(score.LastUpdated) {
		ageDays += int(now.Sub(score.LastUpdated).Hours() / 24)
	}
	input.AgeDays = ageDays
	return input
}

// Input carries the observed facts about a module the engine scores.
type Input struct {
	ModuleName     string
	DeveloperID    string
	SignatureValid bool
	// CodeQuality and UserFeedback are 0-100.
	CodeQuality  float64
	UserFeedback float64
	// ScanRiskScore is the scanner's 0-100 risk; lower risk scores higher.
	ScanRiskScore float64
	AgeDays       int
	Violations    int
	// UpdatesLastYear counts releases in the trailing twelve months.
	UpdatesLastYear int
}

// FactorBreakdown records each factor's weighted contribution.
type FactorBreakdown struct {
	SignatureValid   float64 `json:"signature_valid"`
	CodeQuality      float64 `json:"code_quality"`
	ScanResult       float64 `json:"scan_result"`
	UserFeedback     float64 `json:"user_feedback"`
	TimeActive       float64 `json:"time_active"`
	UpdateCadence    float64 `json:"update_cadence"`
	ViolationPenalty float64 `json:"violation_penalty"`
}

// Score is a computed reputation for one module. Scores never silently
// expire; staleness is surfaced through Confidence, which grows with how much
// history was observed, independent of TotalScore.
type Score struct {
	ModuleName  string          `json:"module_name"`
	DeveloperID string          `json:"developer_id"`
	TotalScore  float64         `json:"total_score"`
	Level       Level           `json:"level"`
	Factors     FactorBreakdown `json:"factor_breakdown"`
	Confidence  float64         `json:"confidence"`
	LastUpdated time.Time       `json:"last_updated"`
}
