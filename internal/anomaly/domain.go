package anomaly

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType labels what a module just did on behalf of a user.
type ActivityType string

const (
	ActivityCommand  ActivityType = "command"
	ActivityFileOp   ActivityType = "file_op"
	ActivityNetOp    ActivityType = "network_op"
	ActivityDBOp     ActivityType = "db_op"
	ActivityCacheOp  ActivityType = "cache_op"
	ActivityCallback ActivityType = "callback"
)

// Type categorises a detector finding.
type Type string

const (
	TypeFrequentCommands Type = "frequent_commands"
	TypeSuspiciousHours  Type = "suspicious_hours"
	TypeUnusualPattern   Type = "unusual_pattern"
	TypeResourceAbuse    Type = "resource_abuse"
)

// Severity grades a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Detection is an append-only detector finding. It is never mutated after
// creation.
type Detection struct {
	ID          uuid.UUID      `json:"id"`
	Type        Type           `json:"type"`
	Severity    Severity       `json:"severity"`
	ModuleName  string         `json:"module_name"`
	UserID      string         `json:"user_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	Evidence    map[string]any `json:"evidence"`
	Confidence  float64        `json:"confidence"`
	AutoBlocked bool           `json:"auto_blocked"`
}

// Thresholds are detector tuning knobs. They are deployment defaults to be
// tuned, not invariants.
type Thresholds struct {
	// CommandsPerWindow caps same-key commands inside Window.
	CommandsPerWindow int
	// Per-resource operation caps inside Window.
	FileOpsPerWindow int
	NetOpsPerWindow  int
	DBOpsPerWindow   int
	// Window is the burst-counting span.
	Window time.Duration
	// SuspiciousHours lists UTC hours considered unusual for activity.
	SuspiciousHours []int
	// RarityShare flags an activity type whose share of the recent mix is
	// below this fraction, once MinSample records exist.
	RarityShare float64
	MinSample   int
	// HistorySpan and MaxRecords bound each sliding window.
	HistorySpan time.Duration
	MaxRecords  int
	// EscalateFactor promotes a finding to critical when the observed count
	// reaches this multiple of its threshold.
	EscalateFactor float64
}

// DefaultThresholds returns the standard tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CommandsPerWindow: 30,
		FileOpsPerWindow:  20,
		NetOpsPerWindow:   25,
		DBOpsPerWindow:    40,
		Window:            time.Minute,
		SuspiciousHours:   []int{2, 3, 4, 5},
		RarityShare:       0.05,
		MinSample:         20,
		HistorySpan:       24 * time.Hour,
		MaxRecords:        2048,
		EscalateFactor:    2.0,
	}
}
