package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a security-relevant action.
type EventType string

const (
	EventModuleAdmitted    EventType = "module_admitted"
	EventModuleDenied      EventType = "module_denied"
	EventSignatureVerified EventType = "signature_verified"
	EventSignatureRejected EventType = "signature_rejected"
	EventModuleScanned     EventType = "module_scanned"
	EventPermissionCheck   EventType = "permission_check"
	EventPermissionDenied  EventType = "permission_denied"
	EventRoleAssigned      EventType = "role_assigned"
	EventRoleRemoved       EventType = "role_removed"
	EventRoleDeleted       EventType = "role_deleted"
	EventSandboxCreated    EventType = "sandbox_created"
	EventSandboxDestroyed  EventType = "sandbox_destroyed"
	EventSandboxViolation  EventType = "sandbox_violation"
	EventAnomalyDetected   EventType = "anomaly_detected"
	EventConfigChanged     EventType = "config_changed"
	EventModuleBlocked     EventType = "module_blocked"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event is one append-only audit record. The JSON field names are the wire
// contract of the JSONL sink; external log shippers parse them, so they must
// not change.
type Event struct {
	ID           uuid.UUID      `json:"id"`
	Type         EventType      `json:"type"`
	ModuleName   string         `json:"module_name,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Severity     Severity       `json:"severity"`
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}
