package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes audit events past the retention horizon.
	TaskAuditRetention = "audit:retention"
	// TaskAnomalyRetention prunes anomaly windows and the detection log.
	TaskAnomalyRetention = "anomaly:retention"
	// TaskReputationRefresh recomputes stored reputation scores.
	TaskReputationRefresh = "reputation:refresh"
)

// AuditRetentionPayload tunes the audit retention job.
type AuditRetentionPayload struct {
	Days int `json:"days"`
}

// NewAuditRetentionTask constructs an audit retention task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// AnomalyRetentionPayload tunes the anomaly retention job.
type AnomalyRetentionPayload struct {
	Days int `json:"days"`
}

// NewAnomalyRetentionTask constructs an anomaly retention task.
func NewAnomalyRetentionTask(payload AnomalyRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnomalyRetention, data), nil
}

// ReputationRefreshPayload tunes the reputation refresh job. An empty module
// list refreshes every stored score.
type ReputationRefreshPayload struct {
	Modules []string `json:"modules,omitempty"`
}

// NewReputationRefreshTask constructs a reputation refresh task.
func NewReputationRefreshTask(payload ReputationRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReputationRefresh, data), nil
}
