package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerPendingScan sweeps documents still missing a ledger entry.
	TaskLedgerPendingScan = "ledger:pending_scan"
)

// PendingScanPayload scopes a pending sweep. An empty CompanyID sweeps every
// company with pending documents.
type PendingScanPayload struct {
	CompanyID string `json:"company_id"`
	Limit     int    `json:"limit"`
}

// NewPendingScanTask constructs an Asynq task.
func NewPendingScanTask(payload PendingScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerPendingScan, data), nil
}
