package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/breadline/backoffice/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSalesWarmup pre-computes sales reports for recent days.
	TaskSalesWarmup = "sales:warmup"
	// TaskReceiptCachePurge drops per-day receipt cache entries past their max age.
	TaskReceiptCachePurge = "receipts:purge"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SalesWarmupPayload selects what the warm-up job loads.
type SalesWarmupPayload struct {
	// Days counts back from today, today included. Zero means 2.
	Days  int    `json:"days"`
	Point string `json:"point,omitempty"`
}

// ReceiptPurgePayload is empty for now; the max age comes from the day cache.
type ReceiptPurgePayload struct{}

// NewSalesWarmupTask constructs an Asynq task.
func NewSalesWarmupTask(payload SalesWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSalesWarmup, data), nil
}

// NewReceiptPurgeTask constructs an Asynq task.
func NewReceiptPurgeTask() (*asynq.Task, error) {
	data, err := json.Marshal(ReceiptPurgePayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptCachePurge, data), nil
}
