// Package jobs runs background work on asynq: asynchronous handoff recording
// and the periodic purge of old handoff requests.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/fitcoach-bot/internal/handoff"
)

const (
	TaskTypeHandoffRecord = "handoff:record"
	TaskTypeHandoffPurge  = "handoff:purge"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues weights the queues served by the worker.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// HandoffPurgePayload carries the retention window for a purge run.
type HandoffPurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewHandoffRecordTask wraps req for the worker.
func NewHandoffRecordTask(req handoff.Request) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeHandoffRecord, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(10)), nil
}

// NewHandoffPurgeTask deletes requests older than retention.
func NewHandoffPurgeTask(retention time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(HandoffPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeHandoffPurge, payload, asynq.Queue(QueueLow), asynq.MaxRetry(3)), nil
}
