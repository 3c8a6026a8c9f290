package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/fitcoach-bot/internal/handoff"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		m.log.ErrorContext(ctx, "jobs: enqueue failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		return nil, err
	}

	m.log.DebugContext(ctx, "jobs: task enqueued", slog.String("task_type", task.Type()), slog.String("task_id", info.ID))
	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}

// QueueRecorder records handoff requests by enqueueing them. When the queue
// is unavailable the request goes straight to fallback.
type QueueRecorder struct {
	manager  Manager
	fallback handoff.Recorder
	log      *slog.Logger
}

var _ handoff.Recorder = (*QueueRecorder)(nil)

func NewQueueRecorder(manager Manager, fallback handoff.Recorder, log *slog.Logger) *QueueRecorder {
	if log == nil {
		log = slog.Default()
	}

	return &QueueRecorder{
		manager:  manager,
		fallback: fallback,
		log:      log,
	}
}

func (r *QueueRecorder) Record(ctx context.Context, req handoff.Request) error {
	task, err := NewHandoffRecordTask(req)
	if err != nil {
		return err
	}

	if _, err := r.manager.Enqueue(ctx, task); err != nil {
		if r.fallback == nil {
			return err
		}
		r.log.WarnContext(ctx, "jobs: recording handoff synchronously", slog.Any("error", err))
		return r.fallback.Record(ctx, req)
	}

	return nil
}
