package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks(purgeCron string, retention time.Duration) error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC}),
		log:            log,
	}
}

func (s *scheduler) RegisterTasks(purgeCron string, retention time.Duration) error {
	task, err := NewHandoffPurgeTask(retention)
	if err != nil {
		return err
	}

	entryID, err := s.asynqScheduler.Register(purgeCron, task)
	if err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered handoff purge task",
		slog.String("cron", purgeCron),
		slog.String("entry_id", entryID),
		slog.Duration("retention", retention),
	)

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
