// Package handlers processes asynq tasks.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/handoff"
	"github.com/Proton-105/fitcoach-bot/internal/jobs"
)

// Purger deletes old handoff requests.
type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// HandoffRecordHandler persists queued handoff requests.
type HandoffRecordHandler struct {
	recorder handoff.Recorder
	log      *slog.Logger
}

func NewHandoffRecordHandler(recorder handoff.Recorder, log *slog.Logger) *HandoffRecordHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HandoffRecordHandler{recorder: recorder, log: log}
}

func (h *HandoffRecordHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var req handoff.Request
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		h.log.ErrorContext(ctx, "handoff record: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.recorder.Record(ctx, req); err != nil {
		return skipIfPermanent(err)
	}

	return nil
}

// HandoffPurgeHandler runs the scheduled retention purge.
type HandoffPurgeHandler struct {
	purger Purger
	log    *slog.Logger
}

func NewHandoffPurgeHandler(purger Purger, log *slog.Logger) *HandoffPurgeHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HandoffPurgeHandler{purger: purger, log: log}
}

func (h *HandoffPurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.HandoffPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "handoff purge: failed to decode payload", slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	removed, err := h.purger.Purge(ctx, payload.Retention)
	if err != nil {
		return skipIfPermanent(err)
	}

	h.log.InfoContext(ctx, "handoff requests purged",
		slog.Int64("removed", removed),
		slog.Duration("retention", payload.Retention),
	)
	return nil
}

func skipIfPermanent(err error) error {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) && !appErr.Retryable {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
