package handoff

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
)

// Service persists handoff requests through the repository, retrying
// transient failures behind a circuit breaker.
type Service struct {
	repo    Repository
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
	now     func() time.Time
}

var _ Recorder = (*Service)(nil)

// NewService constructs a Service. breaker may be nil.
func NewService(repo Repository, breaker *apperrors.CircuitBreaker, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo:    repo,
		breaker: breaker,
		log:     log,
		now:     time.Now,
	}
}

// Record validates and stores req.
func (s *Service) Record(ctx context.Context, req Request) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now().UTC()
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError("invalid handoff request: " + err.Error())
	}

	err := apperrors.WithRetry(ctx, func() error {
		return s.call(func() error {
			return s.repo.Create(ctx, &req)
		})
	})
	if err != nil {
		s.logError("record", req.SessionRef, err)
		return err
	}

	s.log.InfoContext(ctx, "handoff request recorded",
		slog.Int64("id", req.ID),
		slog.String("channel", req.Channel),
		slog.String("flow", req.Flow),
	)
	return nil
}

// Purge deletes requests older than retention and returns how many went.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperrors.NewValidationError("retention must be positive")
	}

	cutoff := s.now().UTC().Add(-retention)

	var removed int64
	err := apperrors.WithRetry(ctx, func() error {
		return s.call(func() error {
			n, err := s.repo.DeleteOlderThan(ctx, cutoff)
			removed = n
			return err
		})
	})
	if err != nil {
		s.logError("purge", "", err)
		return 0, err
	}

	return removed, nil
}

func (s *Service) call(fn func() error) error {
	run := func() error { return classify(fn()) }
	if s.breaker == nil {
		return run()
	}

	err := s.breaker.Call(run)
	if errors.Is(err, apperrors.ErrCircuitOpen) {
		appErr := apperrors.NewExternalAPIError("handoff database", err)
		appErr.Retryable = false
		return appErr
	}
	return err
}

// classify turns driver errors into AppErrors. Data and integrity violations
// are permanent, everything else is worth another attempt.
func classify(err error) error {
	if err == nil {
		return nil
	}

	appErr := apperrors.NewDatabaseError(err)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23", "42":
			appErr.Retryable = false
		}
	}

	return appErr
}

func (s *Service) logError(operation, sessionRef string, err error) {
	s.log.Error("handoff service operation failed",
		slog.String("operation", operation),
		slog.String("session_ref", sessionRef),
		slog.Any("error", err),
	)
}
