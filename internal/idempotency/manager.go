// Package idempotency makes Telegram update handling execute at most once.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress is returned when another worker holds the key.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

// ErrDuplicate is returned when the key has already completed.
var ErrDuplicate = errors.New("request with this key was already processed")

// DefaultLockTTL bounds how long a crashed worker can block a key.
const DefaultLockTTL = time.Minute

// Operation is the guarded unit of work.
type Operation func(ctx context.Context) error

// Manager runs operations at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) error
}

type manager struct {
	store   Store
	log     *slog.Logger
	lockTTL time.Duration
	now     func() time.Time
}

// NewManager wraps store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		log:     log,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
	}
}

// Execute runs fn unless key is locked or completed. A failed fn releases the
// lock without recording completion so redelivery is processed again.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) error {
	if fn == nil {
		return errors.New("operation fn cannot be nil")
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return err
	}

	if !locked {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return err
		}
		if record != nil && record.Status == StatusCompleted {
			return ErrDuplicate
		}
		return ErrRequestInProgress
	}

	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("idempotency lock not released", slog.String("key", key), slog.Any("error", err))
		}
	}()

	record, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if record != nil && record.Status == StatusCompleted {
		return ErrDuplicate
	}

	if err := fn(ctx); err != nil {
		return err
	}

	return m.store.Set(ctx, key, &Record{Status: StatusCompleted, CompletedAt: m.now().UTC()}, ttl)
}
