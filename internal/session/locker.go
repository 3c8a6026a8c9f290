package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	chatLockKeyPattern = "fitcoach:lock:%d"
	lockTTL            = 5 * time.Second
)

// ErrLocked indicates that another turn for the same chat is in progress.
var ErrLocked = errors.New("session is locked, try again later")

// Locker serializes turns of a single chat.
type Locker interface {
	Lock(ctx context.Context, chatID int64) error
	Unlock(ctx context.Context, chatID int64)
}

// RedisLocker holds a short-lived SETNX key per chat so several bot replicas
// never process the same chat concurrently.
type RedisLocker struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisLocker(client *redis.Client, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisLocker{client: client, log: log}
}

func (l *RedisLocker) Lock(ctx context.Context, chatID int64) error {
	acquired, err := l.client.SetNX(ctx, fmt.Sprintf(chatLockKeyPattern, chatID), 1, lockTTL).Result()
	if err != nil {
		l.log.Error("failed to acquire chat lock", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return err
	}

	if !acquired {
		l.log.Warn("chat lock already held", slog.Int64("chat_id", chatID))
		return ErrLocked
	}

	return nil
}

func (l *RedisLocker) Unlock(ctx context.Context, chatID int64) {
	if err := l.client.Del(ctx, fmt.Sprintf(chatLockKeyPattern, chatID)).Err(); err != nil {
		l.log.Error("failed to release chat lock", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

// LocalLocker is the single-process fallback used without Redis.
type LocalLocker struct {
	mu     sync.Mutex
	locked map[int64]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locked: make(map[int64]struct{})}
}

func (l *LocalLocker) Lock(_ context.Context, chatID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.locked[chatID]; ok {
		return ErrLocked
	}
	l.locked[chatID] = struct{}{}
	return nil
}

func (l *LocalLocker) Unlock(_ context.Context, chatID int64) {
	l.mu.Lock()
	delete(l.locked, chatID)
	l.mu.Unlock()
}
