package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPattern = "fitcoach:session:%d"
	sessionScanMatch  = "fitcoach:session:*"
	scanBatchCount    = 100
)

// RedisStorage persists chat sessions in Redis as JSON.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisStorage initializes a Redis-backed Storage. A zero ttl keeps records forever.
func NewRedisStorage(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

// Get returns the stored record or ErrNotFound when absent.
func (s *RedisStorage) Get(ctx context.Context, chatID int64) (*Record, error) {
	data, err := s.client.Get(ctx, redisSessionKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		s.log.Error("failed to get session from redis", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Error("failed to decode session", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil, err
	}

	return &rec, nil
}

// Set saves rec with the configured TTL.
func (s *RedisStorage) Set(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("session: nil record")
	}

	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		s.log.Error("failed to encode session", slog.Int64("chat_id", rec.ChatID), slog.Any("error", err))
		return err
	}

	if err := s.client.Set(ctx, redisSessionKey(rec.ChatID), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save session in redis", slog.Int64("chat_id", rec.ChatID), slog.Any("error", err))
		return err
	}

	return nil
}

// Clear removes the stored record for chatID.
func (s *RedisStorage) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, redisSessionKey(chatID)).Err(); err != nil {
		s.log.Error("failed to clear session", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return err
	}

	return nil
}

// All retrieves every stored record by scanning Redis keys.
func (s *RedisStorage) All(ctx context.Context) ([]*Record, error) {
	var (
		cursor uint64
		result []*Record
	)

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, sessionScanMatch, scanBatchCount).Result()
		if err != nil {
			s.log.Error("failed to scan sessions", slog.Any("error", err))
			return nil, err
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}

				s.log.Error("failed to fetch session", slog.String("key", key), slog.Any("error", err))
				return nil, err
			}

			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				s.log.Warn("skipping undecodable session", slog.String("key", key), slog.Any("error", err))
				continue
			}

			result = append(result, &rec)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func redisSessionKey(chatID int64) string {
	return fmt.Sprintf(sessionKeyPattern, chatID)
}
