package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateKey(t *testing.T) {
	assert.Equal(t, UpdateKey(1, 10), UpdateKey(1, 10))
	assert.NotEqual(t, UpdateKey(1, 10), UpdateKey(1, 11))
	assert.NotEqual(t, UpdateKey(1, 10), UpdateKey(2, 10))
	assert.Len(t, UpdateKey(1, 10), 64)
}

func TestManager_ExecutesOnce(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(NewRedisStore(client, testLogger()), testLogger())
	ctx := context.Background()
	key := UpdateKey(5, 100)

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, manager.Execute(ctx, key, time.Hour, op))
	assert.ErrorIs(t, manager.Execute(ctx, key, time.Hour, op), ErrDuplicate)
	assert.Equal(t, 1, calls)

	assert.False(t, mr.Exists(lockKey(key)), "lock released after completion")
	assert.True(t, mr.Exists(recordKey(key)))
	assert.Equal(t, time.Hour, mr.TTL(recordKey(key)))
}

func TestManager_FailureAllowsRetry(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(NewRedisStore(client, testLogger()), testLogger())
	ctx := context.Background()
	key := UpdateKey(5, 101)
	boom := errors.New("boom")

	err := manager.Execute(ctx, key, time.Hour, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	calls := 0
	require.NoError(t, manager.Execute(ctx, key, time.Hour, func(context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}

func TestManager_InProgress(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	manager := NewManager(store, testLogger())
	ctx := context.Background()
	key := UpdateKey(5, 102)

	locked, err := store.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	err = manager.Execute(ctx, key, time.Hour, func(context.Context) error {
		t.Fatal("operation must not run while locked")
		return nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestManager_NilOperation(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(NewRedisStore(client, testLogger()), testLogger())

	assert.Error(t, manager.Execute(context.Background(), "k", time.Hour, nil))
}

func TestRedisStore_GetMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())

	record, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestCleaner_Sweep(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(KeyPrefix+"no-ttl", "{}"))
	require.NoError(t, mr.Set(KeyPrefix+"long", "{}"))
	mr.SetTTL(KeyPrefix+"long", 72*time.Hour)
	require.NoError(t, mr.Set(KeyPrefix+"fresh", "{}"))
	mr.SetTTL(KeyPrefix+"fresh", time.Hour)
	require.NoError(t, mr.Set("other:no-ttl", "x"))

	cleaner := NewCleaner(client, testLogger(), time.Minute, 25*time.Hour)

	assert.Equal(t, 2, cleaner.Sweep(ctx))
	assert.False(t, mr.Exists(KeyPrefix+"no-ttl"))
	assert.False(t, mr.Exists(KeyPrefix+"long"))
	assert.True(t, mr.Exists(KeyPrefix+"fresh"))
	assert.True(t, mr.Exists("other:no-ttl"))
}
