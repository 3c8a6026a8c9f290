package ratelimit

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

	"github.com/Proton-105/fitcoach-bot/pkg/config"
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

type clock struct{ now time.Time }

func newClock() *clock { return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, Rule) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestLimiters_SlidingWindow(t *testing.T) {
	backends := map[string]func(t *testing.T, clk *clock) Limiter{
		"redis": func(t *testing.T, clk *clock) Limiter {
			client, _ := setupTestRedis(t)
			l := NewRedisLimiter(client, testLogger())
			l.now = clk.Now
			return l
		},
		"memory": func(t *testing.T, clk *clock) Limiter {
			l := NewMemoryLimiter(testLogger())
			l.now = clk.Now
			return l
		},
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			clk := newClock()
			limiter := build(t, clk)
			ctx := context.Background()
			rule := Rule{Limit: 2, Window: time.Minute}

			first, err := limiter.Check(ctx, "chat:1", rule)
			require.NoError(t, err)
			assert.True(t, first.Allowed)
			assert.Equal(t, 1, first.Remaining)

			clk.Advance(10 * time.Second)
			second, err := limiter.Check(ctx, "chat:1", rule)
			require.NoError(t, err)
			assert.True(t, second.Allowed)
			assert.Equal(t, 0, second.Remaining)

			third, err := limiter.Check(ctx, "chat:1", rule)
			require.NoError(t, err)
			assert.False(t, third.Allowed)

			other, err := limiter.Check(ctx, "chat:2", rule)
			require.NoError(t, err)
			assert.True(t, other.Allowed, "keys are independent")

			clk.Advance(55 * time.Second)
			fourth, err := limiter.Check(ctx, "chat:1", rule)
			require.NoError(t, err)
			assert.True(t, fourth.Allowed, "first request left the window")

			fifth, err := limiter.Check(ctx, "chat:1", rule)
			require.NoError(t, err)
			assert.False(t, fifth.Allowed, "rejected attempts are not counted")
		})
	}
}

func TestRedisLimiter_ZeroLimitRejects(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())

	result, err := limiter.Check(context.Background(), "chat:1", Rule{Limit: 0, Window: time.Minute})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.False(t, mr.Exists(KeyPrefix+"chat:1"))
}

func TestAdaptiveLimiter_FallsBackWithHalfLimit(t *testing.T) {
	memory := NewMemoryLimiter(testLogger())
	limiter := NewAdaptiveLimiter(failingLimiter{}, memory, testLogger())
	ctx := context.Background()
	rule := Rule{Limit: 4, Window: time.Minute}

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "chat:1", rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "chat:1", rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestAdaptiveLimiter_UsesPrimary(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewAdaptiveLimiter(NewRedisLimiter(client, testLogger()), NewMemoryLimiter(testLogger()), testLogger())

	result, err := limiter.Check(context.Background(), "chat:7", Rule{Limit: 1, Window: time.Minute})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, mr.Exists(KeyPrefix+"chat:7"))
}

func TestRules(t *testing.T) {
	testCases := []struct {
		name    string
		rule    config.RateLimitRule
		want    Rule
		wantErr bool
	}{
		{name: "unset", rule: config.RateLimitRule{}, want: Rule{}},
		{name: "valid", rule: config.RateLimitRule{Limit: 30, Window: "1m"}, want: Rule{Limit: 30, Window: time.Minute}},
		{name: "missing window", rule: config.RateLimitRule{Limit: 5}, wantErr: true},
		{name: "bad window", rule: config.RateLimitRule{Limit: 5, Window: "soon"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rules := NewRules(config.RateLimitConfig{PerClient: tc.rule})
			got, err := rules.PerClient()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	rules := NewRules(config.RateLimitConfig{Whitelist: []int64{42}})
	assert.True(t, rules.IsWhitelisted(42))
	assert.False(t, rules.IsWhitelisted(7))
	assert.False(t, rules.IsWhitelisted(0))
}

func TestGuard_Allow(t *testing.T) {
	cfg := config.RateLimitConfig{
		Global:    config.RateLimitRule{Limit: 3, Window: "1m"},
		PerClient: config.RateLimitRule{Limit: 1, Window: "1m"},
		Whitelist: []int64{99},
	}
	guard := NewGuard(NewMemoryLimiter(testLogger()), NewRules(cfg), testLogger())
	ctx := context.Background()

	assert.NoError(t, guard.Allow(ctx, "1", 1))
	assert.ErrorIs(t, guard.Allow(ctx, "1", 1), ErrLimitExceeded, "per-client limit")
	assert.NoError(t, guard.Allow(ctx, "2", 2))

	for i := 0; i < 3; i++ {
		assert.NoError(t, guard.Allow(ctx, "99", 99), "whitelisted clients skip every rule")
	}

	assert.ErrorIs(t, guard.Allow(ctx, "3", 3), ErrLimitExceeded, "global limit counts the rejected per-client call")
}

func TestGuard_FailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{PerClient: config.RateLimitRule{Limit: 1, Window: "1m"}}

	guard := NewGuard(failingLimiter{}, NewRules(cfg), testLogger())
	assert.NoError(t, guard.Allow(context.Background(), "1", 1))
	assert.NoError(t, guard.Allow(context.Background(), "1", 1))

	var nilGuard *Guard
	assert.NoError(t, nilGuard.Allow(context.Background(), "1", 1))
}

func TestCleaner_Sweep(t *testing.T) {
	client, mr := setupTestRedis(t)
	clk := newClock()

	redisLimiter := NewRedisLimiter(client, testLogger())
	redisLimiter.now = clk.Now
	memory := NewMemoryLimiter(testLogger())
	memory.now = clk.Now

	ctx := context.Background()
	rule := Rule{Limit: 5, Window: time.Minute}
	for _, l := range []Limiter{redisLimiter, memory} {
		_, err := l.Check(ctx, "stale", rule)
		require.NoError(t, err)
	}

	clk.Advance(10 * time.Minute)
	_, err := redisLimiter.Check(ctx, "fresh", rule)
	require.NoError(t, err)

	cleaner := NewCleaner(client, memory, testLogger(), time.Minute, 5*time.Minute)
	cleaner.now = clk.Now

	assert.Equal(t, 2, cleaner.Sweep(ctx))
	assert.False(t, mr.Exists(KeyPrefix+"stale"))
	assert.True(t, mr.Exists(KeyPrefix+"fresh"))
}

func TestCleaner_RunStopsOnCancel(t *testing.T) {
	cleaner := NewCleaner(nil, NewMemoryLimiter(testLogger()), testLogger(), 5*time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cleaner.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}
