package ratelimit

import (
	"context"
	"log/slog"
)

// Guard applies the global and per-client rules in order. Backend failures
// fail open so a Redis outage never blocks a conversation.
type Guard struct {
	limiter Limiter
	rules   *Rules
	log     *slog.Logger
}

// NewGuard binds a limiter to the configured rules.
func NewGuard(limiter Limiter, rules *Rules, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}

	return &Guard{limiter: limiter, rules: rules, log: log}
}

// Allow returns ErrLimitExceeded when the client must wait, nil otherwise.
// clientID is used for whitelisting and may be zero for anonymous HTTP callers.
func (g *Guard) Allow(ctx context.Context, clientKey string, clientID int64) error {
	if g == nil || g.limiter == nil || g.rules == nil {
		return nil
	}
	if g.rules.IsWhitelisted(clientID) {
		return nil
	}

	global, err := g.rules.Global()
	if err != nil {
		g.log.Error("invalid global rate limit rule", slog.Any("error", err))
	} else if err := g.check(ctx, "global", global); err != nil {
		return err
	}

	perClient, err := g.rules.PerClient()
	if err != nil {
		g.log.Error("invalid per-client rate limit rule", slog.Any("error", err))
		return nil
	}

	return g.check(ctx, "client:"+clientKey, perClient)
}

func (g *Guard) check(ctx context.Context, key string, rule Rule) error {
	if !rule.Enabled() {
		return nil
	}

	result, err := g.limiter.Check(ctx, key, rule)
	if err != nil {
		g.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	if !result.Allowed {
		g.log.Warn("rate limit exceeded", slog.String("key", key))
		return ErrLimitExceeded
	}

	return nil
}
