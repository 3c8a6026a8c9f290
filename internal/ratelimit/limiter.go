// Package ratelimit throttles chat turns per client with Redis or in-memory sliding windows.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// KeyPrefix namespaces every Redis key written by the limiter.
const KeyPrefix = "fitcoach:ratelimit:"

// Rule is a limit of Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule should be enforced at all.
func (r Rule) Enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter evaluates a sliding-window rule for a key. A rejected request is
// reported through Result.Allowed, errors are reserved for backend failures.
type Limiter interface {
	Check(ctx context.Context, key string, rule Rule) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")
