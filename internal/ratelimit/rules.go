package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/fitcoach-bot/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// IsWhitelisted returns true if the client bypasses rate limits.
func (r *Rules) IsWhitelisted(clientID int64) bool {
	if r == nil || clientID == 0 {
		return false
	}
	for _, id := range r.config.Whitelist {
		if id == clientID {
			return true
		}
	}
	return false
}

// Global returns the rule shared by every client.
func (r *Rules) Global() (Rule, error) {
	if r == nil {
		return Rule{}, nil
	}
	return parseRule(r.config.Global)
}

// PerClient returns the rule applied to each chat or remote address.
func (r *Rules) PerClient() (Rule, error) {
	if r == nil {
		return Rule{}, nil
	}
	return parseRule(r.config.PerClient)
}

func parseRule(rule config.RateLimitRule) (Rule, error) {
	if rule.Limit == 0 && rule.Window == "" {
		return Rule{}, nil
	}
	if rule.Window == "" {
		return Rule{}, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return Rule{}, fmt.Errorf("parse window %q: %w", rule.Window, err)
	}
	return Rule{Limit: rule.Limit, Window: window}, nil
}
