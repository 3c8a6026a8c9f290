// Package lifecycle coordinates readiness probes and graceful shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Shutdown coordinates graceful shutdown hooks in parallel.
type Shutdown struct {
	mu     sync.Mutex
	hooks  []Hook
	probes *Probes
	log    *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator. probes may be nil.
func NewShutdown(probes *Probes, log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{probes: probes, log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	s.RegisterWithTimeout(name, 0, fn)
}

// RegisterWithTimeout adds a hook bounded by its own timeout.
func (s *Shutdown) RegisterWithTimeout(name string, timeout time.Duration, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn, Timeout: timeout})
}

// Execute marks the service as draining, runs all registered hooks
// concurrently and waits for completion.
func (s *Shutdown) Execute(ctx context.Context) error {
	if s.probes != nil {
		s.probes.MarkDraining()
	}

	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)

	for _, h := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var (
				hookCtx context.Context
				cancel  context.CancelFunc
			)
			if h.Timeout > 0 {
				hookCtx, cancel = context.WithTimeout(ctx, h.Timeout)
			} else {
				hookCtx, cancel = context.WithCancel(ctx)
			}
			defer cancel()

			s.log.Info("running shutdown hook", slog.String("hook", h.Name))

			if err := h.Fn(hookCtx); err != nil {
				s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				errMu.Unlock()
				return
			}

			s.log.Info("shutdown hook completed", slog.String("hook", h.Name))
		}()
	}

	wg.Wait()
	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
