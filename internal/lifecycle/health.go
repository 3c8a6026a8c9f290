package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Proton-105/fitcoach-bot/internal/health"
)

// ErrDraining is reported by Readiness once shutdown has begun.
var ErrDraining = errors.New("service is shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (health.Report, error)
}

// Probes backs /healthz and /readyz. Liveness only proves the process runs;
// readiness consults the dependency checker and flips off while draining.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates a new Probes instance. checker may be nil.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness always reports success while the process can serve requests.
func (p *Probes) Liveness(context.Context) error {
	return nil
}

// Readiness runs the dependency checks.
func (p *Probes) Readiness(ctx context.Context) (health.Report, error) {
	if p.draining.Load() {
		return health.Report{Status: health.StatusDegraded, Components: map[string]string{}}, ErrDraining
	}
	if p.checker == nil {
		return health.Report{Status: health.StatusOK, Components: map[string]string{}}, nil
	}

	report := p.checker.Check(ctx)
	if !report.Healthy() {
		p.log.Debug("readiness probe degraded", slog.Any("components", report.Components))
		return report, errors.New("dependencies degraded")
	}
	return report, nil
}

// MarkDraining makes Readiness fail so load balancers stop routing new turns.
func (p *Probes) MarkDraining() {
	p.draining.Store(true)
}
