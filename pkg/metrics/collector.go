// Package metrics exposes Prometheus instrumentation for conversation turns,
// flow transitions and stored sessions.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	"github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/session"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_turns_total",
			Help: "Total number of conversation turns labeled by channel and decision branch",
		},
		[]string{"channel", "branch"},
	)
	turnDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitcoach_turn_duration_seconds",
			Help:    "Duration of conversation turns in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)
	flowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_flow_transitions_total",
			Help: "Total number of flow transitions",
		},
		[]string{"from", "to"},
	)
	plansGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_plans_generated_total",
			Help: "Total number of plans generated per flow",
		},
		[]string{"flow"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitcoach_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_bot_updates_total",
			Help: "Total number of Telegram updates by kind and status",
		},
		[]string{"kind", "status"},
	)
	handoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_handoffs_total",
			Help: "Total number of human handoff requests by channel",
		},
		[]string{"channel"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fitcoach_active_sessions",
			Help: "Current number of stored chat sessions",
		},
	)
	sessionsByFlow = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fitcoach_sessions_by_flow",
			Help: "Number of stored chat sessions per active flow",
		},
		[]string{"flow"},
	)
)

var trackedFlows = []conversation.Flow{
	conversation.FlowNone,
	conversation.FlowWeightLoss,
	conversation.FlowWeightGain,
	conversation.FlowWorkouts,
	conversation.FlowDiet,
}

func init() {
	conversation.RegisterTransitionRecorder(RecordFlowTransition)
}

// RecordTurn counts a turn and its duration.
func RecordTurn(channel string, branch conversation.Branch, duration time.Duration) {
	if channel == "" {
		channel = "unknown"
	}
	label := string(branch)
	if label == "" {
		label = "error"
	}

	turnsTotal.WithLabelValues(channel, label).Inc()
	turnDurationSeconds.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordFlowTransition tracks flow changes made by the engine.
func RecordFlowTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	flowTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordPlan counts a generated plan.
func RecordPlan(flow conversation.Flow) {
	plansGeneratedTotal.WithLabelValues(conversation.FlowLabel(flow)).Inc()
}

// RecordHTTPRequest counts an HTTP request. route is the matched pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpdate counts a handled Telegram update.
func RecordUpdate(kind, status string) {
	if kind == "" {
		kind = "unknown"
	}
	botUpdatesTotal.WithLabelValues(kind, status).Inc()
}

// RecordHandoff counts a human handoff request.
func RecordHandoff(channel string) {
	handoffsTotal.WithLabelValues(channel).Inc()
}

// RecordError increments error counters using the AppError code when present.
func RecordError(err error) {
	if err == nil {
		return
	}

	severity := "unknown"
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.Severity != "" {
		severity = string(appErr.Severity)
	}

	errorsTotal.WithLabelValues(errors.CodeOf(err), severity).Inc()
}

// SessionCollector periodically counts stored sessions by flow.
type SessionCollector struct {
	storage  session.Storage
	interval time.Duration
	log      *slog.Logger
}

// NewSessionCollector builds a collector bound to storage.
func NewSessionCollector(storage session.Storage, interval time.Duration, log *slog.Logger) *SessionCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &SessionCollector{storage: storage, interval: interval, log: log}
}

// Run polls the storage until ctx is cancelled.
func (c *SessionCollector) Run(ctx context.Context) {
	if c == nil || c.storage == nil {
		return
	}

	for {
		if err := c.Collect(ctx); err != nil {
			c.log.Warn("session metrics collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

// Collect refreshes the session gauges once.
func (c *SessionCollector) Collect(ctx context.Context) error {
	records, err := c.storage.All(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(records)))

	counts := make(map[string]int, len(trackedFlows))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		counts[conversation.FlowLabel(rec.Session.CurrentFlow)]++
	}

	sessionsByFlow.Reset()
	for _, flow := range trackedFlows {
		label := conversation.FlowLabel(flow)
		sessionsByFlow.WithLabelValues(label).Set(float64(counts[label]))
	}

	return nil
}
