package handoff

import (
	"context"
	"log/slog"
)

// LogRecorder writes requests to the log. It is used when no database is configured.
type LogRecorder struct {
	log *slog.Logger
}

var _ Recorder = (*LogRecorder)(nil)

func NewLogRecorder(log *slog.Logger) *LogRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Record(ctx context.Context, req Request) error {
	r.log.InfoContext(ctx, "handoff requested",
		slog.String("channel", req.Channel),
		slog.String("session_ref", req.SessionRef),
		slog.String("language", req.Language),
		slog.String("flow", req.Flow),
	)
	return nil
}
