// Package sink defines where normalized notification events go after
// dispatch. Actual channel delivery (IRC and friends) lives behind this
// boundary.
package sink

import (
	"context"
	"log/slog"

	"github.com/notifico/notifico/internal/message"
)

// Sink accepts normalized events for downstream delivery. Deliver is
// fire-and-forget from the dispatcher's point of view; implementations own
// their failures.
type Sink interface {
	Deliver(ctx context.Context, event *message.Event)
}

type discardSink struct{}

func (discardSink) Deliver(context.Context, *message.Event) {}

// Discard returns a sink that drops every event.
func Discard() Sink {
	return discardSink{}
}

// LogSink writes every event to the structured log. It is the default sink
// for local development.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink builds a log-backed sink.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

// Deliver logs the event.
func (s *LogSink) Deliver(ctx context.Context, event *message.Event) {
	s.log.InfoContext(ctx, "notification",
		"service", event.Service,
		"project_id", event.ProjectID,
		"hook_id", event.HookID,
		"text", event.Text,
	)
}
