package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/notifico/notifico/internal/message"
)

// EventType is the CloudEvents type emitted for every normalized message.
const EventType = "io.notifico.message.v1"

// CloudEventsSink forwards normalized events as CloudEvents over HTTP to a
// downstream delivery service.
type CloudEventsSink struct {
	client cloudevents.Client
	target string
	log    *slog.Logger
}

// NewCloudEventsSink builds a sink posting to target.
func NewCloudEventsSink(target string, log *slog.Logger) (*CloudEventsSink, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("create cloudevents client: %w", err)
	}
	return &CloudEventsSink{client: client, target: target, log: log}, nil
}

// Deliver sends the event downstream. Failures are logged and dropped; the
// message counters already reflect receipt.
func (s *CloudEventsSink) Deliver(ctx context.Context, event *message.Event) {
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.NewString())
	ce.SetType(EventType)
	ce.SetSource(fmt.Sprintf("notifico/project/%d/hook/%d", event.ProjectID, event.HookID))
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	ce.SetTime(occurred)
	if err := ce.SetData(cloudevents.ApplicationJSON, event); err != nil {
		s.log.ErrorContext(ctx, "encode notification event", "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(cloudevents.ContextWithTarget(ctx, s.target), 10*time.Second)
	defer cancel()

	if result := s.client.Send(sendCtx, ce); cloudevents.IsUndelivered(result) {
		s.log.ErrorContext(ctx, "notification delivery failed", "target", s.target, "error", result)
	}
}
