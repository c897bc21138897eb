// Package message defines the provider-agnostic event produced by hook
// integrations and consumed by the notification sink.
package message

import (
	"strings"
	"time"
)

// Event is one normalized notification message. Integrations build it from a
// provider payload; the dispatcher forwards it downstream after the message
// counters commit.
type Event struct {
	// Service is the slug of the integration that produced the event.
	Service string `json:"service"`
	// ProjectID and HookID identify the hook the payload arrived on.
	ProjectID int64 `json:"project_id"`
	HookID    int64 `json:"hook_id"`
	// Text is the rendered, human-readable message body.
	Text string `json:"text"`
	// Detail carries structured provider fields the sink may use for
	// formatting (branch, author, URL and similar).
	Detail map[string]string `json:"detail,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event for a service slug with the current timestamp.
func New(service, text string) *Event {
	return &Event{
		Service:    strings.TrimSpace(service),
		Text:       strings.TrimSpace(text),
		OccurredAt: time.Now().UTC(),
	}
}

// WithDetail sets a single detail field, dropping empty values.
func (e *Event) WithDetail(key, value string) *Event {
	value = strings.TrimSpace(value)
	if value == "" {
		return e
	}
	if e.Detail == nil {
		e.Detail = make(map[string]string)
	}
	e.Detail[key] = value
	return e
}
