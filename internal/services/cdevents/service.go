// Package cdevents implements a hook receiver for CDEvents deliveries, so
// CI/CD pipelines can announce themselves without a bespoke integration.
package cdevents

import (
	"context"
	"fmt"

	cdeventsapi "github.com/cdevents/sdk-go/pkg/api"
	cdeventsv05 "github.com/cdevents/sdk-go/pkg/api/v05"

	"github.com/notifico/notifico/internal/message"
	"github.com/notifico/notifico/internal/services"
)

// ServiceID is the registry id of the CDEvents receiver.
const ServiceID = 40

// Service normalizes CDEvents v0.5 deliveries into notification events.
type Service struct {
	services.Base
}

// NewService builds the CDEvents receiver.
func NewService() *Service {
	return &Service{
		Base: services.Base{
			ServiceID:   ServiceID,
			ServiceName: "CDEvents",
			ServiceSlug: "cdevents",
			ServiceDesc: "Receives CDEvents deliveries from CI/CD pipelines.",
		},
	}
}

// HandleRequest parses the CDEvent and renders a one-line summary of it.
func (s *Service) HandleRequest(_ context.Context, hook services.HookInfo, req *services.Request) (*message.Event, error) {
	event, err := cdeventsv05.NewFromJsonBytes(req.Body)
	if err != nil {
		return nil, services.MalformedPayload(err)
	}
	if err := cdeventsapi.Validate(event); err != nil {
		return nil, services.MalformedPayload(err)
	}

	eventType := event.GetType()
	text := fmt.Sprintf("%s.%s %s for %s", eventType.Subject, eventType.Predicate, eventType.Version, event.GetSubjectId())
	return message.New(s.Slug(), text).
		WithDetail("type", eventType.String()).
		WithDetail("source", event.GetSource()).
		WithDetail("subject", event.GetSubjectId()), nil
}
