// Package plain implements the generic JSON webhook receiver for senders
// without a dedicated integration.
package plain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notifico/notifico/internal/message"
	"github.com/notifico/notifico/internal/services"
)

// ServiceID is the registry id of the plain webhook receiver.
const ServiceID = 30

// Service accepts `{"message": "..."}` payloads and forwards them verbatim.
type Service struct {
	services.Base
}

type payload struct {
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail"`
}

// NewService builds the plain webhook receiver.
func NewService() *Service {
	return &Service{
		Base: services.Base{
			ServiceID:   ServiceID,
			ServiceName: "Plain webhook",
			ServiceSlug: "plain",
			ServiceDesc: "Accepts generic JSON payloads with a message field.",
			Schema: services.Schema{
				{Name: "prefix", Type: services.FieldString, Help: "Optional text prepended to every message."},
			},
		},
	}
}

// HandleRequest decodes the JSON payload and builds a notification event.
func (s *Service) HandleRequest(_ context.Context, hook services.HookInfo, req *services.Request) (*message.Event, error) {
	var body payload
	decoder := json.NewDecoder(bytes.NewReader(req.Body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		return nil, services.MalformedPayload(err)
	}
	body.Message = strings.TrimSpace(body.Message)
	if body.Message == "" {
		return nil, services.MalformedPayload(fmt.Errorf("message field is required"))
	}

	cfg, err := s.UnpackConfig(hook.Config)
	if err != nil {
		return nil, services.MalformedPayload(err)
	}
	if prefix, _ := cfg["prefix"].(string); prefix != "" {
		body.Message = prefix + " " + body.Message
	}

	evt := message.New(s.Slug(), body.Message)
	for key, value := range body.Detail {
		evt.WithDetail(key, value)
	}
	return evt, nil
}
