// Package services defines the contract third-party integrations implement
// and the registry the dispatcher resolves them from.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/notifico/notifico/internal/message"
)

// ErrMalformedPayload marks a provider payload that could not be parsed.
// Receivers wrap it so the dispatcher can log the outcome without repelling
// the sender with an error response.
var ErrMalformedPayload = errors.New("malformed payload")

// MalformedPayload wraps err as a malformed-payload outcome.
func MalformedPayload(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
}

// Request is the provider-facing view of one inbound hook delivery. The body
// is fully read before dispatch so receivers can parse it repeatedly.
type Request struct {
	Method string
	Header http.Header
	Query  url.Values
	Body   []byte
}

// HookInfo is the hook record as seen by an integration: identity plus the
// opaque configuration blob the integration packed at creation time.
type HookInfo struct {
	ID        int64
	ProjectID int64
	Key       string
	ServiceID int
	Config    []byte
}

// Service is the metadata and configuration contract every registered
// integration satisfies. Implementations are immutable after registration
// and shared by all requests.
type Service interface {
	// ID is the stable numeric identity stored on hook records. Unique
	// across all registered services.
	ID() int
	Name() string
	Slug() string
	Description() string

	// ConfigSchema enumerates the fields a hook's configuration form offers.
	ConfigSchema() Schema
	// PackConfig and UnpackConfig round-trip a configuration form's values
	// through the opaque blob stored on the hook.
	PackConfig(values map[string]any) ([]byte, error)
	UnpackConfig(blob []byte) (map[string]any, error)
}

// HookReceiver is the capability of accepting inbound hook deliveries.
//
// A (nil, nil) return means the payload was deliberately ignored, e.g. a
// provider ping. A returned error means the payload did not parse; the
// dispatcher absorbs it and still acknowledges the sender. Implementations
// must honor ctx, which carries the per-dispatch deadline.
type HookReceiver interface {
	Service
	HandleRequest(ctx context.Context, hook HookInfo, req *Request) (*message.Event, error)
}

// EndpointAdvertiser is implemented by services whose webhook URL has to be
// registered with the third party out-of-band and differs from the generic
// receive endpoint.
type EndpointAdvertiser interface {
	EndpointURL(publicURL string, hook HookInfo) string
}

// URLShortener is the capability of shortening URLs for outgoing messages.
type URLShortener interface {
	Service
	// CanShorten is a cheap, pure eligibility check run before any network
	// I/O is attempted.
	CanShorten(raw string) bool
	// ShortenURL shortens raw on a best-effort basis. On timeout, transport
	// failure or a non-success response it returns raw unchanged.
	ShortenURL(ctx context.Context, raw string) string
}

// Base carries service metadata and schema-driven config handling for
// embedding by concrete integrations.
type Base struct {
	ServiceID   int
	ServiceName string
	ServiceSlug string
	ServiceDesc string
	Schema      Schema
}

func (b Base) ID() int              { return b.ServiceID }
func (b Base) Name() string         { return b.ServiceName }
func (b Base) Slug() string         { return b.ServiceSlug }
func (b Base) Description() string  { return b.ServiceDesc }
func (b Base) ConfigSchema() Schema { return b.Schema }

func (b Base) PackConfig(values map[string]any) ([]byte, error) {
	return b.Schema.Pack(values)
}

func (b Base) UnpackConfig(blob []byte) (map[string]any, error) {
	return b.Schema.Unpack(blob)
}
