package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateServiceID marks a registration conflict. The caller must treat
// it as fatal; serving traffic with an inconsistent registry silently routes
// hooks to the wrong integration.
var ErrDuplicateServiceID = errors.New("duplicate service id")

// Registry maps numeric service ids to registered integrations. It is
// populated once during process initialization, before any traffic is
// accepted, and is read-only afterwards, so lookups take no lock.
type Registry struct {
	services map[int]Service
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[int]Service)}
}

// Register adds a service. Registering two services with the same id fails
// with ErrDuplicateServiceID instead of overwriting.
func (r *Registry) Register(s Service) error {
	if existing, ok := r.services[s.ID()]; ok {
		return fmt.Errorf("%w: %d already registered by %q, refused %q",
			ErrDuplicateServiceID, s.ID(), existing.Slug(), s.Slug())
	}
	r.services[s.ID()] = s
	return nil
}

// Lookup returns the service registered under id.
func (r *Registry) Lookup(id int) (Service, bool) {
	s, ok := r.services[id]
	return s, ok
}

// All returns every registered service ordered by id, for presenting the
// integration catalog.
func (r *Registry) All() []Service {
	out := make([]Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ShortenURL runs raw through the first registered shortener that accepts
// it. Shortening is strictly best-effort: with no eligible shortener, or on
// any downstream failure, the input comes back unchanged.
func (r *Registry) ShortenURL(ctx context.Context, raw string) string {
	for _, s := range r.All() {
		shortener, ok := s.(URLShortener)
		if !ok || !shortener.CanShorten(raw) {
			continue
		}
		return shortener.ShortenURL(ctx, raw)
	}
	return raw
}
