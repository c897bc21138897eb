package services

import (
	"context"
	"errors"
	"testing"
)

type stubService struct {
	Base
}

type stubShortener struct {
	Base
	eligible string
	short    string
}

func (s *stubShortener) CanShorten(raw string) bool {
	return raw == s.eligible
}

func (s *stubShortener) ShortenURL(_ context.Context, raw string) string {
	if s.short == "" {
		return raw
	}
	return s.short
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&stubService{Base{ServiceID: 10, ServiceSlug: "first"}}); err != nil {
		t.Fatalf("register first: %v", err)
	}

	err := r.Register(&stubService{Base{ServiceID: 10, ServiceSlug: "second"}})
	if !errors.Is(err, ErrDuplicateServiceID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	svc, ok := r.Lookup(10)
	if !ok || svc.Slug() != "first" {
		t.Fatalf("duplicate registration must not overwrite, got %v", svc)
	}
}

func TestLookupUnknownID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, ok := r.Lookup(99); ok {
		t.Fatal("expected missing id lookup to fail")
	}
}

func TestAllReturnsServicesOrderedByID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, id := range []int{30, 10, 20} {
		if err := r.Register(&stubService{Base{ServiceID: id}}); err != nil {
			t.Fatalf("register %d: %v", id, err)
		}
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 services, got %d", len(all))
	}
	for i, want := range []int{10, 20, 30} {
		if all[i].ID() != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, all[i].ID())
		}
	}
}

func TestShortenURLUsesFirstEligibleShortener(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&stubService{Base{ServiceID: 10}}); err != nil {
		t.Fatalf("register receiver: %v", err)
	}
	if err := r.Register(&stubShortener{
		Base:     Base{ServiceID: 20},
		eligible: "https://github.com/example/repo",
		short:    "https://git.io/abc",
	}); err != nil {
		t.Fatalf("register shortener: %v", err)
	}

	got := r.ShortenURL(context.Background(), "https://github.com/example/repo")
	if got != "https://git.io/abc" {
		t.Fatalf("expected shortened url, got %q", got)
	}
}

func TestShortenURLFallsBackWhenNothingEligible(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&stubShortener{Base: Base{ServiceID: 20}, eligible: "https://github.com/only"}); err != nil {
		t.Fatalf("register shortener: %v", err)
	}

	const raw = "https://example.com/page"
	if got := r.ShortenURL(context.Background(), raw); got != raw {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
