package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCanShorten(t *testing.T) {
	t.Parallel()

	s := NewShortener()
	cases := []struct {
		url  string
		want bool
	}{
		{"https://github.com/example/repo", true},
		{"http://github.com/example/repo/compare/a...b", true},
		{"https://github.io/pages", true},
		{"https://example.com/github.com", false},
		{"https://gitlab.com/example/repo", false},
	}
	for _, c := range cases {
		if got := s.CanShorten(c.url); got != c.want {
			t.Fatalf("CanShorten(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestShortenURLReturnsLocation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("url") != "https://github.com/example/repo" {
			t.Errorf("unexpected url form value %q", r.FormValue("url"))
		}
		w.Header().Set("Location", "https://git.io/abc123")
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	s := NewShortener(WithEndpoint(srv.URL))
	got := s.ShortenURL(context.Background(), "https://github.com/example/repo")
	if got != "https://git.io/abc123" {
		t.Fatalf("expected short url, got %q", got)
	}
}

func TestShortenURLFallsBackOnNonCreated(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	s := NewShortener(WithEndpoint(srv.URL))
	const raw = "https://github.com/example/repo"
	if got := s.ShortenURL(context.Background(), raw); got != raw {
		t.Fatalf("expected fallback to input, got %q", got)
	}
}

func TestShortenURLFallsBackOnMissingLocation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	s := NewShortener(WithEndpoint(srv.URL))
	const raw = "https://github.com/example/repo"
	if got := s.ShortenURL(context.Background(), raw); got != raw {
		t.Fatalf("expected fallback to input, got %q", got)
	}
}

func TestShortenURLFallsBackOnTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	s := NewShortener(
		WithEndpoint(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)
	const raw = "https://github.com/example/repo"
	if got := s.ShortenURL(context.Background(), raw); got != raw {
		t.Fatalf("expected fallback to input, got %q", got)
	}
}
