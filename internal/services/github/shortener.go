package github

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/notifico/notifico/internal/services"
)

// ShortenerID is the registry id of the git.io shortener.
const ShortenerID = 20

// git.io only shortens GitHub-owned domains.
var shortenablePattern = regexp.MustCompile(`^https?://github\.(com|io)`)

// Shortener shortens GitHub URLs through git.io. Throttling shows up as a
// non-201 response, which falls back to the unshortened URL.
type Shortener struct {
	services.Base
	endpoint string
	client   *http.Client
}

// ShortenerOption tweaks the shortener, primarily for tests.
type ShortenerOption func(*Shortener)

// WithEndpoint overrides the git.io endpoint.
func WithEndpoint(endpoint string) ShortenerOption {
	return func(s *Shortener) { s.endpoint = endpoint }
}

// WithHTTPClient overrides the outbound HTTP client.
func WithHTTPClient(client *http.Client) ShortenerOption {
	return func(s *Shortener) { s.client = client }
}

// NewShortener builds the git.io shortener with a 4 second request budget;
// it runs inline with third-party webhook deliveries and must never stall
// them.
func NewShortener(opts ...ShortenerOption) *Shortener {
	s := &Shortener{
		Base: services.Base{
			ServiceID:   ShortenerID,
			ServiceName: "git.io",
			ServiceSlug: "gitio",
			ServiceDesc: "Shortens GitHub URLs through the git.io service.",
		},
		endpoint: "https://git.io",
		client:   &http.Client{Timeout: 4 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanShorten reports whether raw points at a GitHub-owned domain.
func (s *Shortener) CanShorten(raw string) bool {
	return shortenablePattern.MatchString(raw)
}

// ShortenURL posts raw to git.io and returns the Location of the created
// short link. Any failure returns raw unchanged.
func (s *Shortener) ShortenURL(ctx context.Context, raw string) string {
	form := url.Values{"url": {raw}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return raw
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return raw
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated {
		return raw
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return raw
	}
	return location
}
