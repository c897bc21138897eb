// Package hookclient is a small client for delivering payloads to a
// Notifico hook endpoint. It exists for smoke tooling and for services that
// push plain webhook messages.
package hookclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client posts payloads to /h/{project_id}/{key}.
type Client struct {
	// BaseURL is the server base, e.g. https://n.example.com.
	BaseURL string
	// HTTPClient overrides the default client; nil gets a 10s timeout.
	HTTPClient *http.Client
}

// Message is the plain-webhook payload shape.
type Message struct {
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// Send delivers body as JSON to the hook endpoint. A 404 means the project
// id / key pair does not resolve on the server.
func (c Client) Send(ctx context.Context, projectID int64, key string, body any) error {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return fmt.Errorf("base URL is required")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/h/%d/%s", base, projectID, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver payload: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return nil
}
