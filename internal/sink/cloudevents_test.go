package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/notifico/notifico/internal/message"
)

func TestCloudEventsSinkDelivers(t *testing.T) {
	t.Parallel()

	type received struct {
		ceType string
		source string
		body   message.Event
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		var body message.Event
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		got <- received{
			ceType: r.Header.Get("Ce-Type"),
			source: r.Header.Get("Ce-Source"),
			body:   body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	s, err := NewCloudEventsSink(srv.URL, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	event := message.New("github", "alice pushed 1 commit(s) to example/repo/main")
	event.ProjectID = 7
	event.HookID = 3
	s.Deliver(context.Background(), event)

	select {
	case r := <-got:
		if r.ceType != EventType {
			t.Fatalf("unexpected ce-type %q", r.ceType)
		}
		if r.source != "notifico/project/7/hook/3" {
			t.Fatalf("unexpected ce-source %q", r.source)
		}
		if r.body.Text != event.Text || r.body.Service != "github" {
			t.Fatalf("unexpected payload %+v", r.body)
		}
	default:
		t.Fatal("expected a delivery")
	}
}

func TestCloudEventsSinkDropsOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	s, err := NewCloudEventsSink(srv.URL, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	// Deliver must absorb the failure without panicking or returning.
	s.Deliver(context.Background(), message.New("plain", "text"))
}
