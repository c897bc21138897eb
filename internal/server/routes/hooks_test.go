package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/notifico/notifico/internal/db"
	"github.com/notifico/notifico/internal/dispatch"
	"github.com/notifico/notifico/internal/message"
	"github.com/notifico/notifico/internal/services"
	"github.com/notifico/notifico/internal/services/plain"
)

type capturingSink struct {
	mu     sync.Mutex
	events []*message.Event
}

func (s *capturingSink) Deliver(_ context.Context, event *message.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *capturingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type hookFixture struct {
	e        *echo.Echo
	database *db.Database
	sink     *capturingSink
	project  db.Project
	hook     db.Hook
}

func newHookFixture(t *testing.T) *hookFixture {
	t.Helper()

	ctx := context.Background()
	database, err := db.New(filepath.Join(t.TempDir(), "testdb"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	registry := services.NewRegistry()
	plainSvc := plain.NewService()
	if err := registry.Register(plainSvc); err != nil {
		t.Fatalf("register plain: %v", err)
	}

	project, err := database.CreateProject(ctx, "Example", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	config, err := plainSvc.PackConfig(nil)
	if err != nil {
		t.Fatalf("pack config: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, plainSvc.ID(), config)
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}

	capture := &capturingSink{}
	dispatcher := dispatch.New(database, registry, capture, slog.Default())

	e := echo.New()
	NewHookRoutes(dispatcher).RegisterRoutes(e)

	return &hookFixture{e: e, database: database, sink: capture, project: project, hook: hook}
}

func (f *hookFixture) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestReceiveEndpointAcceptsMessage(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	path := fmt.Sprintf("/h/%d/%s", f.project.ID, f.hook.Key)

	rec := f.post(path, `{"message": "build passed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	hook, err := f.database.GetHook(context.Background(), f.hook.ID)
	if err != nil {
		t.Fatalf("get hook: %v", err)
	}
	if hook.MessageCount != 1 {
		t.Fatalf("expected message count 1, got %d", hook.MessageCount)
	}
	project, err := f.database.GetProject(context.Background(), f.project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.MessageCount != 1 {
		t.Fatalf("expected project count 1, got %d", project.MessageCount)
	}
	if f.sink.count() != 1 {
		t.Fatalf("expected exactly one sink delivery, got %d", f.sink.count())
	}
}

func TestReceiveEndpointRejectsNonNumericProjectID(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)

	rec := f.post("/h/abc/"+f.hook.Key, `{"message": "x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReceiveEndpointUnknownKeyIs404(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)

	rec := f.post(fmt.Sprintf("/h/%d/definitely-wrong", f.project.ID), `{"message": "x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReceiveEndpointAbsorbsMalformedPayload(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	path := fmt.Sprintf("/h/%d/%s", f.project.ID, f.hook.Key)

	rec := f.post(path, "not json at all")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for malformed payload, got %d", rec.Code)
	}

	hook, err := f.database.GetHook(context.Background(), f.hook.ID)
	if err != nil {
		t.Fatalf("get hook: %v", err)
	}
	if hook.MessageCount != 0 {
		t.Fatalf("malformed payload must not count, got %d", hook.MessageCount)
	}
}

func TestReceiveEndpointAnswersGETProbes(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/h/%d/%s", f.project.ID, f.hook.Key), nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	// A GET carries no payload; the dispatcher absorbs it as malformed.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for GET probe, got %d", rec.Code)
	}
}
