package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	database, err := New(filepath.Join(t.TempDir(), "testdb"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestCreateAndGetProject(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Example", "https://example.com", true)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.ID == 0 {
		t.Fatal("expected assigned project id")
	}
	if project.MessageCount != 0 {
		t.Fatalf("new project must start at zero messages, got %d", project.MessageCount)
	}

	got, err := database.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Name != "Example" || !got.Website.Valid || got.Website.String != "https://example.com" {
		t.Fatalf("unexpected project %+v", got)
	}
	if got.Public != 1 {
		t.Fatalf("expected public project, got %d", got.Public)
	}
}

func TestCreateHookGeneratesDistinctKeys(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Example", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		hook, err := database.CreateHook(ctx, project.ID, 30, []byte(`{}`))
		if err != nil {
			t.Fatalf("create hook %d: %v", i, err)
		}
		if hook.Key == "" {
			t.Fatal("expected generated key")
		}
		if seen[hook.Key] {
			t.Fatalf("key %q issued twice", hook.Key)
		}
		seen[hook.Key] = true
	}
}

func TestFindHookByProjectAndKey(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Example", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, 10, []byte(`{"secret":"s"}`))
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}

	got, err := database.FindHook(ctx, project.ID, hook.Key)
	if err != nil {
		t.Fatalf("find hook: %v", err)
	}
	if got.ID != hook.ID || got.ServiceID != 10 {
		t.Fatalf("unexpected hook %+v", got)
	}

	if _, err := database.FindHook(ctx, project.ID, "wrong-key"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows for wrong key, got %v", err)
	}
	if _, err := database.FindHook(ctx, project.ID+100, hook.Key); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows for wrong project, got %v", err)
	}
}

func TestFindHookSkipsOrphans(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Doomed", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, 30, nil)
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}
	if err := database.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	// The hook row survives the project, but must no longer resolve.
	if _, err := database.GetHook(ctx, hook.ID); err != nil {
		t.Fatalf("orphan hook row should still exist: %v", err)
	}
	if _, err := database.FindHook(ctx, project.ID, hook.Key); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected orphan hook to not resolve, got %v", err)
	}
}

func TestIncrementMessageCounts(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Example", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, 30, nil)
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := database.IncrementMessageCounts(ctx, hook.ID, project.ID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	gotHook, err := database.GetHook(ctx, hook.ID)
	if err != nil {
		t.Fatalf("get hook: %v", err)
	}
	gotProject, err := database.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if gotHook.MessageCount != 3 {
		t.Fatalf("expected hook count 3, got %d", gotHook.MessageCount)
	}
	if gotProject.MessageCount != 3 {
		t.Fatalf("expected project count 3, got %d", gotProject.MessageCount)
	}
}

func TestIncrementMessageCountsRollsBackOnMissingProject(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Doomed", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, 30, nil)
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}
	if err := database.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	if err := database.IncrementMessageCounts(ctx, hook.ID, project.ID); err == nil {
		t.Fatal("expected counter update against deleted project to fail")
	}

	gotHook, err := database.GetHook(ctx, hook.ID)
	if err != nil {
		t.Fatalf("get hook: %v", err)
	}
	if gotHook.MessageCount != 0 {
		t.Fatalf("hook increment must roll back with the project's, got %d", gotHook.MessageCount)
	}
}

func TestIncrementMessageCountsConcurrent(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Busy", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, 30, nil)
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- database.IncrementMessageCounts(ctx, hook.ID, project.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent increment: %v", err)
		}
	}

	gotHook, err := database.GetHook(ctx, hook.ID)
	if err != nil {
		t.Fatalf("get hook: %v", err)
	}
	gotProject, err := database.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if gotHook.MessageCount != workers || gotProject.MessageCount != workers {
		t.Fatalf("expected both counts at %d, got hook=%d project=%d",
			workers, gotHook.MessageCount, gotProject.MessageCount)
	}
}

func TestUpdateHookConfig(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Example", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, 10, []byte(`{"secret":"old"}`))
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}

	if err := database.UpdateHookConfig(ctx, hook.ID, []byte(`{"secret":"new"}`)); err != nil {
		t.Fatalf("update config: %v", err)
	}
	got, err := database.GetHook(ctx, hook.ID)
	if err != nil {
		t.Fatalf("get hook: %v", err)
	}
	if string(got.Config) != `{"secret":"new"}` {
		t.Fatalf("unexpected config %s", got.Config)
	}
}

func TestDeleteHookScopedToProject(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	project, err := database.CreateProject(ctx, "Example", "", false)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	other, err := database.CreateProject(ctx, "Other", "", false)
	if err != nil {
		t.Fatalf("create other project: %v", err)
	}
	hook, err := database.CreateHook(ctx, project.ID, 30, nil)
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}

	// Deleting through the wrong project is a no-op.
	if err := database.DeleteHook(ctx, hook.ID, other.ID); err != nil {
		t.Fatalf("delete hook wrong project: %v", err)
	}
	if _, err := database.GetHook(ctx, hook.ID); err != nil {
		t.Fatalf("hook must survive scoped delete from wrong project: %v", err)
	}

	if err := database.DeleteHook(ctx, hook.ID, project.ID); err != nil {
		t.Fatalf("delete hook: %v", err)
	}
	if _, err := database.GetHook(ctx, hook.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected hook gone, got %v", err)
	}
}

func TestHookKeyShape(t *testing.T) {
	t.Parallel()

	key, err := newHookKey()
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	// 24 bytes encode to 32 URL-safe characters without padding.
	if len(key) != 32 {
		t.Fatalf("expected 32 character key, got %d (%q)", len(key), key)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			t.Fatalf("key contains non URL-safe rune %q", r)
		}
	}
}

func TestQueryLatencyStatisticsObserved(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	ctx := context.Background()

	if _, err := database.CreateProject(ctx, "Example", "", false); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := database.ListProjects(ctx); err != nil {
		t.Fatalf("list projects: %v", err)
	}

	stats := database.QueryLatencyStatistics()
	if len(stats) == 0 {
		t.Fatal("expected recorded query latencies")
	}
	found := false
	for _, s := range stats {
		if s.Name == "ListProjects" && s.Count > 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ListProjects stats, got %v", stats)
	}
}
