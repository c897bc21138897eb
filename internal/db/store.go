package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// maxKeyAttempts bounds the re-roll loop on per-project key collisions.
// With 24 random bytes a collision is vanishingly unlikely; the bound only
// guards against a broken randomness source looping forever.
const maxKeyAttempts = 8

const createProjectQuery = `-- name: CreateProject :one
INSERT INTO projects (name, website, public)
VALUES (?, ?, ?)
RETURNING id, name, website, public, message_count, created_at`

const getProjectQuery = `-- name: GetProject :one
SELECT id, name, website, public, message_count, created_at
FROM projects
WHERE id = ?`

const listProjectsQuery = `-- name: ListProjects :many
SELECT id, name, website, public, message_count, created_at
FROM projects
ORDER BY id`

const deleteProjectQuery = `-- name: DeleteProject :exec
DELETE FROM projects WHERE id = ?`

const createHookQuery = `-- name: CreateHook :one
INSERT INTO hooks (project_id, key, service_id, config)
VALUES (?, ?, ?, ?)
RETURNING id, project_id, key, service_id, config, message_count, created_at`

const findHookQuery = `-- name: FindHook :one
SELECT h.id, h.project_id, h.key, h.service_id, h.config, h.message_count, h.created_at
FROM hooks h
JOIN projects p ON p.id = h.project_id
WHERE h.project_id = ? AND h.key = ?`

const getHookQuery = `-- name: GetHook :one
SELECT id, project_id, key, service_id, config, message_count, created_at
FROM hooks
WHERE id = ?`

const listHooksByProjectQuery = `-- name: ListHooksByProject :many
SELECT id, project_id, key, service_id, config, message_count, created_at
FROM hooks
WHERE project_id = ?
ORDER BY id`

const updateHookConfigQuery = `-- name: UpdateHookConfig :exec
UPDATE hooks SET config = ? WHERE id = ?`

const deleteHookQuery = `-- name: DeleteHook :exec
DELETE FROM hooks WHERE id = ? AND project_id = ?`

const incrementHookCountQuery = `-- name: IncrementHookCount :exec
UPDATE hooks SET message_count = message_count + 1 WHERE id = ?`

const incrementProjectCountQuery = `-- name: IncrementProjectCount :exec
UPDATE projects SET message_count = message_count + 1 WHERE id = ?`

// CreateProject inserts a new project.
func (c *Database) CreateProject(ctx context.Context, name, website string, public bool) (Project, error) {
	publicValue := int64(0)
	if public {
		publicValue = 1
	}
	websiteValue := sql.NullString{String: strings.TrimSpace(website)}
	websiteValue.Valid = websiteValue.String != ""

	row := c.q.QueryRowContext(ctx, createProjectQuery, strings.TrimSpace(name), websiteValue, publicValue)
	return scanProject(row)
}

// GetProject fetches a project by id.
func (c *Database) GetProject(ctx context.Context, id int64) (Project, error) {
	return scanProject(c.q.QueryRowContext(ctx, getProjectQuery, id))
}

// ListProjects returns all projects.
func (c *Database) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := c.q.QueryContext(ctx, listProjectsQuery)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Website, &p.Public, &p.MessageCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project. Its hooks are left behind on purpose;
// dispatch resolves them as not found.
func (c *Database) DeleteProject(ctx context.Context, id int64) error {
	_, err := c.q.ExecContext(ctx, deleteProjectQuery, id)
	return err
}

// CreateHook inserts a hook with a freshly generated key. The key only has
// to be unique within the project; on the unlikely collision the key is
// re-rolled and the insert retried.
func (c *Database) CreateHook(ctx context.Context, projectID int64, serviceID int, config []byte) (Hook, error) {
	var lastErr error
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := newHookKey()
		if err != nil {
			return Hook{}, err
		}
		row := c.q.QueryRowContext(ctx, createHookQuery, projectID, key, int64(serviceID), config)
		hook, err := scanHook(row)
		if err == nil {
			return hook, nil
		}
		if !isUniqueViolation(err) {
			return Hook{}, err
		}
		lastErr = err
	}
	return Hook{}, fmt.Errorf("hook key generation kept colliding: %w", lastErr)
}

// FindHook resolves a hook by project id and key. Hooks whose owning project
// has been deleted do not resolve; both cases return sql.ErrNoRows.
func (c *Database) FindHook(ctx context.Context, projectID int64, key string) (Hook, error) {
	return scanHook(c.q.QueryRowContext(ctx, findHookQuery, projectID, key))
}

// GetHook fetches a hook by id.
func (c *Database) GetHook(ctx context.Context, id int64) (Hook, error) {
	return scanHook(c.q.QueryRowContext(ctx, getHookQuery, id))
}

// ListHooksByProject returns all hooks attached to a project.
func (c *Database) ListHooksByProject(ctx context.Context, projectID int64) ([]Hook, error) {
	rows, err := c.q.QueryContext(ctx, listHooksByProjectQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var hooks []Hook
	for rows.Next() {
		var h Hook
		if err := rows.Scan(&h.ID, &h.ProjectID, &h.Key, &h.ServiceID, &h.Config, &h.MessageCount, &h.CreatedAt); err != nil {
			return nil, err
		}
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}

// UpdateHookConfig replaces a hook's packed configuration blob.
func (c *Database) UpdateHookConfig(ctx context.Context, hookID int64, config []byte) error {
	_, err := c.q.ExecContext(ctx, updateHookConfigQuery, config, hookID)
	return err
}

// DeleteHook removes a hook owned by the given project.
func (c *Database) DeleteHook(ctx context.Context, hookID, projectID int64) error {
	_, err := c.q.ExecContext(ctx, deleteHookQuery, hookID, projectID)
	return err
}

// IncrementMessageCounts applies both message counter increments in one
// transaction. The increments run inside the database so concurrent
// deliveries never lose one; either both land or neither does.
func (c *Database) IncrementMessageCounts(ctx context.Context, hookID, projectID int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin counter update: %w", err)
	}
	q := newInstrumentedDBTX(tx, c.tracker)

	if err := incrementOne(ctx, q, incrementHookCountQuery, hookID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("increment hook count: %w", err)
	}
	if err := incrementOne(ctx, q, incrementProjectCountQuery, projectID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("increment project count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit counter update: %w", err)
	}
	return nil
}

func incrementOne(ctx context.Context, q dbtx, query string, id int64) error {
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("expected to update 1 row, updated %d", affected)
	}
	return nil
}

func scanProject(row *sql.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Website, &p.Public, &p.MessageCount, &p.CreatedAt)
	return p, err
}

func scanHook(row *sql.Row) (Hook, error) {
	var h Hook
	err := row.Scan(&h.ID, &h.ProjectID, &h.Key, &h.ServiceID, &h.Config, &h.MessageCount, &h.CreatedAt)
	return h, err
}

// newHookKey returns a URL-safe token from 24 cryptographically random
// bytes.
func newHookKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate hook key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isUniqueViolation(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
