package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"mcprouter/internal/rerr"
)

// UpsertServer idempotently (re)creates a server's row along with its
// capabilities, tools, and tags. Per spec.md §4.3 the whole operation is one
// transaction across servers, capabilities, server_capabilities, tools,
// server_tags, and the initial server_health row.
func (s *Store) UpsertServer(ctx context.Context, in ServerInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.Registry("UpsertServer", err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	argsJSON, err := json.Marshal(in.Args)
	if err != nil {
		return rerr.Registry("UpsertServer", err, "failed to encode args")
	}
	envJSON, err := json.Marshal(in.Env)
	if err != nil {
		return rerr.Registry("UpsertServer", err, "failed to encode env")
	}

	var createdAt string
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM servers WHERE id = ?`, in.ID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		createdAt = now
	} else if err != nil {
		return rerr.Registry("UpsertServer", err, "failed to read existing created_at")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO servers (id, name, description, transport_kind, command, args, env, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			transport_kind = excluded.transport_kind,
			command = excluded.command,
			args = excluded.args,
			env = excluded.env,
			updated_at = excluded.updated_at
	`, in.ID, in.Name, in.Description, in.TransportKind, in.Command, string(argsJSON), string(envJSON), createdAt, now)
	if err != nil {
		return rerr.Registry("UpsertServer", err, "failed to upsert server %s", in.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM server_capabilities WHERE server_id = ?`, in.ID); err != nil {
		return rerr.Registry("UpsertServer", err, "failed to clear capabilities for %s", in.ID)
	}
	for _, c := range in.Capabilities {
		capID, err := upsertCapability(ctx, tx, c.Name, c.Description)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO server_capabilities (server_id, capability_id) VALUES (?, ?)
		`, in.ID, capID); err != nil {
			return rerr.Registry("UpsertServer", err, "failed to link capability %s to %s", c.Name, in.ID)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tools WHERE server_id = ?`, in.ID); err != nil {
		return rerr.Registry("UpsertServer", err, "failed to clear tools for %s", in.ID)
	}
	for _, tIn := range in.Tools {
		toolID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tools (id, server_id, name, description, schema) VALUES (?, ?, ?, ?, ?)
		`, toolID, in.ID, tIn.Name, tIn.Description, tIn.Schema); err != nil {
			return rerr.Registry("UpsertServer", err, "failed to insert tool %s for %s", tIn.Name, in.ID)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM server_tags WHERE server_id = ?`, in.ID); err != nil {
		return rerr.Registry("UpsertServer", err, "failed to clear tags for %s", in.ID)
	}
	for _, tag := range in.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO server_tags (server_id, tag) VALUES (?, ?)
		`, in.ID, tag); err != nil {
			return rerr.Registry("UpsertServer", err, "failed to insert tag %s for %s", tag, in.ID)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO server_health (server_id, status) VALUES (?, 'unknown')
	`, in.ID); err != nil {
		return rerr.Registry("UpsertServer", err, "failed to seed health row for %s", in.ID)
	}

	if err := tx.Commit(); err != nil {
		return rerr.Registry("UpsertServer", err, "failed to commit transaction")
	}
	return nil
}

func upsertCapability(ctx context.Context, tx *sql.Tx, name, description string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM capabilities WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", rerr.Registry("upsertCapability", err, "failed to look up capability %s", name)
	}

	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO capabilities (id, name, description) VALUES (?, ?, ?)
	`, id, name, description); err != nil {
		return "", rerr.Registry("upsertCapability", err, "failed to insert capability %s", name)
	}
	return id, nil
}

// ReadServer returns the full durable record for id, including its
// capabilities, tools, tags, and current health row.
func (s *Store) ReadServer(ctx context.Context, id string) (*ServerRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, transport_kind, command, args, env, created_at, updated_at
		FROM servers WHERE id = ?
	`, id)

	var out ServerRow
	var argsJSON, envJSON, createdAt, updatedAt string
	if err := row.Scan(&out.ID, &out.Name, &out.Description, &out.TransportKind, &out.Command, &argsJSON, &envJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rerr.Validation("ReadServer", "server %q not found", id)
		}
		return nil, rerr.Registry("ReadServer", err, "failed to read server %s", id)
	}
	_ = json.Unmarshal([]byte(argsJSON), &out.Args)
	_ = json.Unmarshal([]byte(envJSON), &out.Env)
	out.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	out.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	caps, err := s.capabilitiesForServer(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Capabilities = caps

	tools, err := s.toolsForServer(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Tools = tools

	tags, err := s.tagsForServer(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Tags = tags

	health, err := s.healthForServer(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Health = health

	return &out, nil
}

func (s *Store) capabilitiesForServer(ctx context.Context, id string) ([]CapabilityRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description
		FROM capabilities c
		JOIN server_capabilities sc ON sc.capability_id = c.id
		WHERE sc.server_id = ?
		ORDER BY c.name
	`, id)
	if err != nil {
		return nil, rerr.Registry("capabilitiesForServer", err, "failed to query capabilities for %s", id)
	}
	defer rows.Close()

	var out []CapabilityRow
	for rows.Next() {
		var c CapabilityRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, rerr.Registry("capabilitiesForServer", err, "failed to scan capability row")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) toolsForServer(ctx context.Context, id string) ([]ToolRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, server_id, name, description, schema FROM tools WHERE server_id = ? ORDER BY name
	`, id)
	if err != nil {
		return nil, rerr.Registry("toolsForServer", err, "failed to query tools for %s", id)
	}
	defer rows.Close()

	var out []ToolRow
	for rows.Next() {
		var t ToolRow
		if err := rows.Scan(&t.ID, &t.ServerID, &t.Name, &t.Description, &t.Schema); err != nil {
			return nil, rerr.Registry("toolsForServer", err, "failed to scan tool row")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) tagsForServer(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM server_tags WHERE server_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, rerr.Registry("tagsForServer", err, "failed to query tags for %s", id)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, rerr.Registry("tagsForServer", err, "failed to scan tag row")
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

func (s *Store) healthForServer(ctx context.Context, id string) (HealthRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT server_id, status, last_check, last_successful_connection, error_count, avg_response_time
		FROM server_health WHERE server_id = ?
	`, id)

	var h HealthRow
	var lastCheck, lastSuccess sql.NullString
	var avgResponseTime sql.NullFloat64
	if err := row.Scan(&h.ServerID, &h.Status, &lastCheck, &lastSuccess, &h.ErrorCount, &avgResponseTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HealthRow{ServerID: id, Status: "unknown"}, nil
		}
		return HealthRow{}, rerr.Registry("healthForServer", err, "failed to read health for %s", id)
	}
	h.AvgResponseTime = avgResponseTime.Float64
	if lastCheck.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastCheck.String)
		h.LastCheck = &t
	}
	if lastSuccess.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastSuccess.String)
		h.LastSuccessfulConnection = &t
	}
	return h, nil
}

// DeleteServer removes a server and, via ON DELETE CASCADE, every row that
// references it (capabilities link table, tools, health, usage, tags).
func (s *Store) DeleteServer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return rerr.Registry("DeleteServer", err, "failed to delete server %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rerr.Registry("DeleteServer", err, "failed to read rows affected")
	}
	if n == 0 {
		return rerr.Validation("DeleteServer", "server %q not found", id)
	}
	return nil
}
