// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store provides the SQLite-backed persistence layer for registered
// MCP servers and their discovered tools.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/mcpd/internal/mcp"
)

// SQLiteStore implements mcp.Store using SQLite.
//
// Features:
//   - WAL mode for better concurrency
//   - Foreign key constraints enabled (tools cascade on server delete)
//   - Transactional tool replacement so readers never observe a
//     half-updated tool list
type SQLiteStore struct {
	db *sql.DB
}

var _ mcp.Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite store at the given path.
//
// The database is created if it doesn't exist, and migrations are run
// automatically.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Pragmas go in the connection string so every pooled connection gets
	// them; foreign_keys in particular is per-connection.
	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite with WAL mode can handle multiple concurrent readers
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		// Servers table
		`CREATE TABLE IF NOT EXISTS servers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			config TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'disconnected',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Tools table; one row per discovered tool, replaced wholesale on
		// each discovery
		`CREATE TABLE IF NOT EXISTS tools (
			id TEXT PRIMARY KEY,
			server_id TEXT NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT,
			input_schema TEXT,
			UNIQUE(server_id, name)
		)`,

		// Indexes for efficient queries
		`CREATE INDEX IF NOT EXISTS idx_tools_server
			ON tools(server_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tools_name
			ON tools(name)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveServer inserts or updates a server by id.
func (s *SQLiteStore) SaveServer(ctx context.Context, server *mcp.Server) error {
	if server == nil {
		return fmt.Errorf("server cannot be nil")
	}
	if server.ID == "" {
		return fmt.Errorf("server id is required")
	}
	if err := server.Config.Validate(); err != nil {
		return err
	}

	configJSON, err := json.Marshal(server.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	now := time.Now()
	if server.CreatedAt.IsZero() {
		server.CreatedAt = now
	}
	server.UpdatedAt = now

	status := server.Status
	if status == "" {
		status = mcp.StatusDisconnected
	}

	query := `INSERT INTO servers (id, name, config, enabled, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	            name = excluded.name,
	            config = excluded.config,
	            enabled = excluded.enabled,
	            status = excluded.status,
	            updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		server.ID,
		server.Name,
		string(configJSON),
		server.Enabled,
		string(status),
		server.CreatedAt.Format(time.RFC3339),
		server.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}

	return nil
}

// GetServer retrieves a server by id with its tools loaded.
func (s *SQLiteStore) GetServer(ctx context.Context, id string) (*mcp.Server, error) {
	query := `SELECT id, name, config, enabled, status, created_at, updated_at
	          FROM servers WHERE id = ?`

	server, err := s.scanServer(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mcp.ErrServerNotFound(id)
		}
		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	tools, err := s.ToolsByServer(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	server.Tools = tools

	return server, nil
}

// GetServerByName retrieves a server by its unique name.
func (s *SQLiteStore) GetServerByName(ctx context.Context, name string) (*mcp.Server, error) {
	query := `SELECT id, name, config, enabled, status, created_at, updated_at
	          FROM servers WHERE name = ?`

	server, err := s.scanServer(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mcp.ErrServerNotFound(name)
		}
		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	tools, err := s.ToolsByServer(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	server.Tools = tools

	return server, nil
}

// ListServers returns all registered servers sorted by name, with tools
// loaded.
func (s *SQLiteStore) ListServers(ctx context.Context) ([]*mcp.Server, error) {
	return s.listServers(ctx, `SELECT id, name, config, enabled, status, created_at, updated_at
	          FROM servers ORDER BY name`)
}

// ListEnabledServers returns all enabled servers sorted by name, with tools
// loaded.
func (s *SQLiteStore) ListEnabledServers(ctx context.Context) ([]*mcp.Server, error) {
	return s.listServers(ctx, `SELECT id, name, config, enabled, status, created_at, updated_at
	          FROM servers WHERE enabled = 1 ORDER BY name`)
}

func (s *SQLiteStore) listServers(ctx context.Context, query string) ([]*mcp.Server, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []*mcp.Server
	for rows.Next() {
		server, err := s.scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate servers: %w", err)
	}

	for _, server := range servers {
		tools, err := s.ToolsByServer(ctx, server.ID)
		if err != nil {
			return nil, err
		}
		server.Tools = tools
	}

	return servers, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanServer(row scanner) (*mcp.Server, error) {
	var server mcp.Server
	var configJSON, status, createdAt, updatedAt string

	if err := row.Scan(
		&server.ID,
		&server.Name,
		&configJSON,
		&server.Enabled,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(configJSON), &server.Config); err != nil {
		return nil, fmt.Errorf("failed to parse config for server %s: %w", server.ID, err)
	}

	server.Status = mcp.Status(status)
	server.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	server.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &server, nil
}

// UpdateServerStatus sets a server's status. Absent ids are a no-op.
func (s *SQLiteStore) UpdateServerStatus(ctx context.Context, id string, status mcp.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	query := `UPDATE servers SET status = ?, updated_at = ? WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query, string(status), time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update server status: %w", err)
	}

	return nil
}

// SetServerEnabled flips a server's enabled flag.
func (s *SQLiteStore) SetServerEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE servers SET enabled = ?, updated_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query, enabled, time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mcp.ErrServerNotFound(id)
	}

	return nil
}

// DeleteServer removes a server; its tools cascade via the foreign key.
// Absent ids are a no-op.
func (s *SQLiteStore) DeleteServer(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}

// ReplaceTools atomically replaces a server's tool list inside a single
// transaction.
func (s *SQLiteStore) ReplaceTools(ctx context.Context, serverID string, tools []mcp.Tool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tools WHERE server_id = ?`, serverID); err != nil {
		return fmt.Errorf("failed to clear tools: %w", err)
	}

	insert := `INSERT INTO tools (id, server_id, name, description, input_schema)
	           VALUES (?, ?, ?, ?, ?)`
	for _, tool := range tools {
		if _, err := tx.ExecContext(ctx, insert,
			tool.ID(serverID),
			serverID,
			tool.Name,
			tool.Description,
			string(tool.InputSchema),
		); err != nil {
			return fmt.Errorf("failed to insert tool %s: %w", tool.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tools: %w", err)
	}

	return nil
}

// ToolsByServer returns the persisted tools for a server sorted by name.
func (s *SQLiteStore) ToolsByServer(ctx context.Context, serverID string) ([]mcp.Tool, error) {
	query := `SELECT name, description, input_schema
	          FROM tools WHERE server_id = ? ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	defer rows.Close()

	var tools []mcp.Tool
	for rows.Next() {
		var tool mcp.Tool
		var description, schema sql.NullString

		if err := rows.Scan(&tool.Name, &description, &schema); err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		tool.Description = description.String
		if schema.Valid && schema.String != "" {
			tool.InputSchema = json.RawMessage(schema.String)
		}
		tools = append(tools, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tools: %w", err)
	}

	return tools, nil
}

// AllAvailableTools returns the tools of servers that are both enabled and
// currently connected, sorted by server name then tool name.
func (s *SQLiteStore) AllAvailableTools(ctx context.Context) ([]mcp.AvailableTool, error) {
	query := `SELECT s.id, s.name, t.name, t.description, t.input_schema
	          FROM tools t
	          JOIN servers s ON s.id = t.server_id
	          WHERE s.enabled = 1 AND s.status = 'connected'
	          ORDER BY s.name, t.name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list available tools: %w", err)
	}
	defer rows.Close()

	var available []mcp.AvailableTool
	for rows.Next() {
		var at mcp.AvailableTool
		var description, schema sql.NullString

		if err := rows.Scan(&at.ServerID, &at.ServerName, &at.Tool.Name, &description, &schema); err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		at.Tool.Description = description.String
		if schema.Valid && schema.String != "" {
			at.Tool.InputSchema = json.RawMessage(schema.String)
		}
		available = append(available, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tools: %w", err)
	}

	return available, nil
}
