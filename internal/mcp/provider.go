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

package mcp

import "context"

// Store defines the persistence interface for servers and their discovered
// tools. This interface enables dependency injection and testing with mock
// implementations; the production implementation is internal/store.
type Store interface {
	// SaveServer inserts or updates a server by id.
	SaveServer(ctx context.Context, server *Server) error

	// GetServer returns a server with its tools loaded, or an error with
	// code SERVER_NOT_FOUND if absent.
	GetServer(ctx context.Context, id string) (*Server, error)

	// ListServers returns all registered servers with tools loaded.
	ListServers(ctx context.Context) ([]*Server, error)

	// ListEnabledServers returns all enabled servers with tools loaded.
	ListEnabledServers(ctx context.Context) ([]*Server, error)

	// UpdateServerStatus sets a server's status. Absent ids are a no-op.
	UpdateServerStatus(ctx context.Context, id string, status Status) error

	// DeleteServer removes a server and cascades to its tools. Absent ids
	// are a no-op.
	DeleteServer(ctx context.Context, id string) error

	// ReplaceTools atomically replaces a server's tool list. A reader must
	// never observe an empty tool set mid-update.
	ReplaceTools(ctx context.Context, serverID string, tools []Tool) error

	// ToolsByServer returns the persisted tools for a server.
	ToolsByServer(ctx context.Context, serverID string) ([]Tool, error)

	// AllAvailableTools returns the tools of servers that are both enabled
	// and currently connected.
	AllAvailableTools(ctx context.Context) ([]AvailableTool, error)
}

// ProtocolClient is the capability required from a live protocol connection,
// independent of transport. The production implementation wraps the mcp-go
// client; mcptest provides a mock.
type ProtocolClient interface {
	// ListTools retrieves the tool definitions exposed by the server.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool executes a tool with the given arguments.
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolCallResponse, error)

	// Ping checks whether the server is still responsive.
	Ping(ctx context.Context) error

	// Close closes the protocol session.
	Close() error
}

// Dialer opens protocol connections for server configurations. It exists so
// the invoker can be exercised without spawning real subprocesses or HTTP
// streams.
type Dialer interface {
	// Connect establishes a connection within the fixed connect budget.
	// Failures are reported as CONNECTION_TIMEOUT or CONNECTION_FAILURE
	// errors, and no resources remain held afterwards.
	Connect(ctx context.Context, serverID string, cfg TransportConfig) (*Connection, error)
}
