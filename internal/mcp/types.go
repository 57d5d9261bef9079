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

import (
	"encoding/json"
	"time"
)

// Status represents the connection state of an MCP server.
type Status string

const (
	// StatusDisconnected indicates no connection has been attempted or the
	// server was explicitly disabled.
	StatusDisconnected Status = "disconnected"
	// StatusConnecting indicates a connect attempt is in flight.
	StatusConnecting Status = "connecting"
	// StatusConnected indicates the last connect or call succeeded.
	StatusConnected Status = "connected"
	// StatusError indicates the last connect or call failed at the
	// transport level.
	StatusError Status = "error"
)

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected, StatusError:
		return true
	}
	return false
}

// Tool represents an MCP tool definition as discovered from a server.
// Maps to the MCP protocol's Tool schema.
type Tool struct {
	// Name is the tool identifier, unique within its server.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// InputSchema defines the expected input parameters using JSON Schema.
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ID returns the globally unique tool identifier for a tool on a server.
func (t Tool) ID(serverID string) string {
	return serverID + "." + t.Name
}

// Server is a registered MCP server with its persisted state.
type Server struct {
	// ID is the unique server identifier (primary key).
	ID string `json:"id"`

	// Name is the human-readable server name.
	Name string `json:"name"`

	// Config is the transport configuration.
	Config TransportConfig `json:"config"`

	// Enabled controls whether the server participates in discovery and
	// invocation.
	Enabled bool `json:"enabled"`

	// Status is the last observed connection status.
	Status Status `json:"status"`

	// Tools is the last discovered tool list.
	Tools []Tool `json:"tools,omitempty"`

	// CreatedAt is when the server was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the server was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolCallRequest represents a request to execute an MCP tool.
type ToolCallRequest struct {
	// ToolName is the tool to execute.
	ToolName string `json:"toolName"`

	// Arguments contains the input parameters for the tool.
	Arguments map[string]any `json:"arguments"`

	// ServerID identifies the server providing the tool.
	ServerID string `json:"serverId"`
}

// ToolCallResult is the structured outcome returned to the orchestrator.
// Failures are reported in-band so a single tool failure never aborts the
// orchestrator's request.
type ToolCallResult struct {
	// Success indicates whether the call completed without error.
	Success bool `json:"success"`

	// ToolName echoes the requested tool.
	ToolName string `json:"toolName"`

	// Content contains the tool's output when Success is true.
	Content []ContentItem `json:"content,omitempty"`

	// Error carries the failure message when Success is false.
	Error string `json:"error,omitempty"`

	// Timestamp is when the call completed.
	Timestamp time.Time `json:"timestamp"`
}

// ToolCallResponse is the protocol-level result of a tool invocation,
// before it is shaped into a ToolCallResult for the orchestrator.
type ToolCallResponse struct {
	// Content contains the tool's output.
	Content []ContentItem `json:"content"`

	// IsError indicates the remote tool itself reported failure. This is a
	// tool-level failure, not a transport failure.
	IsError bool `json:"isError,omitempty"`
}

// ContentItem represents a piece of content in an MCP tool response.
type ContentItem struct {
	// Type is the content type (text, image, resource).
	Type string `json:"type"`

	// Text is the text content (for type="text").
	Text string `json:"text,omitempty"`

	// Data is the base64-encoded data (for type="image").
	Data string `json:"data,omitempty"`

	// MimeType is the MIME type for binary content.
	MimeType string `json:"mimeType,omitempty"`
}

// AvailableTool is a tool joined with its providing server, as exposed to
// the orchestrator's tool-calling loop.
type AvailableTool struct {
	// ServerID identifies the providing server.
	ServerID string `json:"serverId"`

	// ServerName is the providing server's display name.
	ServerName string `json:"serverName"`

	// Tool is the tool definition.
	Tool
}
