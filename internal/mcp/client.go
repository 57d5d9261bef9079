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

// Transport adapter over the mcp-go protocol client.
// Both transport variants share the same connect sequence (create, start,
// initialize) raced against a fixed connect budget; stdio additionally owns
// the spawned child process for lifecycle control.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
)

// ConnectTimeout is the fixed budget for establishing a connection. If the
// handshake has not completed by then the attempt is abandoned and reported
// as a CONNECTION_TIMEOUT error.
const ConnectTimeout = 10 * time.Second

// clientInfo identifies this client in the protocol handshake.
var clientInfo = mcpproto.Implementation{
	Name:    "mcpd",
	Version: "0.1.0",
}

// Connection is a live protocol connection to one server. It is owned
// exclusively by the connection manager and never shared across server ids.
type Connection struct {
	// ServerID is the owning server's identifier.
	ServerID string

	// Client is the protocol client handle.
	Client ProtocolClient

	// Process is the spawned child process, present for stdio transports
	// only. Kept for force-kill during shutdown.
	Process *os.Process
}

// Close closes the protocol session and, for stdio connections, terminates
// the child process. Either step failing does not prevent the other; the
// first error is returned.
func (c *Connection) Close() error {
	var firstErr error
	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Process != nil {
		if err := c.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// client wraps the mcp-go client and adapts its request/response shapes to
// the package types.
type client struct {
	mc *mcpclient.Client
}

var _ ProtocolClient = (*client)(nil)

// TransportDialer is the production Dialer. It builds a stdio or sse
// protocol client per the configuration's transport variant.
type TransportDialer struct{}

var _ Dialer = (*TransportDialer)(nil)

// NewDialer creates the production transport dialer.
func NewDialer() *TransportDialer {
	return &TransportDialer{}
}

// Connect establishes a connection to the configured server. The create,
// start and initialize steps all run under the fixed connect budget; if the
// budget is exceeded the attempt is abandoned, any partially acquired
// resources are released, and a CONNECTION_TIMEOUT error is returned.
func (d *TransportDialer) Connect(ctx context.Context, serverID string, cfg TransportConfig) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	mc, err := newProtocolClient(cfg)
	if err != nil {
		return nil, ErrConnectionFailure(serverID, err)
	}

	if err := mc.Start(ctx); err != nil {
		_ = mc.Close()
		return nil, classifyConnectError(ctx, serverID, err)
	}

	initReq := mcpproto.InitializeRequest{
		Params: mcpproto.InitializeParams{
			ProtocolVersion: mcpproto.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcpproto.ClientCapabilities{},
			ClientInfo:      clientInfo,
		},
	}
	if _, err := mc.Initialize(ctx, initReq); err != nil {
		_ = mc.Close()
		return nil, classifyConnectError(ctx, serverID, err)
	}

	conn := &Connection{
		ServerID: serverID,
		Client:   &client{mc: mc},
	}
	if cfg.Kind == TransportStdio {
		conn.Process = extractProcess(mc)
	}
	return conn, nil
}

// newProtocolClient builds the transport-specific mcp-go client.
func newProtocolClient(cfg TransportConfig) (*mcpclient.Client, error) {
	switch cfg.Kind {
	case TransportStdio:
		return mcpclient.NewStdioMCPClient(cfg.Command, cfg.EnvSlice(), cfg.Args...)
	case TransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	}
	return nil, fmt.Errorf("unsupported transport %q", cfg.Kind)
}

// classifyConnectError maps a failed connect attempt to the error taxonomy:
// deadline expiry means the connect budget was exceeded, anything else is a
// transport-level failure.
func classifyConnectError(ctx context.Context, serverID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrConnectionTimeout(serverID, ConnectTimeout.String())
	}
	return ErrConnectionFailure(serverID, err)
}

// extractProcess attempts to extract the underlying OS process from the
// mcp-go client's stdio transport. Uses reflection to access the transport's
// Cmd field. Returns nil if extraction fails (non-fatal: shutdown then
// relies on the session close alone).
func extractProcess(mc *mcpclient.Client) *os.Process {
	if mc == nil {
		return nil
	}

	tr := mc.GetTransport()
	if tr == nil {
		return nil
	}

	transportVal := reflect.ValueOf(tr)
	if transportVal.Kind() == reflect.Ptr {
		transportVal = transportVal.Elem()
	}
	if transportVal.Kind() != reflect.Struct {
		return nil
	}

	cmdField := transportVal.FieldByName("Cmd")
	if !cmdField.IsValid() || cmdField.Kind() != reflect.Ptr || cmdField.IsNil() {
		return nil
	}

	processField := cmdField.Elem().FieldByName("Process")
	if !processField.IsValid() || processField.IsNil() {
		return nil
	}

	if proc, ok := processField.Interface().(*os.Process); ok {
		return proc
	}
	return nil
}

// ListTools retrieves the tool definitions exposed by the server.
func (c *client) ListTools(ctx context.Context) ([]Tool, error) {
	result, err := c.mc.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]Tool, len(result.Tools))
	for i, tool := range result.Tools {
		schemaBytes, err := toolSchemaBytes(tool)
		if err != nil {
			return nil, err
		}
		tools[i] = Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaBytes,
		}
	}
	return tools, nil
}

// toolSchemaBytes extracts the raw input schema from a protocol tool
// definition, falling back to marshalling when the raw form is absent.
func toolSchemaBytes(tool mcpproto.Tool) ([]byte, error) {
	if len(tool.RawInputSchema) > 0 {
		return tool.RawInputSchema, nil
	}

	toolBytes, err := tool.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool %s: %w", tool.Name, err)
	}
	var toolMap map[string]any
	if err := json.Unmarshal(toolBytes, &toolMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool %s: %w", tool.Name, err)
	}
	inputSchema, ok := toolMap["inputSchema"]
	if !ok {
		return nil, nil
	}
	schemaBytes, err := json.Marshal(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input schema for %s: %w", tool.Name, err)
	}
	return schemaBytes, nil
}

// CallTool executes a tool with the given arguments.
func (c *client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolCallResponse, error) {
	req := mcpproto.CallToolRequest{
		Params: mcpproto.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}

	result, err := c.mc.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}

	response := &ToolCallResponse{
		IsError: result.IsError,
		Content: make([]ContentItem, len(result.Content)),
	}
	for i, content := range result.Content {
		item, err := convertContent(content)
		if err != nil {
			return nil, err
		}
		response.Content[i] = item
	}
	return response, nil
}

// convertContent maps a protocol content value onto a ContentItem, using
// type assertions for the common cases and a JSON round-trip as fallback.
func convertContent(content mcpproto.Content) (ContentItem, error) {
	if textContent, ok := mcpproto.AsTextContent(content); ok {
		return ContentItem{Type: textContent.Type, Text: textContent.Text}, nil
	}
	if imageContent, ok := mcpproto.AsImageContent(content); ok {
		return ContentItem{
			Type:     imageContent.Type,
			Data:     imageContent.Data,
			MimeType: imageContent.MIMEType,
		}, nil
	}

	contentBytes, err := json.Marshal(content)
	if err != nil {
		return ContentItem{}, fmt.Errorf("failed to marshal content: %w", err)
	}
	var contentMap map[string]any
	if err := json.Unmarshal(contentBytes, &contentMap); err != nil {
		return ContentItem{}, fmt.Errorf("failed to unmarshal content: %w", err)
	}

	item := ContentItem{}
	if contentType, ok := contentMap["type"].(string); ok {
		item.Type = contentType
	}
	if text, ok := contentMap["text"].(string); ok {
		item.Text = text
	}
	if data, ok := contentMap["data"].(string); ok {
		item.Data = data
	}
	if mimeType, ok := contentMap["mimeType"].(string); ok {
		item.MimeType = mimeType
	}
	return item, nil
}

// Ping checks whether the server is still responsive.
func (c *client) Ping(ctx context.Context) error {
	return c.mc.Ping(ctx)
}

// Close closes the protocol session.
func (c *client) Close() error {
	return c.mc.Close()
}
