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

// End-to-end tool execution: resolve server, validate arguments, connect,
// invoke, classify failures, and keep the status tracker current.
//
// Connection policy: on-demand. Every execute and discovery opens a fresh
// connection, registers it in the connection table for the duration of the
// operation so shutdown can tear it down mid-call, and closes and removes it
// afterwards. This bounds resource usage and avoids stale pooled
// connections at the cost of reconnect latency per call. Per-server locks
// serialize connect/close so at most one live connection per server exists.

package mcp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultCallTimeout bounds a single tool call unless the caller's context
// expires first.
const DefaultCallTimeout = 30 * time.Second

// Invoker orchestrates tool execution against registered servers.
type Invoker struct {
	store   Store
	conns   *ConnectionManager
	dialer  Dialer
	tracker *StatusTracker
	logger  *slog.Logger
	tracer  trace.Tracer

	callTimeout time.Duration

	// callsPerMinute caps tool calls per server; 0 disables limiting.
	callsPerMinute int
	limiterMu      sync.Mutex
	limiters       map[string]*rate.Limiter
}

// InvokerConfig configures the invoker.
type InvokerConfig struct {
	// Store is the server registry. Required.
	Store Store

	// Connections is the connection table. Required.
	Connections *ConnectionManager

	// Dialer opens protocol connections. Defaults to the transport dialer.
	Dialer Dialer

	// Tracker receives status transitions. Required.
	Tracker *StatusTracker

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// CallTimeout bounds individual tool calls (defaults to 30s).
	CallTimeout time.Duration

	// CallsPerMinute caps tool calls per server (0 = unlimited).
	CallsPerMinute int
}

// NewInvoker creates a tool invoker.
func NewInvoker(cfg InvokerConfig) *Invoker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = NewDialer()
	}
	callTimeout := cfg.CallTimeout
	if callTimeout == 0 {
		callTimeout = DefaultCallTimeout
	}

	return &Invoker{
		store:          cfg.Store,
		conns:          cfg.Connections,
		dialer:         dialer,
		tracker:        cfg.Tracker,
		logger:         logger,
		tracer:         otel.Tracer("mcpd/invoker"),
		callTimeout:    callTimeout,
		callsPerMinute: cfg.CallsPerMinute,
		limiters:       make(map[string]*rate.Limiter),
	}
}

// Execute runs a tool call end to end. The returned result is always
// non-nil and mirrors the error so the orchestrator can report failures
// in-band; the error carries the taxonomy code for programmatic callers.
//
// Configuration and validation failures are caller-local: they never touch
// connection state or stored status. Transport failures mark the server in
// error and remove any table entry; remote tool errors do neither.
func (inv *Invoker) Execute(ctx context.Context, req ToolCallRequest) (*ToolCallResult, error) {
	start := time.Now()

	ctx, span := inv.tracer.Start(ctx, "mcp.execute",
		trace.WithAttributes(
			attribute.String("mcp.server_id", req.ServerID),
			attribute.String("mcp.tool", req.ToolName),
		),
	)
	defer span.End()

	result, err := inv.execute(ctx, req, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (inv *Invoker) execute(ctx context.Context, req ToolCallRequest, start time.Time) (*ToolCallResult, error) {
	fail := func(err error, outcome string) (*ToolCallResult, error) {
		recordToolCall(req.ServerID, req.ToolName, outcome, time.Since(start))
		return &ToolCallResult{
			Success:   false,
			ToolName:  req.ToolName,
			Error:     err.Error(),
			Timestamp: time.Now(),
		}, err
	}

	server, err := inv.store.GetServer(ctx, req.ServerID)
	if err != nil {
		return fail(err, "server_not_found")
	}
	if !server.Enabled {
		return fail(NewError(ErrorCodeConfiguration, "server "+server.ID+" is disabled"), "disabled")
	}

	tool, ok := findTool(server.Tools, req.ToolName)
	if !ok {
		return fail(ErrToolNotFound(server.ID, req.ToolName), "tool_not_found")
	}

	validator := CompileSchema(tool.Name, tool.InputSchema, inv.logger)
	if err := validator.Validate(req.Arguments); err != nil {
		return fail(err, "validation")
	}

	if err := inv.allow(server.ID); err != nil {
		return fail(err, "rate_limited")
	}

	unlock := inv.conns.Lock(server.ID)
	defer unlock()

	conn, err := inv.connect(ctx, server)
	if err != nil {
		return fail(err, "connection")
	}
	defer func() {
		inv.conns.Delete(server.ID)
		setLiveConnections(inv.conns.Count())
	}()

	callCtx, cancel := context.WithTimeout(ctx, inv.callTimeout)
	defer cancel()

	resp, err := conn.Client.CallTool(callCtx, req.ToolName, req.Arguments)
	if err != nil {
		// Transport-level failure mid-call: drop the connection and mark
		// the server in error.
		inv.conns.Delete(server.ID)
		inv.tracker.MarkError(ctx, server.ID)
		return fail(ErrConnectionFailure(server.ID, err), "connection_failure")
	}

	// Remote tool errors are not connection failures; the transport worked.
	inv.tracker.MarkConnected(ctx, server.ID)

	if resp.IsError {
		err := ErrToolExecution(req.ToolName, contentText(resp.Content))
		result, _ := fail(err, "tool_error")
		result.Content = resp.Content
		return result, err
	}

	recordToolCall(server.ID, req.ToolName, "ok", time.Since(start))
	return &ToolCallResult{
		Success:   true,
		ToolName:  req.ToolName,
		Content:   resp.Content,
		Timestamp: time.Now(),
	}, nil
}

// connect opens an on-demand connection under the caller-held server lock,
// registers it, and keeps the status tracker current. The returned
// connection is already in the table; the caller removes it when done.
func (inv *Invoker) connect(ctx context.Context, server *Server) (*Connection, error) {
	ctx, span := inv.tracer.Start(ctx, "mcp.connect",
		trace.WithAttributes(
			attribute.String("mcp.server_id", server.ID),
			attribute.String("mcp.transport", string(server.Config.Kind)),
		),
	)
	defer span.End()

	inv.tracker.MarkConnecting(ctx, server.ID)

	conn, err := inv.dialer.Connect(ctx, server.ID, server.Config)
	if err != nil {
		inv.tracker.MarkError(ctx, server.ID)
		outcome := "failure"
		if IsCode(err, ErrorCodeConnectionTimeout) {
			outcome = "timeout"
		}
		recordConnect(server.ID, outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := inv.conns.Set(server.ID, conn); err != nil {
		_ = conn.Close()
		inv.tracker.MarkError(ctx, server.ID)
		return nil, ErrConnectionFailure(server.ID, err)
	}

	recordConnect(server.ID, "ok")
	setLiveConnections(inv.conns.Count())
	return conn, nil
}

// Discover connects to a server, lists its tools, applies the configured
// allow-patterns, and atomically replaces the persisted tool list. The
// connection is closed afterwards per the on-demand policy.
func (inv *Invoker) Discover(ctx context.Context, serverID string) ([]Tool, error) {
	ctx, span := inv.tracer.Start(ctx, "mcp.discover",
		trace.WithAttributes(attribute.String("mcp.server_id", serverID)),
	)
	defer span.End()

	server, err := inv.store.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	unlock := inv.conns.Lock(server.ID)
	defer unlock()

	conn, err := inv.connect(ctx, server)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer func() {
		inv.conns.Delete(server.ID)
		setLiveConnections(inv.conns.Count())
	}()

	listCtx, cancel := context.WithTimeout(ctx, inv.callTimeout)
	defer cancel()

	tools, err := conn.Client.ListTools(listCtx)
	if err != nil {
		inv.conns.Delete(server.ID)
		inv.tracker.MarkError(ctx, server.ID)
		err = ErrConnectionFailure(server.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tools = filterTools(tools, server.Config.ToolPatterns)

	if err := inv.store.ReplaceTools(ctx, server.ID, tools); err != nil {
		return nil, err
	}

	inv.tracker.MarkConnected(ctx, server.ID)
	recordDiscovery(server.ID, len(tools))

	inv.logger.Info("discovered tools",
		"server", server.ID,
		"count", len(tools),
	)
	return tools, nil
}

// TestServer connects to a server and pings it, reporting any failure. No
// tools are discovered and no connection is retained.
func (inv *Invoker) TestServer(ctx context.Context, serverID string) error {
	server, err := inv.store.GetServer(ctx, serverID)
	if err != nil {
		return err
	}

	unlock := inv.conns.Lock(server.ID)
	defer unlock()

	conn, err := inv.connect(ctx, server)
	if err != nil {
		return err
	}
	defer func() {
		inv.conns.Delete(server.ID)
		setLiveConnections(inv.conns.Count())
	}()

	pingCtx, cancel := context.WithTimeout(ctx, inv.callTimeout)
	defer cancel()

	if err := conn.Client.Ping(pingCtx); err != nil {
		inv.conns.Delete(server.ID)
		inv.tracker.MarkError(ctx, server.ID)
		return ErrConnectionFailure(server.ID, err)
	}

	inv.tracker.MarkConnected(ctx, server.ID)
	return nil
}

// RefreshResult is the outcome of one server's refresh during a fan-out.
type RefreshResult struct {
	// ServerID identifies the refreshed server.
	ServerID string

	// ToolCount is the number of tools discovered on success.
	ToolCount int

	// Err is the failure, if any.
	Err error
}

// RefreshAll connects to and discovers tools for every listed server
// concurrently, waiting for all attempts to settle. One server's failure
// never aborts the others; each result carries its own error. When
// serverIDs is empty, all enabled servers are refreshed.
func (inv *Invoker) RefreshAll(ctx context.Context, serverIDs ...string) ([]RefreshResult, error) {
	if len(serverIDs) == 0 {
		servers, err := inv.store.ListEnabledServers(ctx)
		if err != nil {
			return nil, err
		}
		for _, server := range servers {
			serverIDs = append(serverIDs, server.ID)
		}
	}

	results := make([]RefreshResult, len(serverIDs))
	var wg sync.WaitGroup
	for i, serverID := range serverIDs {
		wg.Add(1)
		go func(i int, serverID string) {
			defer wg.Done()
			tools, err := inv.Discover(ctx, serverID)
			results[i] = RefreshResult{
				ServerID:  serverID,
				ToolCount: len(tools),
				Err:       err,
			}
			if err != nil {
				inv.logger.Warn("refresh failed",
					"server", serverID,
					"error", err,
				)
			}
		}(i, serverID)
	}
	wg.Wait()

	return results, nil
}

// allow consults the per-server rate limiter.
func (inv *Invoker) allow(serverID string) error {
	if inv.callsPerMinute <= 0 {
		return nil
	}

	inv.limiterMu.Lock()
	limiter, ok := inv.limiters[serverID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(inv.callsPerMinute)/60.0), inv.callsPerMinute)
		inv.limiters[serverID] = limiter
	}
	inv.limiterMu.Unlock()

	if !limiter.Allow() {
		return ErrRateLimited(serverID)
	}
	return nil
}

// findTool looks up a tool by name in a server's persisted tool list.
func findTool(tools []Tool, name string) (Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

// filterTools applies the configured allow-patterns to discovered tools.
// Empty patterns expose everything.
func filterTools(tools []Tool, patterns []string) []Tool {
	if len(patterns) == 0 {
		return tools
	}

	filtered := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		for _, pattern := range patterns {
			if matched, err := doublestar.Match(pattern, tool.Name); err == nil && matched {
				filtered = append(filtered, tool)
				break
			}
		}
	}
	return filtered
}

// contentText concatenates the text content items of a response, used to
// surface remote tool error messages.
func contentText(items []ContentItem) string {
	var parts []string
	for _, item := range items {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	if len(parts) == 0 {
		return "tool execution failed"
	}
	return strings.Join(parts, "; ")
}
