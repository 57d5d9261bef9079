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

/*
Package mcp implements the Model Context Protocol (MCP) client subsystem of
mcpd: connection management across stdio and sse transports, tool discovery,
argument validation, and resilient tool invocation.

# Overview

The package consists of several components:

  - TransportDialer: opens protocol connections per a server's transport
    configuration (stdio subprocess or HTTP event stream), within a fixed
    10-second connect budget
  - ConnectionManager: the process-wide connection table, at most one live
    connection per server, guaranteed teardown on Shutdown
  - Invoker: end-to-end tool execution and concurrent fleet refresh
  - StatusTracker: the per-server status state machine
    (disconnected, connecting, connected, error)
  - Validator: argument validation compiled from declared tool input schemas

Persistence is behind the Store interface, implemented by internal/store on
SQLite.

# Tool invocation

	conns := mcp.NewConnectionManager(logger)
	tracker := mcp.NewStatusTracker(store, logger)
	inv := mcp.NewInvoker(mcp.InvokerConfig{
	    Store:       store,
	    Connections: conns,
	    Tracker:     tracker,
	    Logger:      logger,
	})

	result, err := inv.Execute(ctx, mcp.ToolCallRequest{
	    ServerID:  "filesystem",
	    ToolName:  "read_file",
	    Arguments: map[string]any{"path": "/etc/hosts"},
	})

Connections are opened on demand per call and closed afterwards; see
invoker.go for the policy rationale. Failures are classified per the error
taxonomy in errors.go and reported in-band through ToolCallResult so one
misbehaving server never takes down the caller's request loop.

# Shutdown

The ConnectionManager is constructed by the host's startup sequence and its
Shutdown method must be invoked on exit; it closes every registered session
and terminates every owned subprocess even when individual closes fail.
*/
package mcp
