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

// Package mcptest provides mock protocol clients and dialers for exercising
// the invoker and connection manager without real subprocesses or streams.
package mcptest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tombee/mcpd/internal/mcp"
)

// MockClient implements mcp.ProtocolClient for testing.
type MockClient struct {
	mu        sync.RWMutex
	tools     []mcp.Tool
	callFunc  func(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResponse, error)
	pingFunc  func(ctx context.Context) error
	closeFunc func() error
	callDelay time.Duration
	closed    bool
}

// NewMockClient creates a mock client exposing the given tools.
func NewMockClient(tools []mcp.Tool) *MockClient {
	return &MockClient{tools: tools}
}

// WithCallFunc sets a custom tool-call handler.
func (c *MockClient) WithCallFunc(fn func(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResponse, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callFunc = fn
	return c
}

// WithPingFunc sets a custom ping handler.
func (c *MockClient) WithPingFunc(fn func(ctx context.Context) error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingFunc = fn
	return c
}

// WithCloseFunc sets a custom close handler.
func (c *MockClient) WithCloseFunc(fn func() error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeFunc = fn
	return c
}

// WithCallDelay makes every call block for the given duration (or until the
// context is cancelled).
func (c *MockClient) WithCallDelay(d time.Duration) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callDelay = d
	return c
}

// ListTools returns the configured tool list.
func (c *MockClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tools := make([]mcp.Tool, len(c.tools))
	copy(tools, c.tools)
	return tools, nil
}

// CallTool executes the configured handler, defaulting to an echo response.
func (c *MockClient) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResponse, error) {
	c.mu.RLock()
	delay := c.callDelay
	callFunc := c.callFunc
	c.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if callFunc != nil {
		return callFunc(ctx, name, args)
	}

	return &mcp.ToolCallResponse{
		Content: []mcp.ContentItem{
			{Type: "text", Text: fmt.Sprintf("mock response for %s", name)},
		},
	}, nil
}

// Ping returns success unless a custom handler is configured.
func (c *MockClient) Ping(ctx context.Context) error {
	c.mu.RLock()
	pingFunc := c.pingFunc
	c.mu.RUnlock()

	if pingFunc != nil {
		return pingFunc(ctx)
	}
	return nil
}

// Close records the close and runs the configured handler.
func (c *MockClient) Close() error {
	c.mu.Lock()
	c.closed = true
	closeFunc := c.closeFunc
	c.mu.Unlock()

	if closeFunc != nil {
		return closeFunc()
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *MockClient) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// MockDialer implements mcp.Dialer for testing. By default every Connect
// succeeds and yields a fresh MockClient with the configured tools.
type MockDialer struct {
	mu           sync.Mutex
	tools        []mcp.Tool
	connectFunc  func(ctx context.Context, serverID string, cfg mcp.TransportConfig) (*mcp.Connection, error)
	connectDelay time.Duration
	connectErr   error
	connects     int
	lastClient   *MockClient
}

// NewMockDialer creates a dialer whose connections expose the given tools.
func NewMockDialer(tools []mcp.Tool) *MockDialer {
	return &MockDialer{tools: tools}
}

// WithConnectFunc replaces the connect behavior entirely.
func (d *MockDialer) WithConnectFunc(fn func(ctx context.Context, serverID string, cfg mcp.TransportConfig) (*mcp.Connection, error)) *MockDialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectFunc = fn
	return d
}

// WithConnectDelay makes Connect block for the given duration (or until the
// context is cancelled, mirroring a connect timeout).
func (d *MockDialer) WithConnectDelay(delay time.Duration) *MockDialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectDelay = delay
	return d
}

// WithConnectErr makes every Connect fail with the given error.
func (d *MockDialer) WithConnectErr(err error) *MockDialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectErr = err
	return d
}

// Connect implements mcp.Dialer.
func (d *MockDialer) Connect(ctx context.Context, serverID string, cfg mcp.TransportConfig) (*mcp.Connection, error) {
	d.mu.Lock()
	d.connects++
	connectFunc := d.connectFunc
	delay := d.connectDelay
	connectErr := d.connectErr
	d.mu.Unlock()

	if connectFunc != nil {
		return connectFunc(ctx, serverID, cfg)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, mcp.ErrConnectionTimeout(serverID, mcp.ConnectTimeout.String())
		}
	}

	if connectErr != nil {
		return nil, connectErr
	}

	client := NewMockClient(d.tools)
	d.mu.Lock()
	d.lastClient = client
	d.mu.Unlock()

	return &mcp.Connection{ServerID: serverID, Client: client}, nil
}

// Connects returns the number of Connect calls observed.
func (d *MockDialer) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// LastClient returns the most recently created mock client, or nil.
func (d *MockDialer) LastClient() *MockClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastClient
}
