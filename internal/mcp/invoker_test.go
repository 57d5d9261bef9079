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

package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/mcpd/internal/mcp"
	"github.com/tombee/mcpd/internal/mcp/mcptest"
)

// memStore is an in-memory mcp.Store for invoker tests.
type memStore struct {
	mu      sync.Mutex
	servers map[string]*mcp.Server
}

func newMemStore() *memStore {
	return &memStore{servers: make(map[string]*mcp.Server)}
}

func (s *memStore) SaveServer(ctx context.Context, server *mcp.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *server
	s.servers[server.ID] = &cp
	return nil
}

func (s *memStore) GetServer(ctx context.Context, id string) (*mcp.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	server, ok := s.servers[id]
	if !ok {
		return nil, mcp.ErrServerNotFound(id)
	}
	cp := *server
	return &cp, nil
}

func (s *memStore) ListServers(ctx context.Context) ([]*mcp.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	servers := make([]*mcp.Server, 0, len(s.servers))
	for _, server := range s.servers {
		cp := *server
		servers = append(servers, &cp)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers, nil
}

func (s *memStore) ListEnabledServers(ctx context.Context) ([]*mcp.Server, error) {
	all, _ := s.ListServers(ctx)
	enabled := make([]*mcp.Server, 0, len(all))
	for _, server := range all {
		if server.Enabled {
			enabled = append(enabled, server)
		}
	}
	return enabled, nil
}

func (s *memStore) UpdateServerStatus(ctx context.Context, id string, status mcp.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if server, ok := s.servers[id]; ok {
		server.Status = status
	}
	return nil
}

func (s *memStore) DeleteServer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.servers, id)
	return nil
}

func (s *memStore) ReplaceTools(ctx context.Context, serverID string, tools []mcp.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if server, ok := s.servers[serverID]; ok {
		server.Tools = append([]mcp.Tool(nil), tools...)
	}
	return nil
}

func (s *memStore) ToolsByServer(ctx context.Context, serverID string) ([]mcp.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if server, ok := s.servers[serverID]; ok {
		return append([]mcp.Tool(nil), server.Tools...), nil
	}
	return nil, nil
}

func (s *memStore) AllAvailableTools(ctx context.Context) ([]mcp.AvailableTool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var available []mcp.AvailableTool
	for _, server := range s.servers {
		if !server.Enabled || server.Status != mcp.StatusConnected {
			continue
		}
		for _, tool := range server.Tools {
			available = append(available, mcp.AvailableTool{
				ServerID:   server.ID,
				ServerName: server.Name,
				Tool:       tool,
			})
		}
	}
	return available, nil
}

func (s *memStore) status(id string) mcp.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if server, ok := s.servers[id]; ok {
		return server.Status
	}
	return ""
}

// invokerFixture wires an invoker against the in-memory store and mocks.
type invokerFixture struct {
	store   *memStore
	conns   *mcp.ConnectionManager
	dialer  *mcptest.MockDialer
	tracker *mcp.StatusTracker
	invoker *mcp.Invoker
}

func newFixture(t *testing.T, tools []mcp.Tool) *invokerFixture {
	t.Helper()

	store := newMemStore()
	conns := mcp.NewConnectionManager(nil)
	dialer := mcptest.NewMockDialer(tools)
	tracker := mcp.NewStatusTracker(store, nil)

	invoker := mcp.NewInvoker(mcp.InvokerConfig{
		Store:       store,
		Connections: conns,
		Dialer:      dialer,
		Tracker:     tracker,
	})

	return &invokerFixture{
		store:   store,
		conns:   conns,
		dialer:  dialer,
		tracker: tracker,
		invoker: invoker,
	}
}

func (f *invokerFixture) addServer(t *testing.T, id string, tools []mcp.Tool) {
	t.Helper()

	cfg, err := mcp.NewStdioConfig("echo-server", nil, nil)
	require.NoError(t, err)

	server := &mcp.Server{
		ID:      id,
		Name:    id,
		Config:  cfg,
		Enabled: true,
		Status:  mcp.StatusDisconnected,
		Tools:   tools,
	}
	require.NoError(t, f.store.SaveServer(context.Background(), server))
}

var echoTools = []mcp.Tool{
	{
		Name:        "echo",
		Description: "Echo the input",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
	},
}

func TestExecute_Success(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)

	result, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "echo", result.ToolName)
	require.NotEmpty(t, result.Content)
	assert.Equal(t, "mock response for echo", result.Content[0].Text)

	// On-demand policy: no connection outlives the call.
	assert.Equal(t, 0, f.conns.Count())
	assert.Equal(t, 1, f.dialer.Connects())
	assert.True(t, f.dialer.LastClient().Closed())
	assert.Equal(t, mcp.StatusConnected, f.tracker.Get("srv-1"))
}

func TestExecute_ServerNotFound(t *testing.T) {
	f := newFixture(t, echoTools)

	result, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID: "missing",
		ToolName: "echo",
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeServerNotFound))
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 0, f.dialer.Connects())
}

func TestExecute_DisabledServer(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)
	require.NoError(t, f.store.SaveServer(context.Background(), &mcp.Server{
		ID:      "srv-1",
		Name:    "srv-1",
		Config:  mustStdioConfig(t),
		Enabled: false,
		Tools:   echoTools,
	}))

	_, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeConfiguration))
	assert.Equal(t, 0, f.dialer.Connects())
}

func TestExecute_ToolNotFound(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)

	_, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID: "srv-1",
		ToolName: "no_such_tool",
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeToolNotFound))
	assert.Equal(t, 0, f.dialer.Connects())
}

func TestExecute_ValidationFailsBeforeConnect(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)

	result, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeValidation))
	assert.Equal(t, []string{"text"}, mcp.AsError(err).Missing)
	assert.False(t, result.Success)

	// Validation failures never dial and never touch the status.
	assert.Equal(t, 0, f.dialer.Connects())
	assert.Equal(t, mcp.StatusDisconnected, f.tracker.Get("srv-1"))
}

func TestExecute_ConnectFailure(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)
	f.dialer.WithConnectErr(mcp.ErrConnectionFailure("srv-1", errors.New("exec: not found")))

	_, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeConnectionFailure))
	assert.Equal(t, 0, f.conns.Count())
	assert.Equal(t, mcp.StatusError, f.tracker.Get("srv-1"))
	assert.Equal(t, mcp.StatusError, f.store.status("srv-1"))
}

func TestExecute_ConnectTimeout(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)
	f.dialer.WithConnectDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := f.invoker.Execute(ctx, mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeConnectionTimeout))

	// The hung attempt leaves nothing behind.
	assert.Equal(t, 0, f.conns.Count())
	assert.Equal(t, mcp.StatusError, f.tracker.Get("srv-1"))
}

func TestExecute_RemoteToolError(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)
	f.dialer.WithConnectFunc(func(ctx context.Context, serverID string, cfg mcp.TransportConfig) (*mcp.Connection, error) {
		client := mcptest.NewMockClient(echoTools).WithCallFunc(
			func(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResponse, error) {
				return &mcp.ToolCallResponse{
					IsError: true,
					Content: []mcp.ContentItem{{Type: "text", Text: "file not found"}},
				}, nil
			})
		return &mcp.Connection{ServerID: serverID, Client: client}, nil
	})

	result, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeToolExecution))
	assert.Contains(t, err.Error(), "file not found")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Content)

	// A tool-level error is not a transport failure.
	assert.Equal(t, mcp.StatusConnected, f.tracker.Get("srv-1"))
	assert.Equal(t, 0, f.conns.Count())
}

func TestExecute_TransportFailureMidCall(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", echoTools)
	f.dialer.WithConnectFunc(func(ctx context.Context, serverID string, cfg mcp.TransportConfig) (*mcp.Connection, error) {
		client := mcptest.NewMockClient(echoTools).WithCallFunc(
			func(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResponse, error) {
				return nil, errors.New("broken pipe")
			})
		return &mcp.Connection{ServerID: serverID, Client: client}, nil
	})

	_, err := f.invoker.Execute(context.Background(), mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeConnectionFailure))
	assert.Equal(t, mcp.StatusError, f.tracker.Get("srv-1"))
	assert.Equal(t, 0, f.conns.Count())
}

func TestExecute_RateLimited(t *testing.T) {
	store := newMemStore()
	conns := mcp.NewConnectionManager(nil)
	dialer := mcptest.NewMockDialer(echoTools)
	tracker := mcp.NewStatusTracker(store, nil)

	invoker := mcp.NewInvoker(mcp.InvokerConfig{
		Store:          store,
		Connections:    conns,
		Dialer:         dialer,
		Tracker:        tracker,
		CallsPerMinute: 2,
	})

	cfg, err := mcp.NewStdioConfig("echo-server", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveServer(context.Background(), &mcp.Server{
		ID: "srv-1", Name: "srv-1", Config: cfg, Enabled: true, Tools: echoTools,
	}))

	req := mcp.ToolCallRequest{
		ServerID:  "srv-1",
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hi"},
	}

	// The burst allows the first two calls; the third is rejected.
	for i := 0; i < 2; i++ {
		_, err := invoker.Execute(context.Background(), req)
		require.NoError(t, err)
	}
	_, err = invoker.Execute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeRateLimited))
}

func TestDiscover(t *testing.T) {
	discovered := []mcp.Tool{
		{Name: "read_file", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "write_file"},
	}
	f := newFixture(t, discovered)
	f.addServer(t, "srv-1", nil)

	tools, err := f.invoker.Discover(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	// Tools are persisted and the connection released.
	persisted, err := f.store.ToolsByServer(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
	assert.Equal(t, 0, f.conns.Count())
	assert.Equal(t, mcp.StatusConnected, f.tracker.Get("srv-1"))
}

func TestDiscover_AppliesToolPatterns(t *testing.T) {
	discovered := []mcp.Tool{
		{Name: "read_file"},
		{Name: "write_file"},
		{Name: "search"},
	}
	f := newFixture(t, discovered)

	cfg, err := mcp.NewStdioConfig("echo-server", nil, nil)
	require.NoError(t, err)
	cfg.ToolPatterns = []string{"*_file"}
	require.NoError(t, f.store.SaveServer(context.Background(), &mcp.Server{
		ID: "srv-1", Name: "srv-1", Config: cfg, Enabled: true,
	}))

	tools, err := f.invoker.Discover(context.Background(), "srv-1")
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "read_file", tools[0].Name)
	assert.Equal(t, "write_file", tools[1].Name)
}

func TestTestServer(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", nil)

	require.NoError(t, f.invoker.TestServer(context.Background(), "srv-1"))
	assert.Equal(t, mcp.StatusConnected, f.tracker.Get("srv-1"))
	assert.Equal(t, 0, f.conns.Count())
	assert.True(t, f.dialer.LastClient().Closed())
}

func TestTestServer_PingFailure(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", nil)
	f.dialer.WithConnectFunc(func(ctx context.Context, serverID string, cfg mcp.TransportConfig) (*mcp.Connection, error) {
		client := mcptest.NewMockClient(nil).WithPingFunc(func(ctx context.Context) error {
			return errors.New("no response")
		})
		return &mcp.Connection{ServerID: serverID, Client: client}, nil
	})

	err := f.invoker.TestServer(context.Background(), "srv-1")
	require.Error(t, err)
	assert.True(t, mcp.IsCode(err, mcp.ErrorCodeConnectionFailure))
	assert.Equal(t, mcp.StatusError, f.tracker.Get("srv-1"))
}

func TestRefreshAll_IsolatesFailures(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-ok", nil)
	f.addServer(t, "srv-bad", nil)

	// srv-bad hangs past its deadline; srv-ok succeeds normally.
	f.dialer.WithConnectFunc(func(ctx context.Context, serverID string, cfg mcp.TransportConfig) (*mcp.Connection, error) {
		if serverID == "srv-bad" {
			select {
			case <-ctx.Done():
				return nil, mcp.ErrConnectionTimeout(serverID, mcp.ConnectTimeout.String())
			case <-time.After(10 * time.Second):
			}
		}
		return &mcp.Connection{ServerID: serverID, Client: mcptest.NewMockClient(echoTools)}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results, err := f.invoker.RefreshAll(ctx, "srv-ok", "srv-bad")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := make(map[string]mcp.RefreshResult)
	for _, r := range results {
		byID[r.ServerID] = r
	}

	require.NoError(t, byID["srv-ok"].Err)
	assert.Equal(t, 1, byID["srv-ok"].ToolCount)
	require.Error(t, byID["srv-bad"].Err)
	assert.True(t, mcp.IsCode(byID["srv-bad"].Err, mcp.ErrorCodeConnectionTimeout))

	assert.Equal(t, mcp.StatusConnected, f.tracker.Get("srv-ok"))
	assert.Equal(t, mcp.StatusError, f.tracker.Get("srv-bad"))
	assert.Equal(t, 0, f.conns.Count())
}

func TestRefreshAll_DefaultsToEnabledServers(t *testing.T) {
	f := newFixture(t, echoTools)
	f.addServer(t, "srv-1", nil)

	cfg := mustStdioConfig(t)
	require.NoError(t, f.store.SaveServer(context.Background(), &mcp.Server{
		ID: "srv-off", Name: "srv-off", Config: cfg, Enabled: false,
	}))

	results, err := f.invoker.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "srv-1", results[0].ServerID)
}

func mustStdioConfig(t *testing.T) mcp.TransportConfig {
	t.Helper()
	cfg, err := mcp.NewStdioConfig("echo-server", nil, nil)
	require.NoError(t, err)
	return cfg
}
