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
	"fmt"
	"log/slog"
	"sync"
)

// ConnectionManager is the process-wide registry of live connections, keyed
// by server id. It enforces at most one live connection per server and
// guarantees teardown of every registered connection on shutdown.
//
// It is constructed explicitly by the host's startup sequence and passed by
// reference to every consumer; there is no package-level instance.
type ConnectionManager struct {
	// conns maps server id to its single live connection.
	conns map[string]*Connection

	// locks holds the per-server mutexes that serialize connect and close
	// for the same server id.
	locks map[string]*sync.Mutex

	// logger is used for structured logging.
	logger *slog.Logger

	// closed is set once Shutdown has run; no connection may register after.
	closed bool

	// mu protects conns, locks and closed.
	mu sync.Mutex
}

// NewConnectionManager creates an empty connection manager.
func NewConnectionManager(logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		conns:  make(map[string]*Connection),
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// Lock acquires the per-server mutex for serverID and returns its release
// function. Every connect/close sequence for a server must run under this
// lock so only one is in flight per server at a time.
func (m *ConnectionManager) Lock(serverID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[serverID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[serverID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Set registers the live connection for a server. It fails if a connection
// is already registered for the server id or if the manager has shut down.
func (m *ConnectionManager) Set(serverID string, conn *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("connection manager is shut down")
	}
	if _, exists := m.conns[serverID]; exists {
		return fmt.Errorf("connection already registered for server %s", serverID)
	}
	m.conns[serverID] = conn
	return nil
}

// Get returns the live connection for a server, if any.
func (m *ConnectionManager) Get(serverID string) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[serverID]
	return conn, ok
}

// Has reports whether a live connection is registered for a server.
func (m *ConnectionManager) Has(serverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[serverID]
	return ok
}

// Delete closes and removes the connection for a server. Absent entries are
// a no-op. Close errors are logged, not propagated; the entry is removed
// regardless.
func (m *ConnectionManager) Delete(serverID string) {
	m.mu.Lock()
	conn, ok := m.conns[serverID]
	delete(m.conns, serverID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := conn.Close(); err != nil {
		m.logger.Warn("failed to close connection",
			"server", serverID,
			"error", err,
		)
	}
}

// All returns a snapshot of the registered connections by server id.
func (m *ConnectionManager) All() map[string]*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]*Connection, len(m.conns))
	for id, conn := range m.conns {
		snapshot[id] = conn
	}
	return snapshot
}

// Count returns the number of registered connections.
func (m *ConnectionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Shutdown closes every registered connection and terminates every owned
// subprocess. It runs to completion even if individual closes fail, and the
// manager accepts no new connections afterwards. Invoked by the host's own
// lifecycle management rather than by signal handling inside this package.
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conns := make(map[string]*Connection, len(m.conns))
	for id, conn := range m.conns {
		conns[id] = conn
	}
	m.conns = make(map[string]*Connection)
	m.mu.Unlock()

	for id, conn := range conns {
		if err := conn.Close(); err != nil {
			m.logger.Warn("failed to close connection during shutdown",
				"server", id,
				"error", err,
			)
		}
	}

	m.logger.Info("connection manager shut down", "connections_closed", len(conns))
}
