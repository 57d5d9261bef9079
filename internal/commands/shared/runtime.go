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

package shared

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tombee/mcpd/internal/log"
	"github.com/tombee/mcpd/internal/mcp"
	"github.com/tombee/mcpd/internal/store"
)

// Runtime bundles the registry, connection table and invoker a command
// needs. Each CLI invocation constructs one and closes it on exit; the
// daemon keeps one alive for its whole lifetime.
type Runtime struct {
	Store       *store.SQLiteStore
	Connections *mcp.ConnectionManager
	Tracker     *mcp.StatusTracker
	Invoker     *mcp.Invoker
	Logger      *slog.Logger
}

// RuntimeOptions tune the runtime for the daemon.
type RuntimeOptions struct {
	// CallTimeout bounds individual tool calls (defaults to 30s).
	CallTimeout time.Duration

	// CallsPerMinute caps tool calls per server (0 = unlimited).
	CallsPerMinute int
}

// OpenRuntime opens the registry database and wires the invoker stack.
func OpenRuntime(opts RuntimeOptions) (*Runtime, error) {
	logger := log.New(log.FromEnv())

	dbPath := DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	conns := mcp.NewConnectionManager(logger)
	tracker := mcp.NewStatusTracker(st, logger)
	invoker := mcp.NewInvoker(mcp.InvokerConfig{
		Store:          st,
		Connections:    conns,
		Dialer:         mcp.NewDialer(),
		Tracker:        tracker,
		Logger:         logger,
		CallTimeout:    opts.CallTimeout,
		CallsPerMinute: opts.CallsPerMinute,
	})

	return &Runtime{
		Store:       st,
		Connections: conns,
		Tracker:     tracker,
		Invoker:     invoker,
		Logger:      logger,
	}, nil
}

// Close tears down live connections and closes the database.
func (r *Runtime) Close() error {
	r.Connections.Shutdown()
	return r.Store.Close()
}
