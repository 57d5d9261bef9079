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
	"context"
	"log/slog"
	"sync"
)

// StatusTracker derives and exposes the per-server status state machine:
//
//	disconnected -> connecting -> {connected, error}
//	connected/error -> connecting (next invocation or explicit retry)
//
// Transitions are triggered only by the invoker and connection manager
// outcomes; the single external mutation allowed is SetDisconnected on
// manual disable. Status changes are mirrored to the store; persistence
// failures are logged, never propagated, since the in-memory view is the
// authoritative runtime state.
type StatusTracker struct {
	store  Store
	logger *slog.Logger

	mu       sync.RWMutex
	statuses map[string]Status
}

// NewStatusTracker creates a status tracker backed by the given store.
func NewStatusTracker(store Store, logger *slog.Logger) *StatusTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusTracker{
		store:    store,
		logger:   logger,
		statuses: make(map[string]Status),
	}
}

// Get returns the current status for a server. Servers never seen by the
// tracker report disconnected.
func (t *StatusTracker) Get(serverID string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if status, ok := t.statuses[serverID]; ok {
		return status
	}
	return StatusDisconnected
}

// MarkConnecting records the start of a connect attempt.
func (t *StatusTracker) MarkConnecting(ctx context.Context, serverID string) {
	t.set(ctx, serverID, StatusConnecting)
}

// MarkConnected records a successful connect or call.
func (t *StatusTracker) MarkConnected(ctx context.Context, serverID string) {
	t.set(ctx, serverID, StatusConnected)
}

// MarkError records a terminal connect or transport failure.
func (t *StatusTracker) MarkError(ctx context.Context, serverID string) {
	t.set(ctx, serverID, StatusError)
}

// SetDisconnected forces the disconnected state. Used on manual disable and
// on server deletion; no other external mutation is permitted.
func (t *StatusTracker) SetDisconnected(ctx context.Context, serverID string) {
	t.set(ctx, serverID, StatusDisconnected)
}

// Forget drops the in-memory entry for a deleted server.
func (t *StatusTracker) Forget(serverID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, serverID)
}

func (t *StatusTracker) set(ctx context.Context, serverID string, status Status) {
	t.mu.Lock()
	previous := t.statuses[serverID]
	t.statuses[serverID] = status
	t.mu.Unlock()

	if previous != status {
		t.logger.Debug("server status changed",
			"server", serverID,
			"from", string(previous),
			"to", string(status),
		)
	}

	if t.store == nil {
		return
	}
	if err := t.store.UpdateServerStatus(ctx, serverID, status); err != nil {
		t.logger.Warn("failed to persist server status",
			"server", serverID,
			"status", string(status),
			"error", err,
		)
	}
}
