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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_RequiresPathAndCallback(t *testing.T) {
	_, err := NewConfigWatcher(ConfigWatcherConfig{OnChange: func() {}})
	require.Error(t, err)

	_, err = NewConfigWatcher(ConfigWatcherConfig{Path: "x.yaml"})
	require.Error(t, err)
}

func TestConfigWatcher_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0o644))

	var fired atomic.Int32
	w, err := NewConfigWatcher(ConfigWatcherConfig{
		Path:          path,
		OnChange:      func() { fired.Add(1) },
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("servers:\n  a:\n    transport: stdio\n    command: npx\n"), 0o644))

	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConfigWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0o644))

	var fired atomic.Int32
	w, err := NewConfigWatcher(ConfigWatcherConfig{
		Path:          path,
		OnChange:      func() { fired.Add(1) },
		DebounceDelay: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Close()

	// A burst of writes inside the debounce window collapses to one sync.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0o644))

	var fired atomic.Int32
	w, err := NewConfigWatcher(ConfigWatcherConfig{
		Path:          path,
		OnChange:      func() { fired.Add(1) },
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestConfigWatcher_FiresOnCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")

	var fired atomic.Int32
	w, err := NewConfigWatcher(ConfigWatcherConfig{
		Path:          path,
		OnChange:      func() { fired.Add(1) },
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Close()

	// The file did not exist when the watcher started.
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0o644))

	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConfigWatcher_CloseStopsEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0o644))

	var fired atomic.Int32
	w, err := NewConfigWatcher(ConfigWatcherConfig{
		Path:          path,
		OnChange:      func() { fired.Add(1) },
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
