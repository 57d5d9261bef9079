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
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ServersFile is the YAML file format for declarative server configuration.
//
//	servers:
//	  filesystem:
//	    transport: stdio
//	    command: npx
//	    args: ["-y", "@modelcontextprotocol/server-filesystem"]
//	  search:
//	    transport: sse
//	    url: https://search.internal/sse
//	    headers:
//	      Authorization: Bearer abc
type ServersFile struct {
	// Servers maps server name to its configuration entry.
	Servers map[string]*ServersFileEntry `yaml:"servers"`
}

// ServersFileEntry is one server definition in the servers file.
type ServersFileEntry struct {
	// TransportConfig fields are inlined (transport, command, args, env,
	// url, headers, tool_patterns).
	TransportConfig `yaml:",inline"`

	// Disabled excludes the server from discovery and invocation while
	// keeping its registration.
	Disabled bool `yaml:"disabled,omitempty"`
}

// LoadServersFile reads and validates a servers file. A missing file yields
// an empty definition, not an error.
func LoadServersFile(path string) (*ServersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ServersFile{Servers: map[string]*ServersFileEntry{}}, nil
		}
		return nil, fmt.Errorf("failed to read servers file %s: %w", path, err)
	}

	var file ServersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse servers file %s: %w", path, err)
	}
	if file.Servers == nil {
		file.Servers = map[string]*ServersFileEntry{}
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks every entry's name and transport configuration.
func (f *ServersFile) Validate() error {
	for name, entry := range f.Servers {
		if !ServerNameRegex.MatchString(name) {
			return ErrConfiguration(fmt.Sprintf("invalid server name %q", name))
		}
		if err := entry.TransportConfig.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", name, err)
		}
	}
	return nil
}

// SyncFromFile reconciles the registry with a servers file: entries are
// upserted by name. Servers added outside the file (for example via the
// CLI) are left alone unless the file defines the same name; removing an
// entry from the file does not unregister it.
func SyncFromFile(ctx context.Context, store Store, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := LoadServersFile(path)
	if err != nil {
		return err
	}

	existing, err := store.ListServers(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]*Server, len(existing))
	for _, server := range existing {
		byName[server.Name] = server
	}

	for name, entry := range file.Servers {
		server, ok := byName[name]
		if !ok {
			server = &Server{
				ID:     uuid.NewString(),
				Name:   name,
				Status: StatusDisconnected,
			}
		}
		server.Config = entry.TransportConfig
		server.Enabled = !entry.Disabled

		if err := store.SaveServer(ctx, server); err != nil {
			return fmt.Errorf("failed to save server %s: %w", name, err)
		}

		if !ok {
			logger.Info("registered server from file", "server", name)
		}
	}

	return nil
}

// ExportServersFile renders the registered servers as a servers file.
func ExportServersFile(ctx context.Context, store Store) ([]byte, error) {
	servers, err := store.ListServers(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })

	file := ServersFile{Servers: make(map[string]*ServersFileEntry, len(servers))}
	for _, server := range servers {
		file.Servers[server.Name] = &ServersFileEntry{
			TransportConfig: server.Config,
			Disabled:        !server.Enabled,
		}
	}

	return yaml.Marshal(&file)
}
