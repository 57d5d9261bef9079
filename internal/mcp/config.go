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
	"regexp"
	"sort"
)

// ServerNameRegex validates MCP server names.
// Names must start with a letter and contain only letters, numbers, hyphens,
// and underscores. Maximum length is 64 characters.
var ServerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// TransportKind identifies the transport variant of a server configuration.
type TransportKind string

const (
	// TransportStdio spawns a child process and speaks the protocol over
	// its stdin/stdout pipes.
	TransportStdio TransportKind = "stdio"
	// TransportSSE opens an HTTP event-stream connection.
	TransportSSE TransportKind = "sse"
)

// TransportConfig is the tagged-union transport configuration for a server.
// Exactly one variant's fields may be set; Validate rejects configurations
// that mix stdio and sse fields rather than silently ignoring them.
type TransportConfig struct {
	// Kind selects the transport variant.
	Kind TransportKind `json:"transport" yaml:"transport"`

	// Command is the executable to run (stdio only).
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Args are the command-line arguments (stdio only).
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Env are environment variables for the child process (stdio only).
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// URL is the event-stream endpoint (sse only).
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Headers are custom HTTP headers sent on the stream request (sse only).
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// ToolPatterns is an optional allow-list of glob patterns applied to
	// tool names at discovery time. Empty means all tools are exposed.
	ToolPatterns []string `json:"toolPatterns,omitempty" yaml:"tool_patterns,omitempty"`
}

// NewStdioConfig constructs a validated stdio transport configuration.
func NewStdioConfig(command string, args []string, env map[string]string) (TransportConfig, error) {
	cfg := TransportConfig{
		Kind:    TransportStdio,
		Command: command,
		Args:    args,
		Env:     env,
	}
	if err := cfg.Validate(); err != nil {
		return TransportConfig{}, err
	}
	return cfg, nil
}

// NewSSEConfig constructs a validated sse transport configuration.
func NewSSEConfig(url string, headers map[string]string) (TransportConfig, error) {
	cfg := TransportConfig{
		Kind:    TransportSSE,
		URL:     url,
		Headers: headers,
	}
	if err := cfg.Validate(); err != nil {
		return TransportConfig{}, err
	}
	return cfg, nil
}

// Validate checks that exactly one transport variant is populated.
// Returns a configuration Error describing the first violation found.
func (c TransportConfig) Validate() error {
	switch c.Kind {
	case TransportStdio:
		if c.Command == "" {
			return ErrConfiguration("command is required for stdio transport")
		}
		if c.URL != "" || len(c.Headers) > 0 {
			return ErrConfiguration("url and headers are not valid for stdio transport")
		}
	case TransportSSE:
		if c.URL == "" {
			return ErrConfiguration("url is required for sse transport")
		}
		if c.Command != "" || len(c.Args) > 0 || len(c.Env) > 0 {
			return ErrConfiguration("command, args and env are not valid for sse transport")
		}
	case "":
		return ErrConfiguration("transport is required (stdio or sse)")
	default:
		return ErrConfiguration(fmt.Sprintf("unsupported transport %q (must be stdio or sse)", c.Kind))
	}
	return nil
}

// EnvSlice returns Env as a sorted KEY=VALUE slice for process spawning.
func (c TransportConfig) EnvSlice() []string {
	if len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// Endpoint returns a short human-readable description of the transport
// target, for logs and list output.
func (c TransportConfig) Endpoint() string {
	switch c.Kind {
	case TransportStdio:
		return c.Command
	case TransportSSE:
		return c.URL
	}
	return ""
}
