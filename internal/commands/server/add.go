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

package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
	"github.com/tombee/mcpd/internal/mcp"
)

// newAddCommand creates the 'server add' command.
func newAddCommand() *cobra.Command {
	var (
		command      string
		args         []string
		env          []string
		url          string
		headers      []string
		toolPatterns []string
		disabled     bool
		noDiscover   bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new MCP server",
		Long: `Register a new MCP server in the registry.

Exactly one transport must be given: --command for a stdio subprocess,
or --url for an SSE endpoint. After registration the server is
contacted once to discover its tools (skip with --no-discover).`,
		Example: `  # Example 1: Register a stdio server
  mcpd server add filesystem --command npx --arg -y --arg @modelcontextprotocol/server-filesystem

  # Example 2: Register an SSE server with an auth header
  mcpd server add search --url https://search.internal/sse --header "Authorization=Bearer $TOKEN"

  # Example 3: Register with environment variables and a tool allow-list
  mcpd server add github --command gh-mcp --env GITHUB_TOKEN=$TOKEN --tool-pattern "issues_*"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			return runAdd(cmd.Context(), addOptions{
				name:         cmdArgs[0],
				command:      command,
				args:         args,
				env:          env,
				url:          url,
				headers:      headers,
				toolPatterns: toolPatterns,
				disabled:     disabled,
				noDiscover:   noDiscover,
			})
		},
	}

	cmd.Flags().StringVar(&command, "command", "", "Executable for stdio transport")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "Command argument (repeatable)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&url, "url", "", "Endpoint URL for SSE transport")
	cmd.Flags().StringArrayVar(&headers, "header", nil, "HTTP header KEY=VALUE for SSE transport (repeatable)")
	cmd.Flags().StringArrayVar(&toolPatterns, "tool-pattern", nil, "Glob allow-pattern for tool names (repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register without enabling")
	cmd.Flags().BoolVar(&noDiscover, "no-discover", false, "Skip tool discovery after registration")

	return cmd
}

type addOptions struct {
	name         string
	command      string
	args         []string
	env          []string
	url          string
	headers      []string
	toolPatterns []string
	disabled     bool
	noDiscover   bool
}

func runAdd(ctx context.Context, opts addOptions) error {
	if !mcp.ServerNameRegex.MatchString(opts.name) {
		return mcp.ErrConfiguration(fmt.Sprintf("invalid server name %q", opts.name))
	}

	cfg, err := buildTransportConfig(opts)
	if err != nil {
		return err
	}

	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Store.GetServerByName(ctx, opts.name); err == nil {
		return mcp.ErrConfiguration(fmt.Sprintf("server %q is already registered", opts.name))
	}

	server := &mcp.Server{
		ID:      uuid.NewString(),
		Name:    opts.name,
		Config:  cfg,
		Enabled: !opts.disabled,
		Status:  mcp.StatusDisconnected,
	}
	if err := rt.Store.SaveServer(ctx, server); err != nil {
		return err
	}

	shared.Infof("%s\n", shared.RenderOK(fmt.Sprintf("Registered server %q (%s)", server.Name, server.ID)))

	if opts.noDiscover || opts.disabled {
		return nil
	}

	tools, err := rt.Invoker.Discover(ctx, server.ID)
	if err != nil {
		// The registration stands; discovery can be retried later.
		shared.Infof("%s\n", shared.RenderWarn(fmt.Sprintf("Tool discovery failed: %v", err)))
		shared.Infof("Retry with: mcpd tools refresh %s\n", server.Name)
		return nil
	}

	shared.Infof("%s\n", shared.RenderOK(fmt.Sprintf("Discovered %d tools", len(tools))))
	return nil
}

// buildTransportConfig assembles the tagged-union transport config from the
// command-line flags.
func buildTransportConfig(opts addOptions) (mcp.TransportConfig, error) {
	switch {
	case opts.command != "" && opts.url != "":
		return mcp.TransportConfig{}, mcp.ErrConfiguration("--command and --url are mutually exclusive")
	case opts.command != "":
		env, err := parsePairs(opts.env, "--env")
		if err != nil {
			return mcp.TransportConfig{}, err
		}
		cfg, err := mcp.NewStdioConfig(opts.command, opts.args, env)
		if err != nil {
			return mcp.TransportConfig{}, err
		}
		cfg.ToolPatterns = opts.toolPatterns
		return cfg, nil
	case opts.url != "":
		headers, err := parsePairs(opts.headers, "--header")
		if err != nil {
			return mcp.TransportConfig{}, err
		}
		cfg, err := mcp.NewSSEConfig(opts.url, headers)
		if err != nil {
			return mcp.TransportConfig{}, err
		}
		cfg.ToolPatterns = opts.toolPatterns
		return cfg, nil
	}
	return mcp.TransportConfig{}, mcp.ErrConfiguration("one of --command or --url is required")
}

// parsePairs parses repeated KEY=VALUE flags into a map.
func parsePairs(pairs []string, flagName string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, mcp.ErrConfiguration(fmt.Sprintf("%s %q is not KEY=VALUE", flagName, pair))
		}
		m[key] = value
	}
	return m, nil
}
