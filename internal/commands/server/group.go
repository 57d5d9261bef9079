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

// Package server implements the 'mcpd server' command group for managing
// registered MCP servers.
package server

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
	"github.com/tombee/mcpd/internal/mcp"
)

// NewCommand creates the server command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage registered MCP servers",
		Long: `Manage the MCP server registry.

Commands:
  add      Register a new MCP server
  list     List registered servers
  show     Show a server's configuration and tools
  remove   Unregister a server
  enable   Enable a server
  disable  Disable a server
  test     Connect to a server and verify it responds`,
	}

	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newEnableCommand())
	cmd.AddCommand(newDisableCommand())
	cmd.AddCommand(newTestCommand())

	return cmd
}

// resolveServer looks a server up by name first, then by id.
func resolveServer(ctx context.Context, rt *shared.Runtime, nameOrID string) (*mcp.Server, error) {
	server, err := rt.Store.GetServerByName(ctx, nameOrID)
	if err == nil {
		return server, nil
	}
	return rt.Store.GetServer(ctx, nameOrID)
}
