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

package tools

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
	"github.com/tombee/mcpd/internal/mcp"
)

// newListCommand creates the 'tools list' command.
func newListCommand() *cobra.Command {
	var (
		serverName string
		available  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tools",
		Long: `List the tools persisted from earlier discovery.

By default every registered server's tools are shown. With --available
only tools of servers that are enabled and currently connected appear,
which is the set an orchestrator would be offered.`,
		Example: `  # Example 1: All persisted tools
  mcpd tools list

  # Example 2: One server's tools
  mcpd tools list --server filesystem

  # Example 3: Tool names as JSON for scripting
  mcpd tools list --json | jq -r '.[].tool.name'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsList(cmd.Context(), serverName, available)
		},
	}

	cmd.Flags().StringVar(&serverName, "server", "", "Limit to one server")
	cmd.Flags().BoolVar(&available, "available", false, "Only tools of enabled, connected servers")

	return cmd
}

func runToolsList(ctx context.Context, serverName string, available bool) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	var tools []mcp.AvailableTool

	switch {
	case available:
		tools, err = rt.Store.AllAvailableTools(ctx)
		if err != nil {
			return err
		}
	case serverName != "":
		server, err := rt.Store.GetServerByName(ctx, serverName)
		if err != nil {
			return err
		}
		for _, tool := range server.Tools {
			tools = append(tools, mcp.AvailableTool{
				ServerID:   server.ID,
				ServerName: server.Name,
				Tool:       tool,
			})
		}
	default:
		servers, err := rt.Store.ListServers(ctx)
		if err != nil {
			return err
		}
		for _, server := range servers {
			for _, tool := range server.Tools {
				tools = append(tools, mcp.AvailableTool{
					ServerID:   server.ID,
					ServerName: server.Name,
					Tool:       tool,
				})
			}
		}
	}

	if shared.GetJSON() {
		return shared.PrintJSON(tools)
	}

	if len(tools) == 0 {
		fmt.Println("No tools discovered.")
		fmt.Println("\nTo discover tools:")
		fmt.Println("  mcpd tools refresh")
		return nil
	}

	lastServer := ""
	for _, at := range tools {
		if at.ServerName != lastServer {
			fmt.Println(shared.Header.Render(at.ServerName))
			lastServer = at.ServerName
		}
		fmt.Printf("  %-28s %s\n", shared.Bold.Render(at.Tool.Name), shared.Muted.Render(at.Tool.Description))
	}

	return nil
}
