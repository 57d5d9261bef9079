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

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
)

// newListCommand creates the 'server list' command.
func newListCommand() *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered MCP servers",
		Example: `  # Example 1: List all registered servers
  mcpd server list

  # Example 2: Get server list as JSON
  mcpd server list --json

  # Example 3: Extract server names for scripting
  mcpd server list --json | jq -r '.[].name'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), enabledOnly)
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Show enabled servers only")

	return cmd
}

func runList(ctx context.Context, enabledOnly bool) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	servers, err := rt.Store.ListServers(ctx)
	if err != nil {
		return err
	}
	if enabledOnly {
		filtered := servers[:0]
		for _, s := range servers {
			if s.Enabled {
				filtered = append(filtered, s)
			}
		}
		servers = filtered
	}

	if shared.GetJSON() {
		return shared.PrintJSON(servers)
	}

	if len(servers) == 0 {
		fmt.Println("No MCP servers registered.")
		fmt.Println("\nTo add a server:")
		fmt.Println("  mcpd server add <name> --command <cmd>")
		return nil
	}

	fmt.Printf("%-20s %-10s %-14s %-8s %s\n", "NAME", "TRANSPORT", "STATUS", "TOOLS", "ENDPOINT")
	fmt.Println(strings.Repeat("-", 78))

	for _, s := range servers {
		status := shared.RenderServerStatus(s.Status)
		if !s.Enabled {
			status = shared.Muted.Render("disabled")
		}
		fmt.Printf("%-20s %-10s %-14s %-8d %s\n",
			truncate(s.Name, 20),
			string(s.Config.Kind),
			status,
			len(s.Tools),
			truncate(s.Config.Endpoint(), 30),
		)
	}

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
