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

// Package tools implements the 'mcpd tools' command group for discovering
// and invoking MCP tools.
package tools

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the tools command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Discover and invoke MCP tools",
		Long: `Work with the tools exposed by registered MCP servers.

Commands:
  list     List discovered tools across servers
  call     Invoke a tool
  refresh  Re-discover tools from servers`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newCallCommand())
	cmd.AddCommand(newRefreshCommand())

	return cmd
}
