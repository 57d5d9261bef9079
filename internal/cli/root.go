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

// Package cli assembles the root Cobra command for mcpd.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for mcpd
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcpd",
		Short: "mcpd - MCP server registry and tool invocation",
		Long: `mcpd manages MCP (Model Context Protocol) servers and invokes their
tools on behalf of an LLM orchestrator. Servers are registered once,
their tools discovered and persisted, and invocations run over
on-demand stdio or SSE connections.

Run 'mcpd server add' to register a server.
Run 'mcpd tools list' to see what the registered servers provide.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	// Get flag pointers from shared package
	verbose, quiet, json, db := shared.RegisterFlagPointers()

	// Add global flags
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(db, "db", "", "Path to registry database (default: ~/.mcpd/mcpd.db)")

	return cmd
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
