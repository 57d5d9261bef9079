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

package main

import (
	"github.com/tombee/mcpd/internal/cli"
	"github.com/tombee/mcpd/internal/commands/daemon"
	"github.com/tombee/mcpd/internal/commands/server"
	synccmd "github.com/tombee/mcpd/internal/commands/sync"
	"github.com/tombee/mcpd/internal/commands/tools"
	versioncmd "github.com/tombee/mcpd/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	// Create root command and add subcommands
	rootCmd := cli.NewRootCommand()

	// Registry commands
	rootCmd.AddCommand(server.NewCommand())
	rootCmd.AddCommand(tools.NewCommand())

	// Daemon
	rootCmd.AddCommand(daemon.NewCommand())

	// Import/export
	rootCmd.AddCommand(synccmd.NewImportCommand())
	rootCmd.AddCommand(synccmd.NewExportCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
