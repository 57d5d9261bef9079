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

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
)

// newEnableCommand creates the 'server enable' command.
func newEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a server for discovery and invocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetEnabled(cmd.Context(), args[0], true)
		},
	}
}

// newDisableCommand creates the 'server disable' command.
func newDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a server without unregistering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetEnabled(cmd.Context(), args[0], false)
		},
	}
}

func runSetEnabled(ctx context.Context, nameOrID string, enabled bool) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := resolveServer(ctx, rt, nameOrID)
	if err != nil {
		return err
	}

	if err := rt.Store.SetServerEnabled(ctx, server.ID, enabled); err != nil {
		return err
	}

	if !enabled {
		// Disabling drops any live connection and resets the status.
		rt.Connections.Delete(server.ID)
		rt.Tracker.SetDisconnected(ctx, server.ID)
		shared.Infof("%s\n", shared.RenderOK(fmt.Sprintf("Disabled server %q", server.Name)))
		return nil
	}

	shared.Infof("%s\n", shared.RenderOK(fmt.Sprintf("Enabled server %q", server.Name)))
	return nil
}
