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

// newRemoveCommand creates the 'server remove' command.
func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Unregister a server and its tools",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), args[0])
		},
	}

	return cmd
}

func runRemove(ctx context.Context, nameOrID string) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := resolveServer(ctx, rt, nameOrID)
	if err != nil {
		return err
	}

	// Tear down any live connection before the registration goes away.
	rt.Connections.Delete(server.ID)
	rt.Tracker.Forget(server.ID)

	if err := rt.Store.DeleteServer(ctx, server.ID); err != nil {
		return err
	}

	shared.Infof("%s\n", shared.RenderOK(fmt.Sprintf("Removed server %q", server.Name)))
	return nil
}
