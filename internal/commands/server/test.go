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
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
)

// newTestCommand creates the 'server test' command.
func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <name>",
		Short: "Connect to a server and verify it responds",
		Long: `Connect to a server, perform the protocol handshake and a ping, then
disconnect. Nothing is persisted except the resulting status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd.Context(), args[0])
		},
	}

	return cmd
}

func runTest(ctx context.Context, nameOrID string) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := resolveServer(ctx, rt, nameOrID)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := rt.Invoker.TestServer(ctx, server.ID); err != nil {
		return err
	}

	shared.Infof("%s\n", shared.RenderOK(fmt.Sprintf("Server %q responded in %s",
		server.Name, time.Since(start).Round(time.Millisecond))))
	return nil
}
