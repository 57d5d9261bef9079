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
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
	"github.com/tombee/mcpd/internal/mcp"
)

// newShowCommand creates the 'server show' command.
func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a server's configuration and tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), args[0])
		},
	}

	return cmd
}

func runShow(ctx context.Context, nameOrID string) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := resolveServer(ctx, rt, nameOrID)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.PrintJSON(server)
	}

	fmt.Println(shared.Header.Render(server.Name))
	printField("ID", server.ID)
	printField("Transport", string(server.Config.Kind))
	printField("Endpoint", server.Config.Endpoint())
	if server.Config.Kind == mcp.TransportStdio {
		if len(server.Config.Args) > 0 {
			printField("Args", strings.Join(server.Config.Args, " "))
		}
		if len(server.Config.Env) > 0 {
			printField("Env", strings.Join(server.Config.EnvSlice(), " "))
		}
	}
	if len(server.Config.ToolPatterns) > 0 {
		printField("Tool patterns", strings.Join(server.Config.ToolPatterns, ", "))
	}
	printField("Enabled", fmt.Sprintf("%t", server.Enabled))
	printField("Status", shared.RenderServerStatus(server.Status))
	printField("Registered", server.CreatedAt.Format(time.RFC3339))

	if len(server.Tools) == 0 {
		fmt.Println("\nNo tools discovered yet. Run: mcpd tools refresh " + server.Name)
		return nil
	}

	fmt.Printf("\n%s\n", shared.Header.Render(fmt.Sprintf("Tools (%d)", len(server.Tools))))
	for _, tool := range server.Tools {
		fmt.Printf("  %s  %s\n", shared.Bold.Render(tool.Name), shared.Muted.Render(tool.Description))
	}

	return nil
}

func printField(label, value string) {
	fmt.Printf("  %-14s %s\n", shared.Muted.Render(label+":"), value)
}
