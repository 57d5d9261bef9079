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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
	"github.com/tombee/mcpd/internal/jq"
	"github.com/tombee/mcpd/internal/mcp"
)

// newCallCommand creates the 'tools call' command.
func newCallCommand() *cobra.Command {
	var (
		serverName string
		argsJSON   string
		timeout    time.Duration
		jqFilter   string
	)

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a tool on a registered server",
		Long: `Invoke a tool by name. The server is resolved from --server, or from a
qualified name like "filesystem.read_file". Arguments are passed as a
JSON object via --args.`,
		Example: `  # Example 1: Call with arguments
  mcpd tools call read_file --server filesystem --args '{"path": "/etc/hosts"}'

  # Example 2: Qualified tool name
  mcpd tools call filesystem.read_file --args '{"path": "/etc/hosts"}'

  # Example 3: Filter the output with jq
  mcpd tools call list_dir --server filesystem --args '{"path": "/"}' --jq '.content[0].text'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), args[0], serverName, argsJSON, timeout, jqFilter)
		},
	}

	cmd.Flags().StringVar(&serverName, "server", "", "Server providing the tool")
	cmd.Flags().StringVar(&argsJSON, "args", "", "Tool arguments as a JSON object")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-call timeout (default 30s)")
	cmd.Flags().StringVar(&jqFilter, "jq", "", "jq expression applied to the result")

	return cmd
}

func runCall(ctx context.Context, toolName, serverName, argsJSON string, timeout time.Duration, jqFilter string) error {
	if err := jq.Validate(jqFilter); err != nil {
		return err
	}

	var arguments map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &arguments); err != nil {
			return fmt.Errorf("--args is not a JSON object: %w", err)
		}
	}

	// "server.tool" qualifies the server when --server is absent.
	if serverName == "" {
		if qualified, rest, ok := splitQualified(toolName); ok {
			serverName, toolName = qualified, rest
		} else {
			return mcp.ErrConfiguration("--server is required (or qualify the tool as server.tool)")
		}
	}

	rt, err := shared.OpenRuntime(shared.RuntimeOptions{CallTimeout: timeout})
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := rt.Store.GetServerByName(ctx, serverName)
	if err != nil {
		return err
	}

	result, execErr := rt.Invoker.Execute(ctx, mcp.ToolCallRequest{
		ServerID:  server.ID,
		ToolName:  toolName,
		Arguments: arguments,
	})
	if execErr != nil {
		return execErr
	}

	if jqFilter != "" {
		filtered, err := applyFilter(ctx, jqFilter, result)
		if err != nil {
			return err
		}
		return shared.PrintJSON(filtered)
	}

	if shared.GetJSON() {
		return shared.PrintJSON(result)
	}

	for _, item := range result.Content {
		switch item.Type {
		case "text":
			fmt.Println(item.Text)
		case "image":
			fmt.Printf("[image %s, %d bytes base64]\n", item.MimeType, len(item.Data))
		default:
			out, _ := json.Marshal(item)
			fmt.Println(string(out))
		}
	}

	return nil
}

// applyFilter hands the encoded result to the jq filter, which decodes it
// into plain maps and slices.
func applyFilter(ctx context.Context, expression string, result *mcp.ToolCallResult) (any, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return jq.New(0, 0).Apply(ctx, expression, encoded)
}

// splitQualified splits "server.tool" into its parts. Tool names may
// themselves contain dots, so only the first dot qualifies.
func splitQualified(name string) (server, tool string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			if i == 0 || i == len(name)-1 {
				return "", "", false
			}
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}
