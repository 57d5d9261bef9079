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
)

// newRefreshCommand creates the 'tools refresh' command.
func newRefreshCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [name...]",
		Short: "Re-discover tools from servers",
		Long: `Connect to the named servers (or every enabled server) and replace
their persisted tool lists with what they currently expose. Servers are
refreshed concurrently; one failing server does not stop the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd.Context(), args)
		},
	}

	return cmd
}

func runRefresh(ctx context.Context, names []string) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	// Resolve names to ids up front so typos fail before any connect.
	serverIDs := make([]string, 0, len(names))
	for _, name := range names {
		server, err := rt.Store.GetServerByName(ctx, name)
		if err != nil {
			return err
		}
		serverIDs = append(serverIDs, server.ID)
	}

	results, err := rt.Invoker.RefreshAll(ctx, serverIDs...)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type refreshReport struct {
			ServerID  string `json:"serverId"`
			ToolCount int    `json:"toolCount"`
			Error     string `json:"error,omitempty"`
		}
		reports := make([]refreshReport, 0, len(results))
		for _, r := range results {
			report := refreshReport{ServerID: r.ServerID, ToolCount: r.ToolCount}
			if r.Err != nil {
				report.Error = r.Err.Error()
			}
			reports = append(reports, report)
		}
		return shared.PrintJSON(reports)
	}

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			fmt.Println(shared.RenderError(fmt.Sprintf("%s: %v", r.ServerID, r.Err)))
			continue
		}
		fmt.Println(shared.RenderOK(fmt.Sprintf("%s: %d tools", r.ServerID, r.ToolCount)))
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d servers failed to refresh", failures, len(results))
	}
	return nil
}
