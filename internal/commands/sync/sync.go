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

// Package sync implements 'mcpd import' and 'mcpd export' for moving
// server definitions between the registry and a servers file.
package sync

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
	"github.com/tombee/mcpd/internal/mcp"
)

// NewImportCommand creates the 'import' command.
func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import server definitions from a servers file",
		Long: `Import server definitions from a YAML servers file. Entries are
upserted by name; servers registered outside the file are untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0])
		},
	}

	return cmd
}

func runImport(ctx context.Context, path string) error {
	// A missing file would silently import nothing; make it an error here.
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := mcp.SyncFromFile(ctx, rt.Store, path, rt.Logger); err != nil {
		return err
	}

	servers, err := rt.Store.ListServers(ctx)
	if err != nil {
		return err
	}

	shared.Infof("%s\n", shared.RenderOK(fmt.Sprintf("Imported %s (%d servers registered)", path, len(servers))))
	return nil
}

// NewExportCommand creates the 'export' command.
func NewExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export registered servers as a servers file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func runExport(ctx context.Context, output string) error {
	rt, err := shared.OpenRuntime(shared.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	data, err := mcp.ExportServersFile(ctx, rt.Store)
	if err != nil {
		return err
	}

	if output == "" {
		fmt.Print(string(data))
		return nil
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	shared.Infof("%s\n", shared.RenderOK("Exported to "+output))
	return nil
}
