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

package shared

import (
	"fmt"
	"os"

	"github.com/tombee/mcpd/internal/mcp"
)

// Exit codes for scripting. The general failure code is 1; more specific
// codes let scripts distinguish configuration mistakes from runtime
// failures.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitUsage         = 2
	ExitNotFound      = 3
	ExitValidation    = 4
	ExitConnection    = 5
	ExitToolExecution = 6
)

// exitCodeFor maps an error to its exit code via the mcp error taxonomy.
func exitCodeFor(err error) int {
	e := mcp.AsError(err)
	if e == nil {
		return ExitFailure
	}
	switch e.Code {
	case mcp.ErrorCodeConfiguration, mcp.ErrorCodeValidation:
		return ExitValidation
	case mcp.ErrorCodeServerNotFound, mcp.ErrorCodeToolNotFound:
		return ExitNotFound
	case mcp.ErrorCodeConnectionTimeout, mcp.ErrorCodeConnectionFailure:
		return ExitConnection
	case mcp.ErrorCodeToolExecution:
		return ExitToolExecution
	}
	return ExitFailure
}

// HandleExitError prints an error and exits with the appropriate code.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, RenderError(err.Error()))
	os.Exit(exitCodeFor(err))
}
