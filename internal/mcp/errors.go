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

package mcp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of MCP error.
type ErrorCode string

const (
	// ErrorCodeConfiguration indicates a transport configuration error.
	ErrorCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrorCodeConnectionTimeout indicates the connect budget was exceeded.
	ErrorCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"
	// ErrorCodeConnectionFailure indicates a transport-level error during
	// connect or mid-call.
	ErrorCodeConnectionFailure ErrorCode = "CONNECTION_FAILURE"
	// ErrorCodeServerNotFound indicates the server is not registered.
	ErrorCodeServerNotFound ErrorCode = "SERVER_NOT_FOUND"
	// ErrorCodeToolNotFound indicates the tool is not known for the server.
	ErrorCodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"
	// ErrorCodeValidation indicates tool arguments failed schema validation.
	ErrorCodeValidation ErrorCode = "VALIDATION"
	// ErrorCodeToolExecution indicates the remote tool itself reported failure.
	ErrorCodeToolExecution ErrorCode = "TOOL_EXECUTION"
	// ErrorCodeRateLimited indicates the per-server call budget was exhausted.
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrorCodeInternal indicates an internal error.
	ErrorCodeInternal ErrorCode = "INTERNAL"
)

// Error is the structured error type for the MCP subsystem.
// Callers branch on Code rather than on message text.
type Error struct {
	// Code is the error category.
	Code ErrorCode
	// Message is the primary error message.
	Message string
	// Detail provides additional context.
	Detail string
	// Missing lists absent required fields for validation errors.
	Missing []string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if len(e.Missing) > 0 {
		sb.WriteString(" (missing: ")
		sb.WriteString(strings.Join(e.Missing, ", "))
		sb.WriteString(")")
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithDetail adds detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithCause adds an underlying cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// ErrConfiguration creates an error for an invalid transport configuration.
func ErrConfiguration(detail string) *Error {
	return NewError(ErrorCodeConfiguration, "invalid server configuration").
		WithDetail(detail)
}

// ErrConnectionTimeout creates an error for an exceeded connect budget.
func ErrConnectionTimeout(serverID string, budget string) *Error {
	return NewError(ErrorCodeConnectionTimeout,
		fmt.Sprintf("connection to server %q timed out", serverID)).
		WithDetail(fmt.Sprintf("connect budget of %s exceeded", budget))
}

// ErrConnectionFailure creates an error for a transport-level failure.
func ErrConnectionFailure(serverID string, cause error) *Error {
	e := NewError(ErrorCodeConnectionFailure,
		fmt.Sprintf("connection to server %q failed", serverID))
	if cause != nil {
		e = e.WithDetail(cause.Error()).WithCause(cause)
	}
	return e
}

// ErrServerNotFound creates an error for an unregistered server.
func ErrServerNotFound(serverID string) *Error {
	return NewError(ErrorCodeServerNotFound,
		fmt.Sprintf("server %q not found", serverID))
}

// ErrToolNotFound creates an error for an unknown tool on a server.
func ErrToolNotFound(serverID, toolName string) *Error {
	return NewError(ErrorCodeToolNotFound,
		fmt.Sprintf("tool %q not found on server %q", toolName, serverID))
}

// ErrValidation creates an error for failed argument validation.
func ErrValidation(toolName string, missing []string) *Error {
	e := NewError(ErrorCodeValidation,
		fmt.Sprintf("invalid arguments for tool %q", toolName))
	e.Missing = missing
	return e
}

// ErrToolExecution creates an error carrying a remote tool failure message.
func ErrToolExecution(toolName, remoteMessage string) *Error {
	return NewError(ErrorCodeToolExecution,
		fmt.Sprintf("tool %q reported an error", toolName)).
		WithDetail(remoteMessage)
}

// ErrRateLimited creates an error for an exhausted per-server call budget.
func ErrRateLimited(serverID string) *Error {
	return NewError(ErrorCodeRateLimited,
		fmt.Sprintf("call rate limit exceeded for server %q", serverID))
}

// IsCode reports whether err (or any error it wraps) is an *Error with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// AsError extracts an *Error from an error chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
