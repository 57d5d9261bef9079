// Package jq applies jq expressions to tool-call output for the CLI's
// --jq flag. Input arrives already JSON-encoded, so the size limit is
// checked on the encoded bytes and the value is decoded exactly once.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds a single expression evaluation (1 second)
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInput caps the JSON-encoded input size (10MB)
	DefaultMaxInput = 10 * 1024 * 1024
)

// Filter evaluates jq expressions with timeout and input-size limits.
type Filter struct {
	timeout  time.Duration
	maxInput int64
}

// New creates a filter. Zero values select the defaults.
func New(timeout time.Duration, maxInput int64) *Filter {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInput == 0 {
		maxInput = DefaultMaxInput
	}

	return &Filter{
		timeout:  timeout,
		maxInput: maxInput,
	}
}

// Apply runs a jq expression against JSON-encoded input. An empty
// expression returns the decoded input unchanged. A single result is
// returned directly; multiple results come back as a slice.
func (f *Filter) Apply(ctx context.Context, expression string, input []byte) (any, error) {
	if int64(len(input)) > f.maxInput {
		return nil, fmt.Errorf("input size (%d bytes) exceeds maximum (%d bytes)",
			len(input), f.maxInput)
	}

	var data any
	if err := json.Unmarshal(input, &data); err != nil {
		return nil, fmt.Errorf("input is not valid JSON: %w", err)
	}

	if expression == "" {
		return data, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// RunWithContext surfaces cancellation as an error value from the
	// iterator, so a runaway expression stops at the deadline.
	iter := code.RunWithContext(execCtx, data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if evalErr, isErr := v.(error); isErr {
			if execCtx.Err() != nil {
				return nil, fmt.Errorf("evaluation timeout after %v", f.timeout)
			}
			return nil, evalErr
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Validate compiles an expression without running it, so flag errors
// surface before any server is contacted.
func Validate(expression string) error {
	if expression == "" {
		return nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}

	if _, err := gojq.Compile(query); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}

	return nil
}
