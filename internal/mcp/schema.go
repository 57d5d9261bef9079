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

// Schema translation from declared tool input schemas to argument
// validators. Validation partitions required from optional properties and
// enforces presence only; it does not coerce or deep-check types, and
// properties not listed in the schema pass through unexamined.
package mcp

import (
	"encoding/json"
	"log/slog"
	"sort"
)

// inputSchema is the subset of JSON Schema that tool definitions declare.
type inputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]propertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

type propertySchema struct {
	Type string `json:"type"`
}

// knownPropertyTypes are the primitive types the translator recognizes.
// Array element types and nested object shapes are not checked.
var knownPropertyTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// Validator checks tool-call arguments against a compiled input schema.
type Validator struct {
	toolName string
	required []string
}

// CompileSchema translates a declared input schema into a validator for the
// named tool. Schemas that cannot be parsed, and schemas whose top-level
// type is not "object", yield a validator that accepts all arguments.
// Property types outside the recognized primitives are accepted but logged
// at debug level.
func CompileSchema(toolName string, raw json.RawMessage, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := &Validator{toolName: toolName}

	if len(raw) == 0 {
		return v
	}

	var schema inputSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		logger.Warn("failed to parse tool input schema, accepting all arguments",
			"tool", toolName,
			"error", err,
		)
		return v
	}

	if schema.Type != "object" {
		return v
	}

	for name, prop := range schema.Properties {
		if prop.Type != "" && !knownPropertyTypes[prop.Type] {
			logger.Debug("unrecognized property type in tool schema",
				"tool", toolName,
				"property", name,
				"type", prop.Type,
			)
		}
	}

	v.required = append(v.required, schema.Required...)
	return v
}

// Required returns the required property names, sorted.
func (v *Validator) Required() []string {
	required := make([]string, len(v.required))
	copy(required, v.required)
	sort.Strings(required)
	return required
}

// Validate checks that every required property is present in args. Extra
// properties are never rejected. Returns a VALIDATION error listing the
// missing fields, or nil.
func (v *Validator) Validate(args map[string]any) error {
	var missing []string
	for _, name := range v.required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return ErrValidation(v.toolName, missing)
	}
	return nil
}
