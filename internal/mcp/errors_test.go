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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  NewError(ErrorCodeInternal, "something broke"),
			want: "something broke",
		},
		{
			name: "with detail",
			err:  NewError(ErrorCodeConnectionFailure, "connection failed").WithDetail("dial tcp: refused"),
			want: "connection failed: dial tcp: refused",
		},
		{
			name: "with missing fields",
			err:  ErrValidation("read_file", []string{"mode", "path"}),
			want: `invalid arguments for tool "read_file" (missing: mode, path)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrConnectionFailure("srv-1", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestIsCode(t *testing.T) {
	err := ErrToolNotFound("srv-1", "read_file")

	assert.True(t, IsCode(err, ErrorCodeToolNotFound))
	assert.False(t, IsCode(err, ErrorCodeValidation))
	assert.False(t, IsCode(nil, ErrorCodeToolNotFound))
	assert.False(t, IsCode(errors.New("plain"), ErrorCodeToolNotFound))

	// Wrapped errors still match.
	wrapped := fmt.Errorf("refresh: %w", err)
	assert.True(t, IsCode(wrapped, ErrorCodeToolNotFound))
}

func TestAsError(t *testing.T) {
	inner := ErrRateLimited("srv-1")
	wrapped := fmt.Errorf("call: %w", inner)

	got := AsError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrorCodeRateLimited, got.Code)

	assert.Nil(t, AsError(errors.New("plain")))
	assert.Nil(t, AsError(nil))
}
