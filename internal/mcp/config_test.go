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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStdioConfig(t *testing.T) {
	cfg, err := NewStdioConfig("npx", []string{"-y", "server"}, map[string]string{"KEY": "v"})
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, cfg.Kind)
	assert.Equal(t, "npx", cfg.Command)

	_, err = NewStdioConfig("", nil, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrorCodeConfiguration))
}

func TestNewSSEConfig(t *testing.T) {
	cfg, err := NewSSEConfig("https://search.internal/sse", map[string]string{"Authorization": "Bearer x"})
	require.NoError(t, err)
	assert.Equal(t, TransportSSE, cfg.Kind)

	_, err = NewSSEConfig("", nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrorCodeConfiguration))
}

func TestTransportConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TransportConfig
		wantErr bool
	}{
		{
			name: "valid stdio",
			cfg:  TransportConfig{Kind: TransportStdio, Command: "npx"},
		},
		{
			name: "valid sse",
			cfg:  TransportConfig{Kind: TransportSSE, URL: "https://x/sse"},
		},
		{
			name:    "stdio without command",
			cfg:     TransportConfig{Kind: TransportStdio},
			wantErr: true,
		},
		{
			name:    "stdio with url",
			cfg:     TransportConfig{Kind: TransportStdio, Command: "npx", URL: "https://x"},
			wantErr: true,
		},
		{
			name:    "sse without url",
			cfg:     TransportConfig{Kind: TransportSSE},
			wantErr: true,
		},
		{
			name:    "sse with command",
			cfg:     TransportConfig{Kind: TransportSSE, URL: "https://x", Command: "npx"},
			wantErr: true,
		},
		{
			name:    "sse with env",
			cfg:     TransportConfig{Kind: TransportSSE, URL: "https://x", Env: map[string]string{"A": "1"}},
			wantErr: true,
		},
		{
			name:    "missing kind",
			cfg:     TransportConfig{Command: "npx"},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			cfg:     TransportConfig{Kind: "websocket", URL: "https://x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsCode(err, ErrorCodeConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvSlice_Sorted(t *testing.T) {
	cfg := TransportConfig{
		Kind:    TransportStdio,
		Command: "npx",
		Env:     map[string]string{"B": "2", "A": "1"},
	}
	assert.Equal(t, []string{"A=1", "B=2"}, cfg.EnvSlice())

	empty := TransportConfig{Kind: TransportStdio, Command: "npx"}
	assert.Nil(t, empty.EnvSlice())
}

func TestEndpoint(t *testing.T) {
	stdio := TransportConfig{Kind: TransportStdio, Command: "npx"}
	assert.Equal(t, "npx", stdio.Endpoint())

	sse := TransportConfig{Kind: TransportSSE, URL: "https://x/sse"}
	assert.Equal(t, "https://x/sse", sse.Endpoint())
}

func TestServerNameRegex(t *testing.T) {
	valid := []string{"filesystem", "my-server", "srv_2", "A"}
	for _, name := range valid {
		assert.True(t, ServerNameRegex.MatchString(name), name)
	}

	invalid := []string{"", "1server", "-lead", "has space", "way.too.dotted"}
	for _, name := range invalid {
		assert.False(t, ServerNameRegex.MatchString(name), name)
	}
}
