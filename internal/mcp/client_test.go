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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyConnectError(t *testing.T) {
	t.Run("deadline exceeded maps to timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		err := classifyConnectError(ctx, "srv-1", ctx.Err())
		assert.True(t, IsCode(err, ErrorCodeConnectionTimeout))
	})

	t.Run("wrapped deadline maps to timeout", func(t *testing.T) {
		wrapped := errors.Join(errors.New("initialize"), context.DeadlineExceeded)
		err := classifyConnectError(context.Background(), "srv-1", wrapped)
		assert.True(t, IsCode(err, ErrorCodeConnectionTimeout))
	})

	t.Run("other errors map to connection failure", func(t *testing.T) {
		err := classifyConnectError(context.Background(), "srv-1", errors.New("exec: not found"))
		assert.True(t, IsCode(err, ErrorCodeConnectionFailure))
	})
}

func TestDialer_RejectsInvalidConfig(t *testing.T) {
	d := NewDialer()

	_, err := d.Connect(context.Background(), "srv-1", TransportConfig{Kind: "carrier-pigeon"})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrorCodeConfiguration))
}

func TestConnection_Close(t *testing.T) {
	t.Run("nil fields tolerated", func(t *testing.T) {
		conn := &Connection{ServerID: "srv-1"}
		assert.NoError(t, conn.Close())
	})

	t.Run("client close error returned", func(t *testing.T) {
		closeErr := errors.New("broken pipe")
		conn := &Connection{
			ServerID: "srv-1",
			Client:   &stubClient{closeErr: closeErr},
		}
		assert.ErrorIs(t, conn.Close(), closeErr)
	})
}

func TestFilterTools(t *testing.T) {
	tools := []Tool{
		{Name: "read_file"},
		{Name: "write_file"},
		{Name: "search"},
	}

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name: "no patterns exposes everything",
			want: []string{"read_file", "write_file", "search"},
		},
		{
			name:     "glob pattern",
			patterns: []string{"*_file"},
			want:     []string{"read_file", "write_file"},
		},
		{
			name:     "exact name",
			patterns: []string{"search"},
			want:     []string{"search"},
		},
		{
			name:     "multiple patterns union",
			patterns: []string{"read_*", "search"},
			want:     []string{"read_file", "search"},
		},
		{
			name:     "no match",
			patterns: []string{"delete_*"},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterTools(tools, tt.patterns)
			names := make([]string, 0, len(got))
			for _, tool := range got {
				names = append(names, tool.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestContentText(t *testing.T) {
	assert.Equal(t, "tool execution failed", contentText(nil))
	assert.Equal(t, "tool execution failed", contentText([]ContentItem{{Type: "image", Data: "abc"}}))
	assert.Equal(t, "boom", contentText([]ContentItem{{Type: "text", Text: "boom"}}))
	assert.Equal(t, "a; b", contentText([]ContentItem{
		{Type: "text", Text: "a"},
		{Type: "image", Data: "ignored"},
		{Type: "text", Text: "b"},
	}))
}

func TestToolID(t *testing.T) {
	tool := Tool{Name: "read_file"}
	assert.Equal(t, "srv-1.read_file", tool.ID("srv-1"))
}
