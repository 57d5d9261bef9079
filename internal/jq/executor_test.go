package jq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	f := New(0, 0)
	ctx := context.Background()

	tests := []struct {
		name       string
		expression string
		input      string
		want       any
	}{
		{
			name:       "empty expression passes through",
			expression: "",
			input:      `{"a":1}`,
			want:       map[string]any{"a": float64(1)},
		},
		{
			name:       "field access",
			expression: ".name",
			input:      `{"name":"filesystem"}`,
			want:       "filesystem",
		},
		{
			name:       "identity",
			expression: ".",
			input:      `"plain"`,
			want:       "plain",
		},
		{
			name:       "multiple results become a slice",
			expression: ".[].n",
			input:      `[{"n":"a"},{"n":"b"}]`,
			want:       []any{"a", "b"},
		},
		{
			name:       "no results yield nil",
			expression: ".[] | select(.missing)",
			input:      `[]`,
			want:       nil,
		},
		{
			name:       "text extraction from call content",
			expression: ".content[] | select(.type == \"text\") | .text",
			input:      `{"content":[{"type":"text","text":"hello"}],"isError":false}`,
			want:       "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Apply(ctx, tt.expression, []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_ParseError(t *testing.T) {
	f := New(0, 0)

	_, err := f.Apply(context.Background(), ".[", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
}

func TestApply_InvalidInput(t *testing.T) {
	f := New(0, 0)

	_, err := f.Apply(context.Background(), ".", []byte(`{broken`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestApply_InputTooLarge(t *testing.T) {
	f := New(0, 16)

	_, err := f.Apply(context.Background(), ".", []byte(`"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestApply_Timeout(t *testing.T) {
	f := New(50*time.Millisecond, 0)

	// An unbounded recursion never terminates on its own.
	_, err := f.Apply(context.Background(), "recurse(.)", []byte(`{"a":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate(".a.b | length"))
	assert.Error(t, Validate(".["))
}
