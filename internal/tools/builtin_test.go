package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_All(t *testing.T) {
	rt := NewBuiltin()

	defs := rt.All()
	require.Len(t, defs, 2)
	assert.Equal(t, "current_time", defs[0].Name)
	assert.Equal(t, "calculator", defs[1].Name)

	for _, def := range defs {
		assert.Equal(t, "builtin", def.Server)
		assert.NotEmpty(t, def.Description)
		require.NotNil(t, def.InputSchema)
		assert.Equal(t, "object", def.InputSchema["type"])
	}
}

func TestBuiltin_CalculatorSchemaHasProperties(t *testing.T) {
	rt := NewBuiltin()

	var schema map[string]any
	for _, def := range rt.All() {
		if def.Name == "calculator" {
			schema = def.InputSchema
		}
	}
	require.NotNil(t, schema)

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema should carry a properties object")
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "operator")
}

func TestBuiltin_Calculate(t *testing.T) {
	rt := NewBuiltin()

	tests := []struct {
		name    string
		args    map[string]any
		want    string
		wantErr bool
	}{
		{name: "addition", args: map[string]any{"a": 2.0, "b": 3.0, "operator": "+"}, want: "5"},
		{name: "division", args: map[string]any{"a": 9.0, "b": 3.0, "operator": "/"}, want: "3"},
		{name: "division by zero", args: map[string]any{"a": 1.0, "b": 0.0, "operator": "/"}, wantErr: true},
		{name: "unknown operator", args: map[string]any{"a": 1.0, "b": 2.0, "operator": "%"}, wantErr: true},
		{name: "missing operand", args: map[string]any{"b": 2.0, "operator": "+"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rt.Call(context.Background(), "calculator", tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltin_UnknownTool(t *testing.T) {
	rt := NewBuiltin()

	_, err := rt.Call(context.Background(), "nope", nil)

	var unknownErr *ErrUnknownTool
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Name)
}
