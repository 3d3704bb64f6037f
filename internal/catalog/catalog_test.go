package catalog

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "callsieve/internal/errors"
	"callsieve/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weatherTools = `[
  {
    "type": "function",
    "function": {
      "name": "get_current_weather",
      "description": "Current weather for a city",
      "parameters": {
        "type": "object",
        "properties": {
          "location": {"type": "string"},
          "days": {"type": "integer"},
          "unit": {"type": "string", "enum": ["celsius", "fahrenheit"]}
        },
        "required": ["location"]
      }
    }
  },
  {"name": "ping"}
]`

func TestParseTools_FlatAndWrapped(t *testing.T) {
	tools, err := ParseTools([]byte(weatherTools))
	require.NoError(t, err)
	require.Len(t, tools, 2)

	assert.Equal(t, "get_current_weather", tools[0].Name)
	require.NotNil(t, tools[0].Parameters)
	assert.Equal(t, []string{"location"}, tools[0].Parameters.Required)
	assert.Equal(t, 3, tools[0].Parameters.Properties.Len())
	assert.Equal(t, "ping", tools[1].Name)
	assert.Nil(t, tools[1].Parameters)
}

func TestParseTools_ToolsObjectAndErrors(t *testing.T) {
	tools, err := ParseTools([]byte(`{"tools": [{"name": "a"}, {"name": "b"}]}`))
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	_, err = ParseTools([]byte(`[{"description": "nameless"}]`))
	assert.ErrorContains(t, err, "missing name")

	tools, err = ParseTools([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	content := `
tools:
  - name: search
    description: Full text search
    parameters:
      type: object
      properties:
        query:
          type: string
      required: [query]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tools, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, []string{"query"}, tools[0].Parameters.Required)
}

func TestLoad_InvalidIsPermanent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name": 1}]`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, apperrors.IsPermanent(err))

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestCatalog_Accept(t *testing.T) {
	tools, err := ParseTools([]byte(weatherTools))
	require.NoError(t, err)

	recorder := logging.NewRecorder()
	strict := New(tools, WithLogger(recorder))
	assert.True(t, strict.Accept("ping"))
	assert.False(t, strict.Accept("rm_rf"))
	assert.Equal(t, 1, recorder.Count("warn"))

	forwarding := New(tools, WithForwardUnknown(true))
	assert.True(t, forwarding.Accept("rm_rf"))
	assert.False(t, forwarding.Accept("not a name"))

	var none *Catalog
	assert.True(t, none.Accept("anything"))
	assert.Zero(t, none.Len())
	assert.Nil(t, none.Tools())
}

func TestCatalog_IndexAndLookup(t *testing.T) {
	tools, err := ParseTools([]byte(weatherTools))
	require.NoError(t, err)
	c := New(tools)

	idx, ok := c.Index("ping")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestCatalog_Validate(t *testing.T) {
	tools, err := ParseTools([]byte(weatherTools))
	require.NoError(t, err)
	c := New(tools)

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		wantErr string
	}{
		{name: "valid", tool: "get_current_weather", args: map[string]any{"location": "Tokyo", "days": float64(3)}},
		{name: "missing required", tool: "get_current_weather", args: map[string]any{"unit": "celsius"}, wantErr: "missing required parameter: location"},
		{name: "wrong type", tool: "get_current_weather", args: map[string]any{"location": 12.0}, wantErr: "parameter location"},
		{name: "fractional integer", tool: "get_current_weather", args: map[string]any{"location": "x", "days": 1.5}, wantErr: "parameter days"},
		{name: "no schema", tool: "ping", args: nil},
		{name: "unknown tool", tool: "nope", args: nil, wantErr: "tool not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.tool, tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	assert.NoError(t, New(tools, WithForwardUnknown(true)).Validate("nope", nil))
}
