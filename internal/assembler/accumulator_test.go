package assembler

import (
	"fmt"
	"strings"
	"testing"

	"callsieve/internal/logging"
	"callsieve/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("call_%d", n)
	})
}

func TestAccumulator_SingleToolCall(t *testing.T) {
	acc := NewAccumulator(sequentialIDs())
	acc.Add(parser.ExtractionResult{NormalText: "Looking up. ", Calls: []parser.ToolCallItem{{ToolIndex: 0, Name: "get_weather"}}})
	acc.Add(parser.ExtractionResult{Calls: []parser.ToolCallItem{{ToolIndex: 0, Parameters: `{"location":`}}})
	acc.Add(parser.ExtractionResult{Calls: []parser.ToolCallItem{{ToolIndex: 0, Parameters: `"Tokyo"}`}}})

	calls := acc.Complete()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Equal(t, `{"location":"Tokyo"}`, calls[0].Arguments)
	assert.Equal(t, map[string]any{"location": "Tokyo"}, calls[0].Input)
	assert.False(t, calls[0].Repaired)
	assert.Equal(t, "Looking up. ", acc.Text())
}

func TestAccumulator_MultipleToolCallsInOrder(t *testing.T) {
	acc := NewAccumulator(sequentialIDs())
	acc.AddItem(parser.ToolCallItem{ToolIndex: 1, Name: "second", Parameters: `{"b":2}`})
	acc.AddItem(parser.ToolCallItem{ToolIndex: 0, Name: "first"})

	calls := acc.Complete()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Name)
	assert.Equal(t, map[string]any{}, calls[0].Input)
	assert.Equal(t, "second", calls[1].Name)
	assert.Equal(t, map[string]any{"b": float64(2)}, calls[1].Input)

	got, ok := acc.Call(1)
	require.True(t, ok)
	assert.Equal(t, "call_1", got.ID)
	_, ok = acc.Call(7)
	assert.False(t, ok)
}

func TestAccumulator_RepairsAndFallsBack(t *testing.T) {
	recorder := logging.NewRecorder()
	acc := NewAccumulator(WithLogger(recorder))
	acc.AddItem(parser.ToolCallItem{ToolIndex: 0, Name: "sloppy", Parameters: `{'path': 'a.go'}`})
	acc.AddItem(parser.ToolCallItem{ToolIndex: 1, Name: "list", Parameters: `[1, 2]`})

	calls := acc.Complete()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Repaired)
	assert.Equal(t, map[string]any{"path": "a.go"}, calls[0].Input)
	assert.Equal(t, map[string]any{"_raw": `[1, 2]`}, calls[1].Input)
	assert.Equal(t, 1, recorder.Count("warn"))
	assert.Equal(t, 1, recorder.Count("error"))
}

func TestAccumulator_ResetAndIDs(t *testing.T) {
	acc := NewAccumulator()
	call := acc.AddItem(parser.ToolCallItem{ToolIndex: 0, Name: "a"})
	assert.True(t, strings.HasPrefix(call.ID, "call_"))
	assert.Len(t, call.ID, len("call_")+32)

	acc.Reset()
	assert.Empty(t, acc.Complete())
	assert.Empty(t, acc.Text())
}

func TestAccumulator_FromDetectorStream(t *testing.T) {
	d, err := parser.New("dots")
	require.NoError(t, err)
	acc := NewAccumulator()

	fragments := []string{
		"Sure.",
		"<dots_function_call>",
		`{"name": "add", `,
		`"arguments": {"a": 1, "b": 2}}`,
		"</dots_function_call>",
		" Done.",
	}
	for _, fragment := range fragments {
		acc.Add(d.ParseStreamingIncrement(fragment, nil))
	}
	acc.Add(d.Flush(nil))

	calls := acc.Complete()
	require.Len(t, calls, 1)
	assert.Equal(t, "add", calls[0].Name)
	assert.Equal(t, `{"a":1,"b":2}`, calls[0].Arguments)
	assert.Equal(t, "Sure. Done.", acc.Text())
}
