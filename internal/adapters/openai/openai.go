// Package openai converts extraction output to and from the OpenAI chat
// completion wire types.
package openai

import (
	"fmt"

	"callsieve/internal/assembler"
	"callsieve/internal/catalog"
	"callsieve/internal/parser"
	jsonx "callsieve/internal/shared/json"

	"github.com/invopop/jsonschema"
	goopenai "github.com/sashabaranov/go-openai"
)

// StreamConverter turns per-step extraction results into OpenAI streaming
// deltas. IDs are minted by the wrapped accumulator, so the first delta for
// an index carries the same ID the assembled call ends up with.
type StreamConverter struct {
	acc *assembler.Accumulator
}

// NewStreamConverter wraps acc, creating one if nil.
func NewStreamConverter(acc *assembler.Accumulator) *StreamConverter {
	if acc == nil {
		acc = assembler.NewAccumulator()
	}
	return &StreamConverter{acc: acc}
}

// Delta converts one step result.
func (c *StreamConverter) Delta(res parser.ExtractionResult) goopenai.ChatCompletionStreamChoiceDelta {
	delta := goopenai.ChatCompletionStreamChoiceDelta{Content: res.NormalText}
	c.acc.Add(parser.ExtractionResult{NormalText: res.NormalText})
	for _, item := range res.Calls {
		call := c.acc.AddItem(item)
		index := item.ToolIndex
		tc := goopenai.ToolCall{
			Index:    &index,
			Function: goopenai.FunctionCall{Arguments: item.Parameters},
		}
		if item.Name != "" {
			tc.ID = call.ID
			tc.Type = goopenai.ToolTypeFunction
			tc.Function.Name = item.Name
		}
		delta.ToolCalls = append(delta.ToolCalls, tc)
	}
	if len(delta.ToolCalls) > 0 {
		delta.Role = goopenai.ChatMessageRoleAssistant
	}
	return delta
}

// ToolCalls returns the calls assembled so far.
func (c *StreamConverter) ToolCalls() []goopenai.ToolCall {
	return ToolCalls(c.acc.Complete())
}

// Message returns the final assistant message for the stream.
func (c *StreamConverter) Message() goopenai.ChatCompletionMessage {
	return goopenai.ChatCompletionMessage{
		Role:      goopenai.ChatMessageRoleAssistant,
		Content:   c.acc.Text(),
		ToolCalls: c.ToolCalls(),
	}
}

// ToolCalls converts assembled calls.
func ToolCalls(calls []assembler.Call) []goopenai.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]goopenai.ToolCall, 0, len(calls))
	for _, call := range calls {
		index := call.Index
		arguments := call.Arguments
		if arguments == "" {
			arguments = "{}"
		}
		out = append(out, goopenai.ToolCall{
			Index: &index,
			ID:    call.ID,
			Type:  goopenai.ToolTypeFunction,
			Function: goopenai.FunctionCall{
				Name:      call.Name,
				Arguments: arguments,
			},
		})
	}
	return out
}

// FromResult converts a one-shot extraction into an assistant message.
func FromResult(res parser.ExtractionResult) goopenai.ChatCompletionMessage {
	acc := assembler.NewAccumulator()
	acc.Add(res)
	return NewStreamConverter(acc).Message()
}

// Tools converts catalog entries to OpenAI tool definitions.
func Tools(tools []catalog.Tool) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(tools))
	for _, tool := range tools {
		def := &goopenai.FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if tool.Parameters != nil {
			def.Parameters = tool.Parameters
		}
		out = append(out, goopenai.Tool{Type: goopenai.ToolTypeFunction, Function: def})
	}
	return out
}

// FromTools converts OpenAI tool definitions to catalog entries. Parameters
// are round-tripped through JSON so any schema representation is accepted.
func FromTools(tools []goopenai.Tool) ([]catalog.Tool, error) {
	out := make([]catalog.Tool, 0, len(tools))
	for i, tool := range tools {
		if tool.Function == nil {
			return nil, fmt.Errorf("tool %d: missing function definition", i)
		}
		entry := catalog.Tool{Name: tool.Function.Name, Description: tool.Function.Description}
		if tool.Function.Parameters != nil {
			data, err := jsonx.Marshal(tool.Function.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %s: encode parameters: %w", entry.Name, err)
			}
			schema := &jsonschema.Schema{}
			if err := jsonx.Unmarshal(data, schema); err != nil {
				return nil, fmt.Errorf("tool %s: decode parameters: %w", entry.Name, err)
			}
			entry.Parameters = schema
		}
		out = append(out, entry)
	}
	return out, nil
}
