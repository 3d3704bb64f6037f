package parser

import (
	jsonx "callsieve/internal/shared/json"
)

// ToolCallItem is one unit of emitted call information.
//
// Name is set only the first time a call is surfaced. Parameters is either
// the full JSON-encoded arguments object or a suffix of it.
type ToolCallItem struct {
	ToolIndex  int    `json:"tool_index"`
	Name       string `json:"name,omitempty"`
	Parameters string `json:"parameters"`
}

// ExtractionResult is the output of one extraction step.
type ExtractionResult struct {
	NormalText string         `json:"normal_text"`
	Calls      []ToolCallItem `json:"calls,omitempty"`
}

// Empty reports whether the step produced nothing.
func (r ExtractionResult) Empty() bool {
	return r.NormalText == "" && len(r.Calls) == 0
}

// StructureInfo is the literal framing a constrained decoder uses for one tool.
type StructureInfo struct {
	Begin   string `json:"begin"`
	End     string `json:"end"`
	Trigger string `json:"trigger"`
}

// StructureInfoFunc maps a tool name to its framing.
type StructureInfoFunc func(name string) StructureInfo

// DelimitedCall is a call region located in text. End is -1 while the
// closing delimiter has not arrived.
type DelimitedCall struct {
	Start   int
	End     int
	Payload string
}

// Complete reports whether the closing delimiter was found.
func (c DelimitedCall) Complete() bool {
	return c.End >= 0
}

// CallSnapshot records what has been parsed for one call so far.
type CallSnapshot struct {
	Name      string           `json:"name"`
	Arguments jsonx.RawMessage `json:"arguments,omitempty"`
}
