package assembler

import (
	"fmt"
	"strings"

	"callsieve/internal/logging"
	"callsieve/internal/parser"
	jsonx "callsieve/internal/shared/json"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
)

// Call is a fully assembled tool call.
type Call struct {
	Index     int            `json:"index"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments string         `json:"arguments"`
	Input     map[string]any `json:"input"`
	Repaired  bool           `json:"repaired,omitempty"`
}

// Accumulator folds extraction results of one stream back into plain text
// and whole calls. It is not safe for concurrent use.
type Accumulator struct {
	text     strings.Builder
	calls    map[int]*Call
	maxIndex int
	newID    func() string
	logger   logging.Logger
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithIDGenerator overrides how call IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(a *Accumulator) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// WithLogger sets the logger used when arguments need repair.
func WithLogger(logger logging.Logger) Option {
	return func(a *Accumulator) {
		a.logger = logger
	}
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(opts ...Option) *Accumulator {
	a := &Accumulator{
		calls:    make(map[int]*Call),
		maxIndex: -1,
		newID:    NewCallID,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrNop(a.logger)
	return a
}

// NewCallID returns an identifier in the OpenAI "call_" style.
func NewCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Add merges one extraction result.
func (a *Accumulator) Add(res parser.ExtractionResult) {
	a.text.WriteString(res.NormalText)
	for _, item := range res.Calls {
		a.AddItem(item)
	}
}

// AddItem merges one call item. The name only arrives on the first item for
// an index; parameters are always appended.
func (a *Accumulator) AddItem(item parser.ToolCallItem) *Call {
	if item.ToolIndex > a.maxIndex {
		a.maxIndex = item.ToolIndex
	}
	existing, ok := a.calls[item.ToolIndex]
	if !ok {
		existing = &Call{Index: item.ToolIndex, ID: a.newID()}
		a.calls[item.ToolIndex] = existing
	}
	if item.Name != "" {
		existing.Name = item.Name
	}
	existing.Arguments += item.Parameters
	return existing
}

// Call returns the call assembled so far at index.
func (a *Accumulator) Call(index int) (Call, bool) {
	call, ok := a.calls[index]
	if !ok {
		return Call{}, false
	}
	return *call, true
}

// Text returns all plain text seen so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Complete returns the calls in index order with decoded inputs.
func (a *Accumulator) Complete() []Call {
	result := make([]Call, 0, len(a.calls))
	for i := 0; i <= a.maxIndex; i++ {
		call, ok := a.calls[i]
		if !ok {
			continue
		}
		out := *call
		out.Input, out.Repaired = a.decodeInput(out.Name, out.Arguments)
		result = append(result, out)
	}
	return result
}

// decodeInput parses arguments, repairing them when the model produced
// almost-JSON. Unrecoverable text is kept under "_raw".
func (a *Accumulator) decodeInput(name, arguments string) (map[string]any, bool) {
	if strings.TrimSpace(arguments) == "" {
		return map[string]any{}, false
	}
	var input map[string]any
	if err := jsonx.Unmarshal([]byte(arguments), &input); err == nil {
		if input == nil {
			input = map[string]any{}
		}
		return input, false
	}

	fixed, err := jsonrepair.JSONRepair(arguments)
	if err == nil {
		if err := jsonx.Unmarshal([]byte(fixed), &input); err == nil && input != nil {
			a.logger.Warn("Repaired arguments for %s (%d -> %d bytes)", name, len(arguments), len(fixed))
			return input, true
		}
	}
	a.logger.Error("Failed to decode arguments for %s: %s", name, truncate(arguments, 200))
	return map[string]any{"_raw": arguments}, false
}

// Reset drops everything accumulated so far.
func (a *Accumulator) Reset() {
	a.text.Reset()
	a.calls = make(map[int]*Call)
	a.maxIndex = -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
