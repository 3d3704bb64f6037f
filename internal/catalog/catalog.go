package catalog

import (
	"fmt"
	"regexp"

	"callsieve/internal/logging"

	"github.com/invopop/jsonschema"
)

// Tool describes one callable function a model may invoke.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Catalog is the set of tools available to a generation stream. Detectors
// forward every parsed {name, arguments} pair through it; a nil *Catalog
// accepts everything.
type Catalog struct {
	tools          []Tool
	indices        map[string]int
	forwardUnknown bool
	logger         logging.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithForwardUnknown keeps calls to undefined functions instead of dropping them.
func WithForwardUnknown(forward bool) Option {
	return func(c *Catalog) {
		c.forwardUnknown = forward
	}
}

// WithLogger sets the logger used for undefined-function warnings.
func WithLogger(logger logging.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.\-]*$`)

// New indexes tools by name. Later duplicates shadow earlier ones.
func New(tools []Tool, opts ...Option) *Catalog {
	c := &Catalog{
		tools:   append([]Tool(nil), tools...),
		indices: make(map[string]int, len(tools)),
	}
	for i, tool := range c.tools {
		c.indices[tool.Name] = i
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	return c
}

// Tools returns the tool definitions in declaration order.
func (c *Catalog) Tools() []Tool {
	if c == nil {
		return nil
	}
	return append([]Tool(nil), c.tools...)
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tools)
}

// Index returns the position of name in the catalog.
func (c *Catalog) Index(name string) (int, bool) {
	if c == nil {
		return -1, false
	}
	idx, ok := c.indices[name]
	return idx, ok
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	idx, ok := c.Index(name)
	if !ok {
		return Tool{}, false
	}
	return c.tools[idx], true
}

// Accept reports whether a parsed call to name should be surfaced.
func (c *Catalog) Accept(name string) bool {
	if c == nil {
		return true
	}
	if _, ok := c.indices[name]; ok {
		return true
	}
	c.logger.Warn("Model attempted to call undefined function: %s", name)
	return c.forwardUnknown && IsValidToolName(name)
}

// IsValidToolName checks if tool name is a plain identifier
func IsValidToolName(name string) bool {
	return toolNamePattern.MatchString(name)
}

// Validate checks a decoded argument object against the tool's schema:
// required parameters must be present and declared scalar types must match.
func (c *Catalog) Validate(name string, args map[string]any) error {
	tool, ok := c.Lookup(name)
	if !ok {
		if c != nil && c.forwardUnknown {
			return nil
		}
		return fmt.Errorf("tool not found: %s", name)
	}
	schema := tool.Parameters
	if schema == nil {
		return nil
	}
	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("missing required parameter: %s", required)
		}
	}
	if schema.Properties == nil {
		return nil
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		value, present := args[pair.Key]
		if !present || pair.Value == nil {
			continue
		}
		if !matchesType(pair.Value.Type, value) {
			return fmt.Errorf("parameter %s: expected %s, got %T", pair.Key, pair.Value.Type, value)
		}
	}
	return nil
}

func matchesType(schemaType string, value any) bool {
	switch schemaType {
	case "", "any":
		return true
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		switch v := value.(type) {
		case float64:
			return v == float64(int64(v))
		case int, int64, uint64:
			return true
		}
		return false
	case "number":
		switch value.(type) {
		case float64, int, int64, uint64:
			return true
		}
		return false
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}
