package grammar

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"callsieve/internal/catalog"
	jsonx "callsieve/internal/shared/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/invopop/jsonschema"
)

const defaultCacheSize = 64

// ErrNoTools is returned when a grammar is requested for an empty catalog.
var ErrNoTools = errors.New("grammar: no tools to constrain")

// Request carries the framing a detector wants around each call.
type Request struct {
	SequenceStart string `json:"sequence_start"`
	SequenceEnd   string `json:"sequence_end"`
	Separator     string `json:"separator"`
	// CallRuleFormat is an EBNF expression with {name} and {arguments_rule}
	// placeholders.
	CallRuleFormat string `json:"call_rule_format"`
}

// Composer renders EBNF grammars for tool catalogs and memoises the result.
type Composer struct {
	cache *lru.Cache[string, string]
}

var (
	defaultComposer     *Composer
	defaultComposerOnce sync.Once
)

// NewComposer creates a composer caching up to size grammars.
func NewComposer(size int) (*Composer, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create grammar cache: %w", err)
	}
	return &Composer{cache: cache}, nil
}

// Default returns the shared process-wide composer.
func Default() *Composer {
	defaultComposerOnce.Do(func() {
		composer, err := NewComposer(defaultCacheSize)
		if err != nil {
			panic(err)
		}
		defaultComposer = composer
	})
	return defaultComposer
}

// Build renders the grammar for tools framed as described by req.
func (c *Composer) Build(tools []catalog.Tool, req Request) (string, error) {
	if len(tools) == 0 {
		return "", ErrNoTools
	}
	if !strings.Contains(req.CallRuleFormat, "{arguments_rule}") {
		return "", fmt.Errorf("grammar: call rule format %q lacks {arguments_rule}", req.CallRuleFormat)
	}

	key, err := cacheKey(tools, req)
	if err != nil {
		return "", err
	}
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	grammar := compose(tools, req)
	c.cache.Add(key, grammar)
	return grammar, nil
}

// Len reports how many grammars are cached.
func (c *Composer) Len() int {
	return c.cache.Len()
}

func cacheKey(tools []catalog.Tool, req Request) (string, error) {
	payload, err := jsonx.Marshal(struct {
		Request Request        `json:"request"`
		Tools   []catalog.Tool `json:"tools"`
	}{Request: req, Tools: tools})
	if err != nil {
		return "", fmt.Errorf("grammar: failed to fingerprint tools: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

type builder struct {
	rules []string
	used  map[string]bool
}

func compose(tools []catalog.Tool, req Request) string {
	b := &builder{used: map[string]bool{}}

	callRules := make([]string, 0, len(tools))
	var calls []string
	for _, tool := range tools {
		base := sanitize(tool.Name)
		callRule := b.reserve("call_" + base)
		argsRule := b.reserve("arguments_" + base)

		expr := strings.ReplaceAll(req.CallRuleFormat, "{name}", escape(jsonStringBody(tool.Name)))
		expr = strings.ReplaceAll(expr, "{arguments_rule}", argsRule)
		calls = append(calls, fmt.Sprintf("%s ::= %s", callRule, expr))
		callRules = append(callRules, callRule)

		b.add(argsRule, b.schemaExpr(tool.Parameters, argsRule, true))
	}

	var out strings.Builder
	if req.Separator == "" {
		out.WriteString("root ::= call_block ( call_block )*\n")
	} else {
		fmt.Fprintf(&out, "root ::= call_block ( %s call_block )*\n", literal(req.Separator))
	}
	fmt.Fprintf(&out, "call_block ::= %s function_call %s\n", literal(req.SequenceStart), literal(req.SequenceEnd))
	fmt.Fprintf(&out, "function_call ::= %s\n", strings.Join(callRules, " | "))
	for _, rule := range calls {
		out.WriteString(rule)
		out.WriteByte('\n')
	}
	for _, rule := range b.rules {
		out.WriteString(rule)
		out.WriteByte('\n')
	}
	out.WriteString(baseRules)
	return out.String()
}

// reserve returns name, or name_N for the smallest N not yet taken. Every
// returned name is taken, so a suffixed name never collides with a real one.
func (b *builder) reserve(name string) string {
	candidate := name
	for n := 1; b.used[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	b.used[candidate] = true
	return candidate
}

func (b *builder) add(name, expr string) {
	b.rules = append(b.rules, fmt.Sprintf("%s ::= %s", name, expr))
}

// schemaExpr returns an expression matching values of s. Nested properties get
// their own rules prefixed with hint.
func (b *builder) schemaExpr(s *jsonschema.Schema, hint string, root bool) string {
	if s == nil {
		if root {
			return "basic_object"
		}
		return "basic_any"
	}
	if len(s.Enum) > 0 {
		alts := make([]string, 0, len(s.Enum))
		for _, v := range s.Enum {
			encoded, err := jsonx.Marshal(v)
			if err != nil {
				continue
			}
			alts = append(alts, literal(string(encoded)))
		}
		if len(alts) > 0 {
			return "( " + strings.Join(alts, " | ") + " )"
		}
	}

	switch s.Type {
	case "string":
		return "basic_string"
	case "integer":
		return "basic_integer"
	case "number":
		return "basic_number"
	case "boolean":
		return "basic_boolean"
	case "null":
		return "basic_null"
	case "array":
		if s.Items == nil {
			return "basic_array"
		}
		item := b.schemaExpr(s.Items, hint+"_item", false)
		return fmt.Sprintf(`"[" ws ( %s ( ws "," ws %s )* )? ws "]"`, item, item)
	case "object":
		return b.objectExpr(s, hint)
	}
	if s.Properties != nil && s.Properties.Len() > 0 {
		return b.objectExpr(s, hint)
	}
	return "basic_any"
}

// objectExpr puts required properties first, in declaration order, followed
// by each optional one. Without required properties any declared key may
// appear in any order.
func (b *builder) objectExpr(s *jsonschema.Schema, hint string) string {
	if s.Properties == nil || s.Properties.Len() == 0 {
		return "basic_object"
	}
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	var mandatory, optional []string
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		rule := b.reserve(hint + "_" + sanitize(pair.Key))
		value := b.schemaExpr(pair.Value, rule, false)
		b.add(rule, fmt.Sprintf(`%s ws ":" ws %s`, literal(jsonString(pair.Key)), value))
		if required[pair.Key] {
			mandatory = append(mandatory, rule)
		} else {
			optional = append(optional, rule)
		}
	}

	if len(mandatory) == 0 {
		anyRule := b.reserve(hint + "_property")
		b.add(anyRule, strings.Join(optional, " | "))
		return fmt.Sprintf(`"{" ws ( %s ( ws "," ws %s )* )? ws "}"`, anyRule, anyRule)
	}

	parts := []string{`"{" ws`, mandatory[0]}
	for _, rule := range mandatory[1:] {
		parts = append(parts, fmt.Sprintf(`ws "," ws %s`, rule))
	}
	for _, rule := range optional {
		parts = append(parts, fmt.Sprintf(`( ws "," ws %s )?`, rule))
	}
	parts = append(parts, `ws "}"`)
	return strings.Join(parts, " ")
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "tool"
	}
	return b.String()
}

// jsonString returns s encoded as a JSON string literal, quotes included.
func jsonString(s string) string {
	encoded, err := jsonx.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(encoded)
}

// jsonStringBody is jsonString without the surrounding quotes.
func jsonStringBody(s string) string {
	quoted := jsonString(s)
	return quoted[1 : len(quoted)-1]
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return r.Replace(s)
}

func literal(s string) string {
	return `"` + escape(s) + `"`
}

const baseRules = `ws ::= [ \n\t]*
basic_any ::= basic_number | basic_string | basic_boolean | basic_null | basic_array | basic_object
basic_integer ::= ("0" | "-"? [1-9] [0-9]*) ".0"?
basic_number ::= ("0" | "-"? [1-9] [0-9]*) ("." [0-9]+)? ([eE] [+-]? [0-9]+)?
basic_string ::= "\"" basic_string_chars "\""
basic_string_chars ::= "" | [^"\\\x00-\x1F] basic_string_chars | "\\" basic_escape basic_string_chars
basic_escape ::= ["\\/bfnrt] | "u" [A-Fa-f0-9] [A-Fa-f0-9] [A-Fa-f0-9] [A-Fa-f0-9]
basic_boolean ::= "true" | "false"
basic_null ::= "null"
basic_array ::= "[" ws ( basic_any ( ws "," ws basic_any )* )? ws "]"
basic_object ::= "{" ws ( basic_string ws ":" ws basic_any ( ws "," ws basic_string ws ":" ws basic_any )* )? ws "}"
`
