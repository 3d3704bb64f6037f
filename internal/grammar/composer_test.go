package grammar

import (
	"strings"
	"testing"

	"callsieve/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dotsCallRule = `"{\"name\": \"{name}\", \"arguments\": " {arguments_rule} "}"`

func dotsRequest() Request {
	return Request{
		SequenceStart:  "<dots_function_call>",
		SequenceEnd:    "</dots_function_call>",
		CallRuleFormat: dotsCallRule,
	}
}

func mustTools(t *testing.T, raw string) []catalog.Tool {
	t.Helper()
	tools, err := catalog.ParseTools([]byte(raw))
	require.NoError(t, err)
	return tools
}

func TestComposer_Build_Framing(t *testing.T) {
	c, err := NewComposer(4)
	require.NoError(t, err)

	tools := mustTools(t, `[{"name": "get_weather"}, {"name": "web.search"}]`)
	out, err := c.Build(tools, dotsRequest())
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "root ::= call_block ( call_block )*", lines[0])
	assert.Equal(t, `call_block ::= "<dots_function_call>" function_call "</dots_function_call>"`, lines[1])
	assert.Equal(t, "function_call ::= call_get_weather | call_web_search", lines[2])
	assert.Contains(t, out, `call_web_search ::= "{\"name\": \"web.search\", \"arguments\": " arguments_web_search "}"`)
	assert.Contains(t, out, "arguments_get_weather ::= basic_object\n")
	assert.Contains(t, out, "basic_string ::= ")
}

func TestComposer_Build_Separator(t *testing.T) {
	c, err := NewComposer(0)
	require.NoError(t, err)

	req := dotsRequest()
	req.Separator = "\n"
	out, err := c.Build(mustTools(t, `[{"name": "a"}]`), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `root ::= call_block ( "\n" call_block )*`))
}

func TestComposer_Build_SchemaRules(t *testing.T) {
	c, err := NewComposer(4)
	require.NoError(t, err)

	tools := mustTools(t, `[{
	  "name": "book",
	  "parameters": {
	    "type": "object",
	    "properties": {
	      "city": {"type": "string"},
	      "nights": {"type": "integer"},
	      "tags": {"type": "array", "items": {"type": "string"}},
	      "class": {"type": "string", "enum": ["economy", "business"]},
	      "guest": {"type": "object", "properties": {"name": {"type": "string"}}}
	    },
	    "required": ["city", "nights"]
	  }
	}]`)
	out, err := c.Build(tools, dotsRequest())
	require.NoError(t, err)

	assert.Contains(t, out, `arguments_book ::= "{" ws arguments_book_city ws "," ws arguments_book_nights ( ws "," ws arguments_book_tags )? ( ws "," ws arguments_book_class )? ( ws "," ws arguments_book_guest )? ws "}"`)
	assert.Contains(t, out, `arguments_book_city ::= "\"city\"" ws ":" ws basic_string`)
	assert.Contains(t, out, `arguments_book_nights ::= "\"nights\"" ws ":" ws basic_integer`)
	assert.Contains(t, out, `arguments_book_tags ::= "\"tags\"" ws ":" ws "[" ws ( basic_string ( ws "," ws basic_string )* )? ws "]"`)
	assert.Contains(t, out, `arguments_book_class ::= "\"class\"" ws ":" ws ( "\"economy\"" | "\"business\"" )`)
	assert.Contains(t, out, `arguments_book_guest_name ::= "\"name\"" ws ":" ws basic_string`)
	assert.Contains(t, out, `arguments_book_guest_property ::= arguments_book_guest_name`)
}

func TestComposer_Build_CachesAndValidates(t *testing.T) {
	c, err := NewComposer(2)
	require.NoError(t, err)
	tools := mustTools(t, `[{"name": "a"}]`)

	first, err := c.Build(tools, dotsRequest())
	require.NoError(t, err)
	second, err := c.Build(tools, dotsRequest())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())

	_, err = c.Build(mustTools(t, `[{"name": "b"}]`), dotsRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.Build(nil, dotsRequest())
	assert.ErrorIs(t, err, ErrNoTools)

	_, err = c.Build(tools, Request{CallRuleFormat: `"{name}"`})
	assert.ErrorContains(t, err, "arguments_rule")
}

func TestComposer_Build_DuplicateSanitisedNames(t *testing.T) {
	out, err := Default().Build(mustTools(t, `[{"name": "a.b"}, {"name": "a_b"}]`), dotsRequest())
	require.NoError(t, err)
	assert.Contains(t, out, "function_call ::= call_a_b | call_a_b_1\n")
	assert.Contains(t, out, "arguments_a_b_1 ::= basic_object")
}

func TestComposer_Build_SuffixedNameDoesNotCollide(t *testing.T) {
	out, err := Default().Build(mustTools(t, `[{"name": "x"}, {"name": "x"}, {"name": "x_1"}]`), dotsRequest())
	require.NoError(t, err)
	assert.Contains(t, out, "function_call ::= call_x | call_x_1 | call_x_1_1\n")
	assert.Equal(t, 1, strings.Count(out, "\ncall_x_1 ::= "))
	assert.Equal(t, 1, strings.Count(out, "\narguments_x_1 ::= "))
	assert.Contains(t, out, "arguments_x_1_1 ::= basic_object")
}
