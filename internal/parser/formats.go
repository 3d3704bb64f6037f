package parser

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownFormat is returned by New for an unregistered format name.
var ErrUnknownFormat = errors.New("unknown tool call format")

type markers struct {
	opener string
	closer string
}

var registry = map[string]markers{
	"dots":      {opener: "<dots_function_call>", closer: "</dots_function_call>"},
	"dots2":     {opener: "<dots_function_call>", closer: "</dots_function_call>"},
	"tool_call": {opener: "<tool_call>", closer: "</tool_call>"},
}

// New returns a fresh detector for the named format.
func New(format string, opts ...Option) (Detector, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
	return NewDelimitedDetector(name, m.opener, m.closer, opts...), nil
}

// Formats lists the registered format names in sorted order.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
