package parser

import (
	"errors"
	"fmt"
	"strings"

	jsonx "callsieve/internal/shared/json"
)

var (
	// errIncomplete marks a payload that is not yet syntactically valid JSON.
	errIncomplete = errors.New("payload is not complete JSON")
	// errMalformedCall marks valid JSON that is not a {name, arguments} object.
	errMalformedCall = errors.New("malformed tool call payload")
)

// IsCompleteJSON reports whether candidate parses as a single JSON value.
// The whole candidate is re-validated on every call.
func IsCompleteJSON(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	return jsonx.Valid([]byte(candidate))
}

type payloadCall struct {
	Name      string
	Arguments jsonx.RawMessage
}

// decodeCall parses a call payload. Syntax failures wrap errIncomplete, shape
// failures wrap errMalformedCall.
func decodeCall(payload string) (payloadCall, error) {
	if !IsCompleteJSON(payload) {
		return payloadCall{}, errIncomplete
	}

	var fields map[string]jsonx.RawMessage
	if err := jsonx.Unmarshal([]byte(payload), &fields); err != nil {
		return payloadCall{}, fmt.Errorf("%w: payload is not an object: %v", errMalformedCall, err)
	}
	rawName, ok := fields["name"]
	if !ok {
		return payloadCall{}, fmt.Errorf("%w: missing name", errMalformedCall)
	}
	var name string
	if err := jsonx.Unmarshal(rawName, &name); err != nil {
		return payloadCall{}, fmt.Errorf("%w: name must be a string: %v", errMalformedCall, err)
	}
	if name == "" {
		return payloadCall{}, fmt.Errorf("%w: empty name", errMalformedCall)
	}
	return payloadCall{Name: name, Arguments: fields["arguments"]}, nil
}
