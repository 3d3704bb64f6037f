package jsonx

import (
	"bytes"
	stdjson "encoding/json"

	"github.com/goccy/go-json"
)

// Thin wrapper so hot paths can swap JSON implementations in one place.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
)

type RawMessage = json.RawMessage

// Valid reports whether data is a single RFC 8259 JSON value. goccy's Valid
// accepts numbers with leading zeros such as 01, so syntax checks go through
// encoding/json.
func Valid(data []byte) bool {
	return stdjson.Valid(data)
}

// CompactString returns src with insignificant whitespace removed.
func CompactString(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, src); err != nil {
		return "", err
	}
	return buf.String(), nil
}
