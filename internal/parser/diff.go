package parser

import (
	"strings"

	jsonx "callsieve/internal/shared/json"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// encodeArguments serialises arguments compactly, keeping key order. Absent
// or empty arguments encode as "".
func encodeArguments(raw jsonx.RawMessage) (string, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "", nil
	}
	compact, err := jsonx.CompactString(raw)
	if err != nil {
		return "", err
	}
	if isEmptyArguments(compact) {
		return "", nil
	}
	return compact, nil
}

func isEmptyArguments(compact string) bool {
	switch compact {
	case "null", "{}", "[]", `""`, "0", "false":
		return true
	}
	return false
}

// argumentDiff returns the part of current not yet emitted. When current does
// not extend last the whole value is re-emitted and rewritten is true.
func argumentDiff(last, current string) (diff string, rewritten bool) {
	if strings.HasPrefix(current, last) {
		return current[len(last):], false
	}
	return current, true
}

// divergenceOffset is the length of the common prefix of last and current.
func divergenceOffset(last, current string) int {
	return diffmatchpatch.New().DiffCommonPrefix(last, current)
}
