package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "callsieve/internal/errors"
	jsonx "callsieve/internal/shared/json"

	"gopkg.in/yaml.v3"
)

// wireTool accepts both the flat layout and the OpenAI
// {"type": "function", "function": {...}} wrapper.
type wireTool struct {
	Type     string `json:"type,omitempty"`
	Function *Tool  `json:"function,omitempty"`
	Tool
}

// Load reads tool definitions from a JSON or YAML file.
func Load(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, apperrors.NewPermanent(err, "failed to parse tool catalog %s", path)
		}
	}

	tools, err := ParseTools(data)
	if err != nil {
		return nil, apperrors.NewPermanent(err, "invalid tool catalog %s: %v", path, err)
	}
	return tools, nil
}

// ParseTools decodes a JSON array of tools, or an object with a "tools" array.
func ParseTools(data []byte) ([]Tool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var entries []wireTool
	if trimmed[0] == '{' {
		var doc struct {
			Tools []wireTool `json:"tools"`
		}
		if err := jsonx.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode tools: %w", err)
		}
		entries = doc.Tools
	} else if err := jsonx.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode tools: %w", err)
	}

	tools := make([]Tool, 0, len(entries))
	for i, entry := range entries {
		tool := entry.Tool
		if entry.Function != nil {
			tool = *entry.Function
		}
		if tool.Name == "" {
			return nil, fmt.Errorf("tool %d: missing name", i)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return jsonx.Marshal(doc)
}
