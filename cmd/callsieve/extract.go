package main

import (
	"fmt"

	"callsieve/internal/observability"
	"callsieve/internal/parser"
	jsonx "callsieve/internal/shared/json"

	"github.com/spf13/cobra"
)

// extractOutput is the document printed by the extract command.
type extractOutput struct {
	Format     string                `json:"format"`
	NormalText string                `json:"normal_text"`
	Calls      []parser.ToolCallItem `json:"calls"`
	Invalid    []invalidCall         `json:"invalid,omitempty"`
}

type invalidCall struct {
	ToolIndex int    `json:"tool_index"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

func newExtractCommand(a *app) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract tool calls from a finished completion",
		Long:  "Reads a whole completion from file (or stdin) and prints the normal text and every complete call as JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			if validate {
				if err := a.requireCatalog(); err != nil {
					return err
				}
			}

			_, span := a.tracer.StartSpan(cmd.Context(), observability.SpanExtract)
			defer func() { observability.EndSpan(span, err) }()

			text, err := a.readInput(source)
			if err != nil {
				return fmt.Errorf("read %s: %w", source, err)
			}
			detector, err := a.newDetector(source)
			if err != nil {
				return usageError(err)
			}

			res := detector.DetectAndParse(text, a.catalog)
			out := extractOutput{
				Format:     detector.Format(),
				NormalText: res.NormalText,
				Calls:      res.Calls,
			}
			if out.Calls == nil {
				out.Calls = []parser.ToolCallItem{}
			}
			span.SetAttributes(observability.ExtractionAttrs(detector.Format(), source, len(res.Calls))...)

			if validate {
				out.Invalid = a.validateCalls(res.Calls)
			}
			if err := writeIndentedJSON(a.stdout, out); err != nil {
				return err
			}
			if len(out.Invalid) > 0 {
				return fmt.Errorf("%d of %d calls failed validation", len(out.Invalid), len(res.Calls))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "Check each call's arguments against the catalog")
	return cmd
}

// validateCalls checks decoded arguments against the catalog schemas.
func (a *app) validateCalls(calls []parser.ToolCallItem) []invalidCall {
	var invalid []invalidCall
	for _, call := range calls {
		args := map[string]any{}
		if err := jsonx.Unmarshal([]byte(call.Parameters), &args); err != nil {
			invalid = append(invalid, invalidCall{ToolIndex: call.ToolIndex, Name: call.Name, Error: err.Error()})
			continue
		}
		if err := a.catalog.Validate(call.Name, args); err != nil {
			a.logger.Warn("call %d (%s) failed validation: %v", call.ToolIndex, call.Name, err)
			invalid = append(invalid, invalidCall{ToolIndex: call.ToolIndex, Name: call.Name, Error: err.Error()})
		}
	}
	return invalid
}
