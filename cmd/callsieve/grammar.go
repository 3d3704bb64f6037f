package main

import (
	"fmt"

	"callsieve/internal/observability"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

func newGrammarCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grammar",
		Short: "Print the EBNF grammar for the catalog's tools",
		Long:  "Renders a grammar that constrains generation to back-to-back calls of the catalog's tools in the configured format.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := a.requireCatalog(); err != nil {
				return err
			}
			_, span := a.tracer.StartSpan(cmd.Context(), observability.SpanGrammar,
				attribute.String(observability.AttrFormat, a.cfg.Format),
				attribute.Int("callsieve.tools", a.catalog.Len()),
			)
			defer func() { observability.EndSpan(span, err) }()

			detector, err := a.newDetector("")
			if err != nil {
				return usageError(err)
			}
			ebnf, err := detector.BuildEBNF(a.catalog)
			if err != nil {
				return fmt.Errorf("build grammar: %w", err)
			}
			_, err = fmt.Fprintln(a.stdout, ebnf)
			return err
		},
	}
}
