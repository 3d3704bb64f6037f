package main

import (
	"fmt"
	"strings"

	"callsieve/internal/config"
	"callsieve/internal/parser"

	"github.com/spf13/cobra"
)

var version = "dev"

// newRootCommand creates the root cobra command
func newRootCommand(a *app) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "callsieve",
		Short: "Extract delimited JSON tool calls from model output",
		Long: fmt.Sprintf(`%s

Separates plain text from tool calls that a model wrapped in delimiters such
as <dots_function_call>...</dots_function_call>, either from a finished
completion or incrementally from a stream.

%s
  callsieve extract reply.txt --catalog tools.json
  cat reply.txt | callsieve stream --chunk-size 4 --output openai
  callsieve batch --concurrency 8 replies/*.txt
  callsieve grammar --catalog tools.yaml
  callsieve formats`,
			a.palette.bold("callsieve "+version),
			a.palette.bold("EXAMPLES:")),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(configPath, cmd.Flags())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (yaml, json or toml)")
	flags.StringP("format", "f", config.DefaultFormat, "Tool call format ("+strings.Join(parser.Formats(), ", ")+")")
	flags.StringP("catalog", "c", "", "Tool catalog file (json or yaml)")
	flags.Bool("forward-unknown", false, "Keep calls to functions missing from the catalog")
	flags.String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "Log format (text, json)")
	flags.Bool("metrics", false, "Serve Prometheus metrics while running")
	flags.String("metrics-addr", config.DefaultMetricsAddr, "Metrics listen address")
	flags.Bool("trace", false, "Export OpenTelemetry spans")
	flags.String("trace-exporter", config.DefaultTraceExporter, "Span exporter (otlp, zipkin)")
	flags.String("trace-endpoint", "", "Span exporter endpoint")

	rootCmd.AddCommand(newExtractCommand(a))
	rootCmd.AddCommand(newStreamCommand(a))
	rootCmd.AddCommand(newBatchCommand(a))
	rootCmd.AddCommand(newGrammarCommand(a))
	rootCmd.AddCommand(newFormatsCommand(a))

	return rootCmd
}
