package main

import (
	"context"
	"fmt"
	"os"

	"callsieve/internal/assembler"
	"callsieve/internal/config"
	"callsieve/internal/observability"
	"callsieve/internal/parser"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// batchResult is printed once per input file, in argument order.
type batchResult struct {
	File     string           `json:"file"`
	Steps    int              `json:"steps"`
	Degraded int              `json:"degraded,omitempty"`
	Text     string           `json:"text"`
	Calls    []assembler.Call `json:"calls"`
	Error    string           `json:"error,omitempty"`
}

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch files...",
		Short: "Stream several completions concurrently",
		Long:  "Replays each file through its own streaming extractor and prints one JSON line per file with the assembled calls.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.runBatch(cmd.Context(), args)
			if err != nil {
				return err
			}
			failed := 0
			for _, res := range results {
				if res.Error != "" {
					failed++
				}
				if err := writeJSON(a.stdout, res); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", config.DefaultBatchConcurrency, "Files processed at once")
	return cmd
}

// runBatch processes files with at most cfg.Batch.Concurrency in flight.
// Per-file failures are reported in the result rather than aborting the batch.
func (a *app) runBatch(ctx context.Context, files []string) ([]batchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]batchResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Batch.Concurrency)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.processFile(ctx, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *app) processFile(ctx context.Context, file string) (res batchResult) {
	res = batchResult{File: file, Calls: []assembler.Call{}}
	_, span := a.tracer.StartSpan(ctx, observability.SpanBatchFile)
	var spanErr error
	defer func() { observability.EndSpan(span, spanErr) }()

	data, err := os.ReadFile(file)
	if err != nil {
		spanErr = err
		res.Error = err.Error()
		a.logger.Warn("batch: %v", err)
		return res
	}
	tally := &degradeTally{}
	detector, err := a.newDetector(file, parser.WithDegradeHandler(tally.observe))
	if err != nil {
		spanErr = err
		res.Error = err.Error()
		return res
	}

	collector := &collectSink{acc: a.newAccumulator()}
	steps, calls, err := replay(detector, a.catalog, splitChunks(string(data), a.cfg.Stream.ChunkSize), collector)
	if err != nil {
		spanErr = err
		res.Error = err.Error()
		return res
	}
	res.Steps = steps
	res.Degraded = tally.steps
	tally.report(a.logger, file)
	res.Text = collector.acc.Text()
	if assembled := collector.acc.Complete(); len(assembled) > 0 {
		res.Calls = assembled
	}
	span.SetAttributes(observability.ExtractionAttrs(detector.Format(), file, calls)...)
	span.SetAttributes(attribute.Int(observability.AttrSteps, steps))
	return res
}

// collectSink only accumulates.
type collectSink struct {
	acc *assembler.Accumulator
}

func (s *collectSink) step(_ int, res parser.ExtractionResult) error {
	s.acc.Add(res)
	return nil
}

func (s *collectSink) finish(int) error { return nil }
