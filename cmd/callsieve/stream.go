package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	openaiadapter "callsieve/internal/adapters/openai"
	"callsieve/internal/assembler"
	"callsieve/internal/catalog"
	"callsieve/internal/config"
	"callsieve/internal/logging"
	"callsieve/internal/observability"
	"callsieve/internal/parser"

	"github.com/spf13/cobra"
)

type streamStep struct {
	Step       int                   `json:"step"`
	NormalText string                `json:"normal_text"`
	Calls      []parser.ToolCallItem `json:"calls,omitempty"`
}

type streamSummary struct {
	Done     bool             `json:"done"`
	Steps    int              `json:"steps"`
	Degraded int              `json:"degraded,omitempty"`
	Text     string           `json:"text"`
	Calls    []assembler.Call `json:"calls"`
}

func newStreamCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream [file]",
		Short: "Replay a completion through the incremental extractor",
		Long: `Feeds the completion to the streaming extractor in fragments of --chunk-size
bytes (never splitting a UTF-8 sequence), prints each step, and finally the
assembled calls.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			_, span := a.tracer.StartSpan(cmd.Context(), observability.SpanStream)
			defer func() { observability.EndSpan(span, err) }()

			text, err := a.readInput(source)
			if err != nil {
				return fmt.Errorf("read %s: %w", source, err)
			}
			tally := &degradeTally{}
			detector, err := a.newDetector(source, parser.WithDegradeHandler(tally.observe))
			if err != nil {
				return usageError(err)
			}

			var sink stepSink
			switch a.cfg.Stream.Output {
			case "json":
				sink = &jsonSink{w: a.stdout, acc: a.newAccumulator(), tally: tally}
			case "openai":
				sink = &openaiSink{w: a.stdout, conv: openaiadapter.NewStreamConverter(a.newAccumulator())}
			default:
				sink = &textSink{w: a.stdout, p: a.palette, acc: a.newAccumulator()}
			}

			steps, calls, err := replay(detector, a.catalog, splitChunks(text, a.cfg.Stream.ChunkSize), sink)
			tally.report(a.logger, source)
			span.SetAttributes(observability.ExtractionAttrs(detector.Format(), source, calls)...)
			a.logger.Debug("replayed %s in %d steps, %d calls", source, steps, calls)
			return err
		},
	}
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize, "Fragment size in bytes")
	cmd.Flags().StringP("output", "o", config.DefaultOutput, "Step output (text, json, openai)")
	return cmd
}

func (a *app) newAccumulator() *assembler.Accumulator {
	return assembler.NewAccumulator(assembler.WithLogger(logging.NewComponentLogger("assembler")))
}

// stepSink receives every non-empty step and the end of the stream.
type stepSink interface {
	step(n int, res parser.ExtractionResult) error
	finish(steps int) error
}

// replay feeds chunks through detector, then flushes it. It returns the number
// of steps taken and the number of distinct calls surfaced.
func replay(detector parser.Detector, tools *catalog.Catalog, chunks []string, sink stepSink) (int, int, error) {
	steps, calls := 0, 0
	emit := func(res parser.ExtractionResult) error {
		steps++
		for _, item := range res.Calls {
			if item.Name != "" {
				calls++
			}
		}
		if res.Empty() {
			return nil
		}
		return sink.step(steps, res)
	}

	for _, chunk := range chunks {
		if err := emit(detector.ParseStreamingIncrement(chunk, tools)); err != nil {
			return steps, calls, err
		}
	}
	if err := emit(detector.Flush(tools)); err != nil {
		return steps, calls, err
	}
	return steps, calls, sink.finish(steps)
}

// splitChunks cuts text into fragments of at most size bytes without
// splitting a UTF-8 sequence. A rune wider than size gets a fragment of its own.
func splitChunks(text string, size int) []string {
	if size < 1 {
		size = 1
	}
	var chunks []string
	for len(text) > 0 {
		end := size
		if end >= len(text) {
			chunks = append(chunks, text)
			break
		}
		for end > 0 && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == 0 {
			_, width := utf8.DecodeRuneInString(text)
			end = width
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}

type textSink struct {
	w   io.Writer
	p   palette
	acc *assembler.Accumulator
}

func (s *textSink) step(_ int, res parser.ExtractionResult) error {
	s.acc.Add(res)
	if _, err := io.WriteString(s.w, res.NormalText); err != nil {
		return err
	}
	for _, item := range res.Calls {
		if _, err := fmt.Fprintln(s.w, s.p.describeItem(item)); err != nil {
			return err
		}
	}
	return nil
}

func (s *textSink) finish(steps int) error {
	calls := s.acc.Complete()
	var b strings.Builder
	if text := s.acc.Text(); text != "" && !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(s.p.gray(fmt.Sprintf("-- %d steps, %d calls\n", steps, len(calls))))
	for _, call := range calls {
		marker := s.p.green("ok")
		if call.Repaired {
			marker = s.p.yellow("repaired")
		}
		fmt.Fprintf(&b, "%s %s %s(%s)\n", marker, s.p.gray(call.ID), s.p.bold(call.Name), call.Arguments)
	}
	_, err := io.WriteString(s.w, b.String())
	return err
}

type jsonSink struct {
	w     io.Writer
	acc   *assembler.Accumulator
	tally *degradeTally
}

func (s *jsonSink) step(n int, res parser.ExtractionResult) error {
	s.acc.Add(res)
	return writeJSON(s.w, streamStep{Step: n, NormalText: res.NormalText, Calls: res.Calls})
}

func (s *jsonSink) finish(steps int) error {
	calls := s.acc.Complete()
	if calls == nil {
		calls = []assembler.Call{}
	}
	return writeJSON(s.w, streamSummary{
		Done:     true,
		Steps:    steps,
		Degraded: s.tally.steps,
		Text:     s.acc.Text(),
		Calls:    calls,
	})
}

type openaiSink struct {
	w    io.Writer
	conv *openaiadapter.StreamConverter
}

func (s *openaiSink) step(_ int, res parser.ExtractionResult) error {
	return writeJSON(s.w, s.conv.Delta(res))
}

func (s *openaiSink) finish(int) error {
	return writeJSON(s.w, s.conv.Message())
}
