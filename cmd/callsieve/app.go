package main

import (
	"context"
	"io"
	"os"
	"time"

	"callsieve/internal/catalog"
	"callsieve/internal/config"
	apperrors "callsieve/internal/errors"
	"callsieve/internal/grammar"
	"callsieve/internal/logging"
	"callsieve/internal/observability"
	"callsieve/internal/parser"

	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

// app holds the resources shared by every subcommand of one invocation.
type app struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	palette palette

	cfg      *config.Config
	logger   logging.Logger
	metrics  *observability.MetricsCollector
	tracer   *observability.TracerProvider
	composer *grammar.Composer
	catalog  *catalog.Catalog
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		palette: newPalette(stdout),
		logger:  logging.Nop(),
	}
}

// setup resolves configuration and starts logging, metrics and tracing.
func (a *app) setup(configPath string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return usageError(err)
	}
	a.cfg = cfg

	base := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: a.stderr,
	})
	observability.SetDefault(base)
	a.logger = logging.NewComponentLogger("cli")

	a.metrics, err = observability.NewMetricsCollector(observability.MetricsConfig{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
	})
	if err != nil {
		return err
	}

	a.tracer, err = observability.NewTracerProvider(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		ServiceName:    "callsieve",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}

	a.composer, err = grammar.NewComposer(cfg.Grammar.CacheSize)
	if err != nil {
		return err
	}

	if cfg.Catalog.Path != "" {
		tools, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return usageError(err)
		}
		a.catalog = catalog.New(tools,
			catalog.WithForwardUnknown(cfg.Catalog.ForwardUnknown),
			catalog.WithLogger(logging.NewComponentLogger("catalog")),
		)
		a.logger.Debug("loaded %d tools from %s", a.catalog.Len(), cfg.Catalog.Path)
	}
	return nil
}

// newDetector builds a detector for the configured format. Each stream or
// file gets its own, with log lines tagged by source.
func (a *app) newDetector(source string, opts ...parser.Option) (parser.Detector, error) {
	logger := logging.NewComponentLogger("parser")
	opts = append([]parser.Option{
		parser.WithLogger(logging.WithStreamID(logger, source)),
		parser.WithMetrics(a.metrics),
		parser.WithComposer(a.composer),
	}, opts...)
	return parser.New(a.cfg.Format, opts...)
}

// degradeTally counts the streaming steps of one source that fell back to
// plain text, and how many bytes they handed back.
type degradeTally struct {
	steps int
	bytes int
}

func (t *degradeTally) observe(err error) {
	content, ok := apperrors.FallbackContent(err)
	if !ok {
		return
	}
	t.steps++
	t.bytes += len(content)
}

// report logs a summary line for source when any step degraded.
func (t *degradeTally) report(logger logging.Logger, source string) {
	if t.steps == 0 {
		return
	}
	logger.Warn("%s: %d degraded steps returned %d bytes as plain text", source, t.steps, t.bytes)
}

// requireCatalog fails when the command needs tool definitions and none were given.
func (a *app) requireCatalog() error {
	if a.catalog == nil || a.catalog.Len() == 0 {
		return &ExitCodeError{
			Code: exitUsage,
			Err:  apperrors.NewPermanent(nil, "a tool catalog is required (use --catalog or CALLSIEVE_CATALOG_PATH)"),
		}
	}
	return nil
}

// readInput reads the named file, or stdin for "" and "-".
func (a *app) readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(a.stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.metrics.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics shutdown: %v", err)
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown: %v", err)
	}
}
