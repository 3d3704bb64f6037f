package config

// Defaults applied before any file, environment or flag value.
const (
	DefaultFormat           = "dots"
	DefaultChunkSize        = 16
	DefaultOutput           = "text"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsAddr      = "127.0.0.1:9464"
	DefaultGrammarCacheSize = 64
	DefaultBatchConcurrency = 4
	DefaultTraceExporter    = "otlp"
	DefaultTraceSampleRate  = 1.0
)

// EnvPrefix namespaces environment overrides, e.g. CALLSIEVE_STREAM_CHUNK_SIZE.
const EnvPrefix = "CALLSIEVE"

// Config is the resolved runtime configuration for the CLI.
type Config struct {
	Format  string        `mapstructure:"format" json:"format" validate:"required,callformat"`
	Catalog CatalogConfig `mapstructure:"catalog" json:"catalog"`
	Stream  StreamConfig  `mapstructure:"stream" json:"stream"`
	Batch   BatchConfig   `mapstructure:"batch" json:"batch"`
	Grammar GrammarConfig `mapstructure:"grammar" json:"grammar"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// CatalogConfig points at the tool definitions.
type CatalogConfig struct {
	Path           string `mapstructure:"path" json:"path"`
	ForwardUnknown bool   `mapstructure:"forward_unknown" json:"forward_unknown"`
}

// StreamConfig controls how input is fed to the incremental extractor.
type StreamConfig struct {
	ChunkSize int    `mapstructure:"chunk_size" json:"chunk_size" validate:"gte=1"`
	Output    string `mapstructure:"output" json:"output" validate:"oneof=text json openai"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" json:"concurrency" validate:"gte=1,lte=64"`
}

type GrammarConfig struct {
	CacheSize int `mapstructure:"cache_size" json:"cache_size" validate:"gte=1"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" json:"format" validate:"oneof=text json"`
}

// MetricsConfig enables the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr" validate:"required_if=Enabled true"`
}

// TracingConfig enables span export for CLI operations.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" json:"enabled"`
	Exporter   string  `mapstructure:"exporter" json:"exporter" validate:"oneof=otlp zipkin"`
	Endpoint   string  `mapstructure:"endpoint" json:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Format:  DefaultFormat,
		Stream:  StreamConfig{ChunkSize: DefaultChunkSize, Output: DefaultOutput},
		Batch:   BatchConfig{Concurrency: DefaultBatchConcurrency},
		Grammar: GrammarConfig{CacheSize: DefaultGrammarCacheSize},
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
		Tracing: TracingConfig{Exporter: DefaultTraceExporter, SampleRate: DefaultTraceSampleRate},
	}
}
