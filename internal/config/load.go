package config

import (
	"errors"
	"fmt"
	"strings"

	apperrors "callsieve/internal/errors"
	"callsieve/internal/parser"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"format":          "format",
	"catalog":         "catalog.path",
	"forward-unknown": "catalog.forward_unknown",
	"chunk-size":      "stream.chunk_size",
	"output":          "stream.output",
	"concurrency":     "batch.concurrency",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"metrics":         "metrics.enabled",
	"metrics-addr":    "metrics.addr",
	"trace":           "tracing.enabled",
	"trace-exporter":  "tracing.exporter",
	"trace-endpoint":  "tracing.endpoint",
}

// Load resolves configuration with precedence flags > environment > file >
// defaults. path and flags may be empty.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.NewPermanent(err, "failed to read config file %s: %v", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewPermanent(err, "failed to decode configuration: %v", err)
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("format", d.Format)
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.forward_unknown", d.Catalog.ForwardUnknown)
	v.SetDefault("stream.chunk_size", d.Stream.ChunkSize)
	v.SetDefault("stream.output", d.Stream.Output)
	v.SetDefault("batch.concurrency", d.Batch.Concurrency)
	v.SetDefault("grammar.cache_size", d.Grammar.CacheSize)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("callformat", func(fl validator.FieldLevel) bool {
		_, err := parser.New(fl.Field().String())
		return err == nil
	})
	return validate
}

// Validate checks cfg, reporting the first offending field.
func Validate(cfg *Config) error {
	err := newValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := fmt.Sprintf("invalid configuration: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		if fe.Tag() == "callformat" {
			msg = fmt.Sprintf("invalid configuration: unknown format %q (known: %s)", fe.Value(), strings.Join(parser.Formats(), ", "))
		}
		return apperrors.NewPermanent(err, "%s", msg)
	}
	return apperrors.NewPermanent(err, "invalid configuration: %v", err)
}
