package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "callsieve/internal/errors"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("format", DefaultFormat, "")
	fs.Int("chunk-size", DefaultChunkSize, "")
	fs.String("output", DefaultOutput, "")
	fs.Bool("metrics", false, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callsieve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
format: tool_call
stream:
  chunk_size: 8
  output: json
logging:
  level: DEBUG
catalog:
  path: tools.json
`), 0o644))

	t.Setenv("CALLSIEVE_STREAM_CHUNK_SIZE", "32")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--output", "openai"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "tool_call", cfg.Format, "file beats default")
	assert.Equal(t, 32, cfg.Stream.ChunkSize, "env beats file")
	assert.Equal(t, "openai", cfg.Stream.Output, "changed flag beats file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "tools.json", cfg.Catalog.Path)
	assert.Equal(t, DefaultBatchConcurrency, cfg.Batch.Concurrency)
}

func TestLoad_UnchangedFlagsKeepDefaults(t *testing.T) {
	flags := newFlags()
	require.NoError(t, flags.Parse(nil))

	t.Setenv("CALLSIEVE_FORMAT", "DOTS2")
	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "dots2", cfg.Format)
	assert.Equal(t, DefaultChunkSize, cfg.Stream.ChunkSize)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown format", env: map[string]string{"CALLSIEVE_FORMAT": "xml"}, wantErr: `unknown format "xml"`},
		{name: "zero chunk size", env: map[string]string{"CALLSIEVE_STREAM_CHUNK_SIZE": "0"}, wantErr: "ChunkSize"},
		{name: "bad output", env: map[string]string{"CALLSIEVE_STREAM_OUTPUT": "yaml"}, wantErr: "Output"},
		{name: "bad exporter", env: map[string]string{"CALLSIEVE_TRACING_EXPORTER": "jaeger"}, wantErr: "Exporter"},
		{name: "sample rate above one", env: map[string]string{"CALLSIEVE_TRACING_SAMPLE_RATE": "1.5"}, wantErr: "SampleRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.True(t, apperrors.IsPermanent(err))
		})
	}
}

func TestValidate_MetricsNeedAddr(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""
	assert.ErrorContains(t, Validate(&cfg), "Metrics.Addr")

	cfg.Metrics.Enabled = false
	assert.NoError(t, Validate(&cfg))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsPermanent(err))
}
