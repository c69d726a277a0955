package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nestedConfig struct {
	HTTP struct {
		Port string `yaml:"port" env:"TEST_HTTP_PORT"`
	} `yaml:"http"`
	Stream struct {
		IntervalMillis int     `yaml:"intervalMillis"`
		Ratio          float64 `yaml:"ratio"`
		Enabled        bool    `yaml:"enabled"`
	} `yaml:"stream"`
	Kafka struct {
		Brokers []string `yaml:"brokers" env:"TEST_KAFKA_BROKERS"`
	} `yaml:"kafka"`
	Ignored string        `env:"-"`
	Timeout time.Duration `yaml:"timeout" env:"TEST_TIMEOUT"`
}

type validatedConfig struct {
	Name string `env:"TEST_NAME"`
}

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name required")
	}
	return nil
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	err := LoadConfig(nestedConfig{})
	require.Error(t, err)

	err = LoadConfig(nil)
	require.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("TEST_HTTP_PORT", "9001")
	t.Setenv("STREAM_INTERVALMILLIS", "250")
	t.Setenv("STREAM_RATIO", "0.25")
	t.Setenv("STREAM_ENABLED", "true")
	t.Setenv("TEST_KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("IGNORED", "nope")
	t.Setenv("TEST_TIMEOUT", "1500ms")

	var cfg nestedConfig
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "9001", cfg.HTTP.Port)
	assert.Equal(t, 250, cfg.Stream.IntervalMillis)
	assert.InDelta(t, 0.25, cfg.Stream.Ratio, 1e-9)
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Ignored)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
}

func TestLoadConfigFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("http:\n  port: \"7000\"\nstream:\n  intervalMillis: 2000\nkafka:\n  brokers: [\"k1:9092\"]\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv(PathEnv, path)
	t.Setenv("STREAM_INTERVALMILLIS", "500")

	var cfg nestedConfig
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "7000", cfg.HTTP.Port)
	assert.Equal(t, 500, cfg.Stream.IntervalMillis)
	assert.Equal(t, []string{"k1:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfigInvalidValue(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("STREAM_INTERVALMILLIS", "soon")

	var cfg nestedConfig
	err := LoadConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STREAM_INTERVALMILLIS")
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	var cfg nestedConfig
	err := LoadConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}

func TestLoadConfigRunsValidator(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("TEST_NAME", "")

	var cfg validatedConfig
	require.EqualError(t, LoadConfig(&cfg), "name required")

	t.Setenv("TEST_NAME", "stream")
	require.NoError(t, LoadConfig(&cfg))
	assert.Equal(t, "stream", cfg.Name)
}
