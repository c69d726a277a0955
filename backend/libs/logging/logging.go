package logging

import (
	"os"
	"strings"
	"time"

	_ "github.com/jsternberg/zap-logfmt" // registers the "logfmt" encoder
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	encodingJSON   = "json"
	encodingLogfmt = "logfmt"
)

// NewLogger configures a zap logger. LOG_LEVEL controls the level and
// LOG_FORMAT selects between json (default) and logfmt output.
func NewLogger() (*zap.Logger, error) {
	return NewLoggerWith(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// NewLoggerWith builds a logger from explicit level and format strings.
func NewLoggerWith(levelStr, format string) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(strings.ToLower(strings.TrimSpace(levelStr))); err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding(format),
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if host, err := os.Hostname(); err == nil {
		cfg.InitialFields = map[string]interface{}{"host": host}
	}

	return cfg.Build()
}

func encoding(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), encodingLogfmt) {
		return encodingLogfmt
	}
	return encodingJSON
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.UTC().Format(time.RFC3339Nano))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
