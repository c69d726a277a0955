package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "frauddet/backend/libs/config"
)

// Config defines prediction stream configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"PREDICT_HTTP_PORT"`
	} `yaml:"http"`
	Stream struct {
		IntervalMillis int    `yaml:"intervalMillis" env:"PREDICT_STREAM_INTERVAL_MS"`
		Seed           uint64 `yaml:"seed" env:"PREDICT_STREAM_SEED"`
		Path           string `yaml:"path" env:"PREDICT_STREAM_PATH"`
	} `yaml:"stream"`
	WebSocket struct {
		PingIntervalSeconds int   `yaml:"pingIntervalSeconds" env:"PREDICT_PING_INTERVAL"`
		WriteTimeoutSeconds int   `yaml:"writeTimeoutSeconds" env:"PREDICT_WRITE_TIMEOUT"`
		PongWaitSeconds     int   `yaml:"pongWaitSeconds" env:"PREDICT_PONG_WAIT"`
		ReadLimitBytes      int64 `yaml:"readLimitBytes" env:"PREDICT_READ_LIMIT"`
	} `yaml:"websocket"`
	Database struct {
		DSN string `yaml:"dsn" env:"PREDICT_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"PREDICT_REDIS_ADDR"`
		Password string `yaml:"password" env:"PREDICT_REDIS_PASSWORD"`
		TTL      int    `yaml:"ttlSeconds" env:"PREDICT_REDIS_TTL"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers" env:"PREDICT_KAFKA_BROKERS"`
		Topic   string   `yaml:"topic" env:"PREDICT_KAFKA_TOPIC"`
	} `yaml:"kafka"`
	Recorder struct {
		BufferSize int `yaml:"bufferSize" env:"PREDICT_RECORDER_BUFFER"`
	} `yaml:"recorder"`
}

// Load reads configuration via shared helper. Validate runs as part of loading.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns configuration with defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8000"
	cfg.Stream.IntervalMillis = 2000
	cfg.Stream.Path = "/ws/predictions/"
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 10
	cfg.WebSocket.PongWaitSeconds = 60
	cfg.WebSocket.ReadLimitBytes = 1 << 20
	cfg.Redis.TTL = 3600
	cfg.Kafka.Topic = "fraud.predictions"
	cfg.Recorder.BufferSize = 256
	return cfg
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Stream.IntervalMillis <= 0 {
		return errors.New("config: stream interval must be positive")
	}
	if !strings.HasPrefix(c.Stream.Path, "/") {
		return errors.New("config: stream path must start with /")
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("config: kafka topic required when brokers are set")
	}
	return nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// StreamInterval returns the periodic emission interval.
func (c *Config) StreamInterval() time.Duration {
	return time.Duration(c.Stream.IntervalMillis) * time.Millisecond
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	if c.WebSocket.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	if c.WebSocket.WriteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}

// PongWait returns how long a silent peer is tolerated. It is never shorter
// than the ping interval.
func (c *Config) PongWait() time.Duration {
	wait := time.Duration(c.WebSocket.PongWaitSeconds) * time.Second
	if wait <= c.PingInterval() {
		return 2 * c.PingInterval()
	}
	return wait
}

// LatestTTL returns redis cache ttl as duration.
func (c *Config) LatestTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}
