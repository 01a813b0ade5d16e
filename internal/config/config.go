// Package config loads the walletstream settings in layers: built-in
// defaults, an optional YAML file, then WALLETSTREAM_* environment
// variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gabapcia/walletstream/internal/pkg/validator"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// WALLETSTREAM_STREAM_BASE_URL.
const EnvPrefix = "WALLETSTREAM"

// Storage kinds accepted in Storage.Kind.
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageRedis  = "redis"
)

// ErrConfigFile is returned when the YAML file cannot be read or decoded.
var ErrConfigFile = errors.New("error loading config file")

// Config is the complete application configuration.
type Config struct {
	Log       Log       `yaml:"log"`
	Stream    Stream    `yaml:"stream"`
	Storage   Storage   `yaml:"storage"`
	NATS      NATS      `yaml:"nats"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type Stream struct {
	BaseURL              string        `yaml:"base_url" split_words:"true" validate:"required,url"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay" split_words:"true" validate:"gt=0"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" split_words:"true" validate:"gte=0"`
	IdleTimeout          time.Duration `yaml:"idle_timeout" split_words:"true" validate:"gte=0"`
}

type Storage struct {
	Kind   string `yaml:"kind" validate:"oneof=memory badger redis"`
	Badger Badger `yaml:"badger"`
	Redis  Redis  `yaml:"redis"`
}

type Badger struct {
	Dir string `yaml:"dir" validate:"required_if=InMemory false"`

	// InMemory is meant for development; nothing survives a restart.
	InMemory bool `yaml:"in_memory" split_words:"true"`
}

type Redis struct {
	Addr     string `yaml:"addr" validate:"required"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type NATS struct {
	// URL enables republishing accepted events when set.
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix" split_words:"true" validate:"required"`
}

type Telemetry struct {
	Enabled        bool          `yaml:"enabled"`
	ServiceName    string        `yaml:"service_name" split_words:"true" validate:"required"`
	Endpoint       string        `yaml:"endpoint"`
	Insecure       bool          `yaml:"insecure"`
	MetricInterval time.Duration `yaml:"metric_interval" split_words:"true" validate:"gte=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: Log{
			Level: "info",
		},
		Stream: Stream{
			BaseURL:              "http://localhost:8080",
			ReconnectBaseDelay:   2 * time.Second,
			MaxReconnectAttempts: 5,
			IdleTimeout:          2 * time.Minute,
		},
		Storage: Storage{
			Kind: StorageBadger,
			Badger: Badger{
				Dir: "./data",
			},
			Redis: Redis{
				Addr: "localhost:6379",
			},
		},
		NATS: NATS{
			SubjectPrefix: "walletstream.transactions",
		},
		Telemetry: Telemetry{
			ServiceName:    "walletstream",
			MetricInterval: 30 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty, in which case no file
// is read.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from environment: %w", err)
	}

	if err := validator.Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFile, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigFile, path, err)
	}

	return nil
}
