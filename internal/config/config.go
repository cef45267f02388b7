package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportNATS = "nats"
	TransportGRPC = "grpc"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds the settings shared by jobctl and the development master.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	NATS    NATSConfig    `yaml:"nats"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	Master  MasterConfig  `yaml:"master"`
	Logging LoggingConfig `yaml:"logging"`
}

type ClientConfig struct {
	Transport      string        `yaml:"transport"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type GRPCConfig struct {
	// Addr is the master address dialed by clients.
	Addr string `yaml:"addr"`
}

type MasterConfig struct {
	HTTPPort   string `yaml:"http_port"`
	GRPCPort   string `yaml:"grpc_port"`
	Workers    int    `yaml:"workers"`
	QueueSize  int    `yaml:"queue_size"`
	EnableNATS bool   `yaml:"enable_nats"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Transport:      TransportNATS,
			RequestTimeout: 0,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "jobclient.master",
		},
		GRPC: GRPCConfig{
			Addr: "localhost:8081",
		},
		Master: MasterConfig{
			HTTPPort:   "8080",
			GRPCPort:   "8081",
			Workers:    3,
			QueueSize:  100,
			EnableNATS: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Client.Transport = getEnv("JOBCLIENT_TRANSPORT", c.Client.Transport)
	if c.Client.RequestTimeout, err = getEnvAsDuration("REQUEST_TIMEOUT", c.Client.RequestTimeout); err != nil {
		return err
	}
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("MASTER_SUBJECT", c.NATS.Subject)
	c.GRPC.Addr = getEnv("MASTER_GRPC_ADDR", c.GRPC.Addr)
	c.Master.HTTPPort = getEnv("MASTER_HTTP_PORT", c.Master.HTTPPort)
	c.Master.GRPCPort = getEnv("MASTER_GRPC_PORT", c.Master.GRPCPort)
	if c.Master.Workers, err = getEnvAsInt("MASTER_WORKERS", c.Master.Workers); err != nil {
		return err
	}
	if c.Master.EnableNATS, err = getEnvAsBool("USE_NATS", c.Master.EnableNATS); err != nil {
		return err
	}
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	return nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	switch c.Client.Transport {
	case TransportNATS, TransportGRPC:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Client.Transport)
	}
	if c.Client.RequestTimeout < 0 {
		return fmt.Errorf("%w: request timeout must not be negative", ErrInvalidConfig)
	}
	if c.Master.Workers <= 0 {
		return fmt.Errorf("%w: master workers must be positive", ErrInvalidConfig)
	}
	if c.Master.QueueSize <= 0 {
		return fmt.Errorf("%w: master queue size must be positive", ErrInvalidConfig)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return d, nil
}
