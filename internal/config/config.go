package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Feed source: "noaa" fetches the live NCEI archive, "files" reads
	// previously downloaded CSVs from LOCATIONS_PATH / DETAILS_PATH.
	SourceMode       string        `env:"SOURCE_MODE" envDefault:"noaa"`
	NCEIBaseURL      string        `env:"NCEI_BASE_URL" envDefault:"https://www.ncei.noaa.gov/pub/data/swdi/stormevents/csvfiles/"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"120s"`
	FetchMaxAttempts int           `env:"FETCH_MAX_ATTEMPTS" envDefault:"4"`
	LocationsPath    string        `env:"LOCATIONS_PATH"`
	DetailsPath      string        `env:"DETAILS_PATH"`

	RegionLayerPath string `env:"REGION_LAYER_PATH"`
	RegionIDField   string `env:"REGION_ID_FIELD" envDefault:"id"`

	OutputPath string `env:"OUTPUT_PATH" envDefault:"aggregated.csv"`

	// Kafka result publishing. Enabled by default when brokers are set;
	// KAFKA_ENABLED overrides either way.
	KafkaBrokers   []string `env:"KAFKA_BROKERS"`
	KafkaSinkTopic string   `env:"KAFKA_SINK_TOPIC" envDefault:"aggregated-storm-damage"`
	KafkaEnabled   bool     `env:"KAFKA_ENABLED"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// LocateWorkers defaults to the CPU count when 0.
	LocateWorkers   int `env:"LOCATE_WORKERS"`
	LocateCacheSize int `env:"LOCATE_CACHE_SIZE" envDefault:"4096"`
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if os.Getenv("KAFKA_ENABLED") == "" {
		cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	}
	if cfg.LocateWorkers <= 0 {
		cfg.LocateWorkers = runtime.NumCPU()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SourceMode {
	case "noaa":
		if c.NCEIBaseURL == "" {
			return errors.New("NCEI_BASE_URL is required in noaa mode")
		}
	case "files":
		if c.LocationsPath == "" || c.DetailsPath == "" {
			return errors.New("LOCATIONS_PATH and DETAILS_PATH are required in files mode")
		}
	default:
		return fmt.Errorf("SOURCE_MODE must be noaa or files, got %q", c.SourceMode)
	}

	if c.RegionLayerPath == "" {
		return errors.New("REGION_LAYER_PATH is required")
	}
	if c.FetchMaxAttempts < 1 {
		return errors.New("FETCH_MAX_ATTEMPTS must be at least 1")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.LocateCacheSize < 0 {
		return errors.New("LOCATE_CACHE_SIZE must be non-negative")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	return nil
}
