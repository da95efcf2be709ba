package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default location used when a request omits coordinates (New Delhi).
const (
	DefaultLatitude  = 28.6139
	DefaultLongitude = 77.2090
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	ModelPath string `validate:"required"`

	RequestTimeout time.Duration `validate:"gt=0"`
	RateLimitRPS   int           `validate:"gte=0"`
	RateLimitBurst int           `validate:"gte=0"`

	ShutdownTimeout               time.Duration `validate:"gt=0"`
	ShutdownInFlightTimeout       time.Duration `validate:"gt=0"`
	ShutdownInFlightCheckInterval time.Duration `validate:"gt=0"`

	DefaultLatitude  float64
	DefaultLongitude float64

	DegradedWindow   time.Duration `validate:"gte=0"`
	DegradedErrorPct int           `validate:"gte=0,lte=100"`

	OverloadWindow       time.Duration `validate:"gte=0"`
	OverloadThresholdPct int           `validate:"gte=0,lte=100"`
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   *int `yaml:"rate_limit_rps"`
		RateLimitBurst int  `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Forecast struct {
		DefaultLatitude  *float64 `yaml:"default_latitude"`
		DefaultLongitude *float64 `yaml:"default_longitude"`
	} `yaml:"forecast"`

	Lifecycle struct {
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"lifecycle"`
}

var validate = validator.New()

// Load reads configuration from config/{ENV_NAME}.yaml (default dev). A .env file in the
// working directory, if present, is loaded into the environment first. SERVER_PORT and
// MODEL_PATH override the file. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("SERVER_PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ModelPath = strings.TrimSpace(os.Getenv("MODEL_PATH"))
	if cfg.ModelPath == "" {
		cfg.ModelPath = strings.TrimSpace(fc.Model.Path)
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = filepath.Join("models", "climate_model.json")
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.RateLimitRPS = 100
	if fc.Reliability.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.Reliability.RateLimitRPS
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DefaultLatitude = DefaultLatitude
	if fc.Forecast.DefaultLatitude != nil {
		cfg.DefaultLatitude = *fc.Forecast.DefaultLatitude
	}
	cfg.DefaultLongitude = DefaultLongitude
	if fc.Forecast.DefaultLongitude != nil {
		cfg.DefaultLongitude = *fc.Forecast.DefaultLongitude
	}

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validateConfig runs struct-tag validation and the checks tags cannot express.
// The shutdown timeout is raised to cover the in-flight drain when it is shorter.
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return fmt.Errorf("reliability.rate_limit_burst must be positive when rate limiting is enabled")
	}
	if cfg.ShutdownTimeout < cfg.ShutdownInFlightTimeout {
		cfg.ShutdownTimeout = cfg.ShutdownInFlightTimeout
	}
	return nil
}
