package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// maxRetries bounds RETRY_COUNT; the scheduler budget is meant to stay small.
const maxRetries = 10

// Config holds all service settings, populated from an optional YAML file
// (PIPELINE_CONFIG) and environment variables, in that order of precedence.
type Config struct {
	// Weather API.
	WeatherBaseURL string
	City           string
	WeatherTimeout time.Duration // 0 keeps the http.Client default (no timeout)

	// Secret store.
	SecretID string

	// Object storage.
	AWSRegion       string
	S3Bucket        string
	S3Endpoint      string
	S3UsePathStyle  bool
	ObjectKeyPrefix string

	// Scheduling.
	Schedule   string
	RetryCount int
	RetryDelay time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional run report sinks; empty disables.
	KafkaBrokers []string
	KafkaTopic   string
	RunLogDSN    string
}

// fileConfig mirrors the PIPELINE_CONFIG YAML document.
type fileConfig struct {
	Weather struct {
		BaseURL     string `yaml:"base_url"`
		City        string `yaml:"city"`
		HTTPTimeout string `yaml:"http_timeout"`
	} `yaml:"weather"`
	SecretID string `yaml:"secret_id"`
	Storage  struct {
		Region       string `yaml:"region"`
		Bucket       string `yaml:"bucket"`
		Endpoint     string `yaml:"endpoint"`
		UsePathStyle *bool  `yaml:"use_path_style"`
		KeyPrefix    string `yaml:"key_prefix"`
	} `yaml:"storage"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		Retries    *int   `yaml:"retries"`
		RetryDelay string `yaml:"retry_delay"`
	} `yaml:"schedule"`
}

// Load reads configuration, applying defaults where unset.
func Load() (*Config, error) {
	fc, err := readFile(os.Getenv("PIPELINE_CONFIG"))
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parseDuration("WEATHER_HTTP_TIMEOUT", or(fc.Weather.HTTPTimeout, "0s"))
	if err != nil {
		return nil, err
	}

	retryDelay, err := parseDuration("RETRY_DELAY", or(fc.Schedule.RetryDelay, "2m"))
	if err != nil {
		return nil, err
	}

	retryCount, err := parseRetryCount(fc.Schedule.Retries)
	if err != nil {
		return nil, err
	}

	usePathStyle := fc.Storage.UsePathStyle != nil && *fc.Storage.UsePathStyle
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid S3_USE_PATH_STYLE")
		}
		usePathStyle = b
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}

	cfg := &Config{
		WeatherBaseURL: sharedcfg.EnvOrDefault("WEATHER_API_BASE_URL", or(fc.Weather.BaseURL, "https://api.openweathermap.org")),
		City:           sharedcfg.EnvOrDefault("WEATHER_CITY", or(fc.Weather.City, "Prague")),
		WeatherTimeout: weatherTimeout,

		SecretID: sharedcfg.EnvOrDefault("SECRET_ID", or(fc.SecretID, "weather_api_etl_project")),

		AWSRegion:       sharedcfg.EnvOrDefault("AWS_REGION", or(fc.Storage.Region, "us-east-1")),
		S3Bucket:        sharedcfg.EnvOrDefault("S3_BUCKET", or(fc.Storage.Bucket, "weatherapiairflowprojectmz")),
		S3Endpoint:      sharedcfg.EnvOrDefault("S3_ENDPOINT", fc.Storage.Endpoint),
		S3UsePathStyle:  usePathStyle,
		ObjectKeyPrefix: sharedcfg.EnvOrDefault("OBJECT_KEY_PREFIX", or(fc.Storage.KeyPrefix, "current_weather_data_prague_")),

		Schedule:   sharedcfg.EnvOrDefault("SCHEDULE", or(fc.Schedule.Cron, "@daily")),
		RetryCount: retryCount,
		RetryDelay: retryDelay,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-etl-runs"),
		RunLogDSN:    os.Getenv("RUN_LOG_DSN"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.WeatherBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("invalid WEATHER_API_BASE_URL")
	}
	if c.City == "" {
		return errors.New("WEATHER_CITY is required")
	}
	if c.SecretID == "" {
		return errors.New("SECRET_ID is required")
	}
	if c.S3Bucket == "" {
		return errors.New("S3_BUCKET is required")
	}
	if c.ObjectKeyPrefix == "" {
		return errors.New("OBJECT_KEY_PREFIX is required")
	}
	if c.Schedule == "" {
		return errors.New("SCHEDULE is required")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// readFile parses the optional YAML config. An empty path yields zero values.
func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read PIPELINE_CONFIG: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse PIPELINE_CONFIG: %w", err)
	}
	return fc, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseRetryCount(fromFile *int) (int, error) {
	n := 0
	if fromFile != nil {
		n = *fromFile
	}
	if s := os.Getenv("RETRY_COUNT"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.New("invalid RETRY_COUNT")
		}
		n = v
	}
	if n < 0 || n > maxRetries {
		return 0, fmt.Errorf("RETRY_COUNT must be between 0 and %d", maxRetries)
	}
	return n, nil
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
