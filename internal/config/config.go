// Package config loads settings for every binary.
//
// Load order, later steps winning:
//  1. .env in the working directory or a parent (secrets and APP_ENV)
//  2. configs/common.yaml, then configs/{APP_ENV}.yaml
//  3. environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvTest        Environment = "test"
	EnvProduction  Environment = "prod"
)

type Config struct {
	Env         Environment       `yaml:"-"`
	API         APIConfig         `yaml:"api"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Log         LogConfig         `yaml:"log"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Server      ServerConfig      `yaml:"server"`
	Gateway     GatewayConfig     `yaml:"gateway"`
}

type APIConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CredentialsConfig selects where the bearer token is persisted.
type CredentialsConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Profile string `yaml:"profile"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ActivityTopic string   `yaml:"activity_topic"`
	GroupID       string   `yaml:"group_id"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type TelemetryConfig struct {
	// OTLPEndpoint empty disables trace export.
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	ServiceVersion string `yaml:"service_version"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type GatewayConfig struct {
	// Upstream is the backend origin the gateway forwards /api and /uploads to.
	Upstream string `yaml:"upstream"`
	// Activity is the activity service origin; /activity routes are disabled when empty.
	Activity string `yaml:"activity"`
}

const (
	DefaultAPIURL        = "http://localhost:8080/api"
	DefaultAPITimeout    = 10 * time.Second
	DefaultActivityTopic = "storefront.activity"
)

var configDirs = []string{"configs", "../configs", "../../configs"}

var envFiles = []string{".env", "../.env", "../../.env"}

// Load reads configuration from the default search paths.
func Load() (*Config, error) {
	for _, p := range envFiles {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
	dir := ""
	for _, d := range configDirs {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dir = d
			break
		}
	}
	return LoadFrom(dir)
}

// LoadFrom reads YAML files from dir (skipped when empty) and applies
// environment overrides and defaults.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Env: parseEnv(os.Getenv("APP_ENV"))}

	if dir != "" {
		for _, name := range []string{"common.yaml", string(cfg.Env) + ".yaml"} {
			if err := mergeYAML(cfg, filepath.Join(dir, name)); err != nil {
				return nil, err
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func mergeYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.API.URL, "STOREFRONT_API_URL")
	if v := os.Getenv("STOREFRONT_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STOREFRONT_API_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}
	setString(&cfg.Credentials.Backend, "STOREFRONT_CREDENTIALS")
	setString(&cfg.Credentials.Path, "STOREFRONT_CREDENTIALS_PATH")
	setString(&cfg.Credentials.Profile, "STOREFRONT_PROFILE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	setString(&cfg.Kafka.ActivityTopic, "ACTIVITY_TOPIC")
	setString(&cfg.Kafka.GroupID, "ACTIVITY_GROUP_ID")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Gateway.Upstream, "BACKEND_URL")
	setString(&cfg.Gateway.Activity, "ACTIVITY_SERVICE_URL")
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.URL == "" {
		cfg.API.URL = DefaultAPIURL
	}
	cfg.API.URL = strings.TrimRight(cfg.API.URL, "/")
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.Credentials.Backend == "" {
		cfg.Credentials.Backend = "file"
	}
	if cfg.Credentials.Profile == "" {
		cfg.Credentials.Profile = "default"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Kafka.ActivityTopic == "" {
		cfg.Kafka.ActivityTopic = DefaultActivityTopic
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "activity-recorder"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
}

func parseEnv(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return EnvProduction
	case "test":
		return EnvTest
	default:
		return EnvDevelopment
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
