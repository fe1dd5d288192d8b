package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "socdash/dashboard/libs/config"
	"socdash/dashboard/services/monitor/internal/models"
)

// Config defines dashboard configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Poller  PollerConfig  `yaml:"poller"`
	Model   ModelConfig   `yaml:"model"`
	Auth    AuthConfig    `yaml:"auth"`
	Redis   RedisConfig   `yaml:"redis"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Charts  ChartsConfig  `yaml:"charts"`
}

// HTTPConfig is the operator-facing server.
type HTTPConfig struct {
	Port string `yaml:"port" env:"SOC_DASHBOARD_HTTP_PORT"`
}

// BackendConfig points at the training/prediction server.
type BackendConfig struct {
	URL     string        `yaml:"url" env:"SOC_BACKEND_URL"`
	Timeout time.Duration `yaml:"timeout" env:"SOC_BACKEND_TIMEOUT"`
}

// PollerConfig holds live loop timings.
type PollerConfig struct {
	Interval          time.Duration `yaml:"interval" env:"SOC_POLL_INTERVAL"`
	WatchdogInterval  time.Duration `yaml:"watchdogInterval" env:"SOC_WATCHDOG_INTERVAL"`
	DisconnectTimeout time.Duration `yaml:"disconnectTimeout" env:"SOC_DISCONNECT_TIMEOUT"`
}

// ModelConfig controls prediction requests.
type ModelConfig struct {
	Default           string `yaml:"default" env:"SOC_MODEL_TYPE"`
	VoltageCorrection bool   `yaml:"voltageCorrection" env:"SOC_VOLTAGE_CORRECTION"`
}

// AuthConfig enables operator login when PasswordHash is set.
type AuthConfig struct {
	PasswordHash string        `yaml:"passwordHash" env:"SOC_OPERATOR_PASSWORD_HASH"`
	JWTSecret    string        `yaml:"jwtSecret" env:"SOC_JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"tokenTTL" env:"SOC_TOKEN_TTL"`
}

// RedisConfig enables the snapshot publisher when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"SOC_REDIS_ADDR"`
	Password string        `yaml:"password" env:"SOC_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"SOC_REDIS_DB"`
	Channel  string        `yaml:"channel" env:"SOC_REDIS_CHANNEL"`
	TTL      time.Duration `yaml:"ttl" env:"SOC_REDIS_TTL"`
}

// MQTTConfig enables the alert publisher when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"SOC_MQTT_BROKER"`
	Topic    string `yaml:"topic" env:"SOC_MQTT_TOPIC"`
	ClientID string `yaml:"clientId" env:"SOC_MQTT_CLIENT_ID"`
}

// ChartsConfig sizes the PNG export.
type ChartsConfig struct {
	Width  int `yaml:"width" env:"SOC_CHART_WIDTH"`
	Height int `yaml:"height" env:"SOC_CHART_HEIGHT"`
}

// Default returns configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		HTTP:    HTTPConfig{Port: "8090"},
		Backend: BackendConfig{URL: "http://127.0.0.1:5000", Timeout: 5 * time.Second},
		Poller: PollerConfig{
			Interval:          time.Second,
			WatchdogInterval:  time.Second,
			DisconnectTimeout: 3 * time.Second,
		},
		Model:  ModelConfig{Default: models.ModelFast},
		Auth:   AuthConfig{TokenTTL: 12 * time.Hour},
		Redis:  RedisConfig{Channel: "soc:snapshots", TTL: 30 * time.Second},
		MQTT:   MQTTConfig{Topic: "battery/soc"},
		Charts: ChartsConfig{Width: 900, Height: 450},
	}
}

// Load configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("config: backend url required")
	}
	if c.Model.Default != models.ModelFast && c.Model.Default != models.ModelPro {
		return fmt.Errorf("config: unknown model type %q", c.Model.Default)
	}
	if c.Auth.PasswordHash != "" && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required when operator password is set")
	}
	if c.Poller.DisconnectTimeout < 0 || c.Poller.Interval < 0 || c.Poller.WatchdogInterval < 0 {
		return errors.New("config: poller timings must not be negative")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// HTTPTimeout returns backend client timeout.
func (c *Config) HTTPTimeout() time.Duration {
	if c.Backend.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Backend.Timeout
}
