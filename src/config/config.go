package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"activ-subscriber/src/models"
	"activ-subscriber/src/transports"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Environment variables read on top of the YAML file
const (
	EnvSessionHost      = "ACTIV_SESSION_HOST"
	EnvSessionUserID    = "ACTIV_SESSION_USER_ID"
	EnvSessionPassword  = "ACTIV_SESSION_PASSWORD"
	EnvSessionTransport = "ACTIV_SESSION_TRANSPORT"
	EnvSessionEndpoint  = "ACTIV_SESSION_ENDPOINT"
	EnvConnectTimeout   = "ACTIV_SESSION_CONNECT_TIMEOUT"
	EnvSymbol           = "ACTIV_SUBSCRIPTION_SYMBOL"
	EnvLogLevel         = "ACTIV_LOG_LEVEL"
	EnvHealthPort       = "ACTIV_HEALTH_PORT"

	DefaultName           = "activ-subscriber"
	DefaultHost           = "aop-replay.activfinancial.com"
	DefaultSymbol         = "MSFT.Q"
	DefaultTransport      = "websocket"
	DefaultConnectTimeout = 5 * time.Second
	DefaultEnvFile        = ".env"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Default returns the configuration used when neither file nor environment set a value
func Default() *Config {
	return &Config{MConfig: &models.MConfig{
		Name:     DefaultName,
		LogLevel: "debug",
		Log: models.MLogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Session: models.MSessionConfig{
			Host:                     DefaultHost,
			EnableCtrlHandler:        true,
			EnableDictionaryDownload: true,
			ConnectTimeout:           DefaultConnectTimeout,
			Transport:                DefaultTransport,
			ReplayInterval:           100 * time.Millisecond,
			ReconnectAttempts:        3,
			MessageBuffer:            1000,
		},
		Subscription: models.MSubscriptionConfig{
			Symbol:       DefaultSymbol,
			SymbologyID:  models.SymbologyNative,
			DataSourceID: models.DataSourceActiv,
		},
		NATS: models.MNATSConfig{
			ClientID:       DefaultName,
			SubjectPrefix:  "activ",
			Serializer:     "json",
			ConnectTimeout: 5 * time.Second,
			ReconnectWait:  2 * time.Second,
			MaxReconnects:  10,
			FlushTimeout:   time.Second,
		},
		Recorder: models.MRecorderConfig{
			DBPath: "activ_recording.db",
		},
		Health: models.MHealthConfig{
			Host: "127.0.0.1",
			Port: 50051,
		},
	}}
}

// -----------------------------------------------------------------------------

// NewConfig builds the configuration from defaults, an optional YAML file, an
// optional .env file and the ACTIV_* environment variables, in that order.
// An empty configPath skips the file; an empty envFile tries ./.env.
func NewConfig(configPath string, envFile string) (*Config, error) {
	config := Default()

	// 1. YAML file over the defaults
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, config.MConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
		}
	}

	// 2. .env file, never overriding variables already set
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	// 3. Environment overrides
	if err := config.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}

	if _, err := os.Stat(envFile); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read env file '%s': %w", envFile, err)
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file '%s': %w", envFile, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// applyEnvOverrides applies ACTIV_* environment variables to the config.
func (c *Config) applyEnvOverrides() error {
	c.Session.Host = GetEnvVar(EnvSessionHost, c.Session.Host)
	c.Session.UserID = GetEnvVar(EnvSessionUserID, c.Session.UserID)
	c.Session.Password = GetEnvVar(EnvSessionPassword, c.Session.Password)
	c.Session.Transport = GetEnvVar(EnvSessionTransport, c.Session.Transport)
	c.Session.Endpoint = GetEnvVar(EnvSessionEndpoint, c.Session.Endpoint)
	c.Subscription.Symbol = GetEnvVar(EnvSymbol, c.Subscription.Symbol)
	c.LogLevel = GetEnvVar(EnvLogLevel, c.LogLevel)
	c.Health.Port = GetEnvInt(EnvHealthPort, c.Health.Port)

	if val := os.Getenv(EnvConnectTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", EnvConnectTimeout, val, err)
		}
		c.Session.ConnectTimeout = timeout
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name cannot be empty")
	}

	// Session
	if c.Session.Host == "" {
		return fmt.Errorf("session host cannot be empty")
	}
	if c.Session.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be greater than 0")
	}
	if c.Session.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts cannot be negative")
	}
	if available := transports.Names(); !slices.Contains(available, c.Session.Transport) {
		return fmt.Errorf("unsupported session transport '%s' (available: %s)", c.Session.Transport, strings.Join(available, ", "))
	}
	if c.Session.Transport == "replay" && c.Session.ReplayPath == "" {
		return fmt.Errorf("replay transport requires a replay_path")
	}

	// Subscription
	if c.Subscription.Symbol == "" {
		return fmt.Errorf("subscription symbol cannot be empty")
	}

	// Optional components
	if c.NATS.Enabled && len(c.NATS.Servers) == 0 {
		return fmt.Errorf("NATS servers list cannot be empty when NATS is enabled")
	}
	if c.Recorder.Enabled && c.Recorder.DBPath == "" {
		return fmt.Errorf("recorder db_path cannot be empty when the recorder is enabled")
	}
	if c.Health.Enabled && (c.Health.Port <= 1024 || c.Health.Port > 65535) {
		return fmt.Errorf("invalid health port number: %d (must be between 1025 and 65535)", c.Health.Port)
	}

	return nil
}

// -----------------------------------------------------------------------------

// SessionParameters returns the mapping consumed once at session creation
func (c *Config) SessionParameters() models.MSessionParameters {
	params := models.MSessionParameters{
		models.FIDEnableCtrlHandler:        c.Session.EnableCtrlHandler,
		models.FIDEnableDictionaryDownload: c.Session.EnableDictionaryDownload,
		models.FIDHost:                     c.Session.Host,
	}
	if c.Session.UserID != "" {
		params[models.FIDUserID] = c.Session.UserID
	}
	if c.Session.Password != "" {
		params[models.FIDPassword] = c.Session.Password
	}
	return params
}

// -----------------------------------------------------------------------------

// SessionEndpoint returns the configured endpoint or the default one derived from the host
func (c *Config) SessionEndpoint() string {
	if c.Session.Endpoint != "" {
		return c.Session.Endpoint
	}
	return fmt.Sprintf("wss://%s/session", c.Session.Host)
}

// -----------------------------------------------------------------------------

// SubscribeOptions returns the symbology and data source of the configured subscription
func (c *Config) SubscribeOptions() models.MSubscribeOptions {
	return models.MSubscribeOptions{
		SymbologyID:  c.Subscription.SymbologyID,
		DataSourceID: c.Subscription.DataSourceID,
	}
}

// -----------------------------------------------------------------------------

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// -----------------------------------------------------------------------------

// GetEnvInt returns the value of an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
