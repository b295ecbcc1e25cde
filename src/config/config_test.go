package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"activ-subscriber/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{
	EnvSessionHost, EnvSessionUserID, EnvSessionPassword, EnvSessionTransport,
	EnvSessionEndpoint, EnvConnectTimeout, EnvSymbol, EnvLogLevel, EnvHealthPort,
}

// clearEnv unsets every ACTIV_* variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfigDefaultsWhenEnvUnset(t *testing.T) {
	clearEnv(t)

	cfg, err := NewConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Session.Host)
	assert.Equal(t, "", cfg.Session.UserID)
	assert.Equal(t, "", cfg.Session.Password)
	assert.Equal(t, DefaultSymbol, cfg.Subscription.Symbol)
	assert.Equal(t, models.SymbologyNative, cfg.Subscription.SymbologyID)
	assert.Equal(t, models.DataSourceActiv, cfg.Subscription.DataSourceID)
	assert.Equal(t, DefaultConnectTimeout, cfg.Session.ConnectTimeout)
	assert.Equal(t, "websocket", cfg.Session.Transport)
	assert.True(t, cfg.Session.EnableCtrlHandler)
	assert.True(t, cfg.Session.EnableDictionaryDownload)
}

func TestNewConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSessionHost, "gw.example.com")
	t.Setenv(EnvSessionUserID, "alice")
	t.Setenv(EnvSessionPassword, "s3cret")
	t.Setenv(EnvSymbol, "CSIQ.Q")
	t.Setenv(EnvConnectTimeout, "2s")

	cfg, err := NewConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, "gw.example.com", cfg.Session.Host)
	assert.Equal(t, "alice", cfg.Session.UserID)
	assert.Equal(t, "s3cret", cfg.Session.Password)
	assert.Equal(t, "CSIQ.Q", cfg.Subscription.Symbol)
	assert.Equal(t, 2*time.Second, cfg.Session.ConnectTimeout)
	assert.Equal(t, "wss://gw.example.com/session", cfg.SessionEndpoint())
}

func TestNewConfigInvalidTimeoutEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConnectTimeout, "soon")

	_, err := NewConfig("", "")
	assert.Error(t, err)
}

func TestNewConfigFromYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
name: replay-demo
session:
  host: localhost
  transport: replay
  replay_path: /tmp/rec.db
  connect_timeout: 1500ms
subscription:
  symbol: CSIQ.Q
nats:
  enabled: true
  servers: ["nats://127.0.0.1:4222"]
  serializer: proto
`)

	cfg, err := NewConfig(path, "")
	require.NoError(t, err)

	assert.Equal(t, "replay-demo", cfg.Name)
	assert.Equal(t, "replay", cfg.Session.Transport)
	assert.Equal(t, 1500*time.Millisecond, cfg.Session.ConnectTimeout)
	assert.Equal(t, "CSIQ.Q", cfg.Subscription.Symbol)
	assert.Equal(t, "proto", cfg.NATS.Serializer)
	// untouched keys keep their defaults
	assert.Equal(t, models.DataSourceActiv, cfg.Subscription.DataSourceID)
	assert.True(t, cfg.Session.EnableDictionaryDownload)
}

func TestNewConfigEnvFile(t *testing.T) {
	clearEnv(t)
	envPath := writeFile(t, "test.env", "ACTIV_SESSION_HOST=dotenv.example.com\nACTIV_SESSION_USER_ID=bob\n")

	// variables already set win over the file
	t.Setenv(EnvSessionUserID, "carol")

	cfg, err := NewConfig("", envPath)
	require.NoError(t, err)

	assert.Equal(t, "dotenv.example.com", cfg.Session.Host)
	assert.Equal(t, "carol", cfg.Session.UserID)
}

func TestNewConfigMissingFiles(t *testing.T) {
	clearEnv(t)

	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)

	_, err = NewConfig("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"empty host", func(c *Config) { c.Session.Host = "" }},
		{"zero timeout", func(c *Config) { c.Session.ConnectTimeout = 0 }},
		{"negative reconnects", func(c *Config) { c.Session.ReconnectAttempts = -1 }},
		{"unknown transport", func(c *Config) { c.Session.Transport = "carrier-pigeon" }},
		{"replay without path", func(c *Config) { c.Session.Transport = "replay" }},
		{"empty symbol", func(c *Config) { c.Subscription.Symbol = "" }},
		{"nats without servers", func(c *Config) { c.NATS.Enabled = true }},
		{"recorder without path", func(c *Config) { c.Recorder.Enabled = true; c.Recorder.DBPath = "" }},
		{"bad health port", func(c *Config) { c.Health.Enabled = true; c.Health.Port = 80 }},
	}

	assert.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateListsRegisteredTransports(t *testing.T) {
	cfg := Default()
	cfg.Session.Transport = "carrier-pigeon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: replay, websocket")
}

func TestSessionParameters(t *testing.T) {
	cfg := Default()
	params := cfg.SessionParameters()

	assert.Equal(t, DefaultHost, params.String(models.FIDHost))
	assert.True(t, params.Bool(models.FIDEnableCtrlHandler))
	assert.True(t, params.Bool(models.FIDEnableDictionaryDownload))
	_, hasUser := params[models.FIDUserID]
	assert.False(t, hasUser)

	cfg.Session.UserID = "alice"
	cfg.Session.Password = "pw"
	params = cfg.SessionParameters()
	assert.Equal(t, "alice", params.String(models.FIDUserID))
	assert.Equal(t, "pw", params.String(models.FIDPassword))
}
