package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "database", cfg.ServiceType)
	assert.Equal(t, "public", cfg.EndpointType)
	assert.Equal(t, "retry-identity", cfg.Auth305Behavior)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost:7233", cfg.TemporalAddress)
	assert.Equal(t, "default", cfg.TemporalNamespace)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DBAAS_AUTH_URL", "https://identity.example/v2.0")
	t.Setenv("DBAAS_USERNAME", "edvin")
	t.Setenv("DBAAS_PROJECT_ID", "t-1000")
	t.Setenv("DBAAS_RETRIES", "5")
	t.Setenv("DBAAS_TIMEOUT", "90")
	t.Setenv("DBAAS_INSECURE", "true")
	t.Setenv("DBAAS_JSON", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://identity.example/v2.0", cfg.AuthURL)
	assert.Equal(t, "edvin", cfg.Username)
	assert.Equal(t, "t-1000", cfg.ProjectID)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.True(t, cfg.Insecure)
	assert.True(t, cfg.JSONOutput)
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("DBAAS_RETRIES", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retries)
}

func TestDebugOverridesLogLevel(t *testing.T) {
	t.Setenv("DBAAS_LOG_LEVEL", "warn")
	t.Setenv("DBAAS_DEBUG", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestSecretStrategy(t *testing.T) {
	cfg := &Config{Password: "hunter2", APIKey: "k-1"}
	secret, strategy := cfg.Secret()
	assert.Equal(t, "hunter2", secret)
	assert.Equal(t, "password", strategy)

	cfg.Password = ""
	secret, strategy = cfg.Secret()
	assert.Equal(t, "k-1", secret)
	assert.Equal(t, "apikey", strategy)
}
