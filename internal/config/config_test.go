package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://api.example.test/gen-jw"
  request_timeout: 30s
  max_retries: 5
  retry_base_delay: 2s
  retry_multiplier: 3
  page_size: 50000

server:
  host: "127.0.0.1"
  port: 9090

logging:
  level: "debug"
  format: "text"
`)

	config, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "https://api.example.test/gen-jw", config.API.BaseURL)
	assert.Equal(t, 30*time.Second, config.API.RequestTimeout)
	assert.Equal(t, 5, config.API.MaxRetries)
	assert.Equal(t, 2*time.Second, config.API.RetryBaseDelay)
	assert.Equal(t, 3.0, config.API.RetryMultiplier)
	assert.Equal(t, 50000, config.API.PageSize)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "info"
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.raporty.pse.pl/api/gen-jw", config.API.BaseURL)
	assert.Equal(t, 60*time.Second, config.API.RequestTimeout)
	assert.Equal(t, 3, config.API.MaxRetries)
	assert.Equal(t, time.Second, config.API.RetryBaseDelay)
	assert.Equal(t, 2.0, config.API.RetryMultiplier)
	assert.Equal(t, 100000, config.API.PageSize)
	assert.Equal(t, 100000, config.API.MaxPageSize)
	assert.False(t, config.Database.Enabled)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("PSE_API_URL", "https://mirror.example.test/gen-jw")
	t.Setenv("PSE_DB_PASSWORD", "sekret")

	path := writeConfig(t, `
api:
  base_url: $PSE_API_URL

database:
  enabled: true
  host: "localhost"
  name: "pse"
  user: "pse"
  password: $PSE_DB_PASSWORD
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.test/gen-jw", config.API.BaseURL)
	assert.Equal(t, "sekret", config.Database.Password)
	assert.Contains(t, config.Database.ConnString(), "password=sekret")
}

func TestLoadRejectsOversizedPage(t *testing.T) {
	path := writeConfig(t, `
api:
  page_size: 200000
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_size")
}

func TestLoadRejectsMultiplierBelowOne(t *testing.T) {
	path := writeConfig(t, `
api:
  retry_multiplier: 0.5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_multiplier")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
