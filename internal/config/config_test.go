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
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  apiKey: secret
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: app
  password: pw
  name: rustgreen
storage:
  driver: minio
llm:
  enabled: true
  apiKey: sk-test
  model: deepseek-chat
  timeoutSeconds: 10
  maxRetries: 5
  retryDelaySeconds: 1
  trackTokens: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "minio", cfg.Storage.Driver)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, 10*time.Second, cfg.LLMTimeout())
	assert.Equal(t, time.Second, cfg.LLMRetryDelay())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "data/sessions", cfg.Storage.BasePath)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 2*time.Second, cfg.LLMRetryDelay())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesEnableLLM(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-from-env")
	t.Setenv("PORT", "7070")

	cfg, err := Load(writeConfig(t, "llm:\n  enabled: false\n"))
	require.NoError(t, err)

	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_NoKeyForcesDegradedMode(t *testing.T) {
	cfg, err := Load(writeConfig(t, "llm:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.False(t, cfg.LLM.Enabled)
}

func TestDSNBuilders(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  host: localhost
  port: 3306
  user: app
  password: pw
  name: rustgreen
`))
	require.NoError(t, err)

	assert.Equal(t,
		"app:pw@tcp(localhost:3306)/rustgreen?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())
	assert.Equal(t,
		"host=localhost port=3306 user=app password=pw dbname=rustgreen sslmode=disable",
		cfg.PostgresDSN())
}
