package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		config, err := LoadConfig("")
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:8000", config.Addr())
		require.Equal(t, "memory", config.Store.Backend)
	})

	t.Run("yaml values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
host: 0.0.0.0
port: 9100
model: gpt-4o
openai_api_key: sk-file
tavily_api_key: tvly-file
store:
  backend: redis
  redis_addr: localhost:6379
log_dir: /var/log/briefing
`)
		config, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, "0.0.0.0:9100", config.Addr())
		require.Equal(t, "gpt-4o", config.Model)
		require.Equal(t, "redis", config.Store.Backend)
		require.Equal(t, "localhost:6379", config.Store.RedisAddr)
		require.Equal(t, "/var/log/briefing", config.LogDir)
		require.NoError(t, config.Validate())
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		t.Setenv("TAVILY_API_KEY", "tvly-env")

		path := writeConfig(t, "openai_api_key: sk-file\ntavily_api_key: tvly-file\n")
		config, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, "sk-env", config.OpenAIAPIKey)
		require.Equal(t, "tvly-env", config.TavilyAPIKey)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "port: [not a number"))
		require.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		config := DefaultConfig()
		config.OpenAIAPIKey = "sk-test"
		config.TavilyAPIKey = "tvly-test"
		return config
	}

	t.Run("complete config passes", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("missing api keys", func(t *testing.T) {
		config := base()
		config.OpenAIAPIKey = ""
		require.ErrorContains(t, config.Validate(), "openai api key")

		config = base()
		config.TavilyAPIKey = ""
		require.ErrorContains(t, config.Validate(), "tavily api key")
	})

	t.Run("backend requirements", func(t *testing.T) {
		config := base()
		config.Store.Backend = "redis"
		require.ErrorContains(t, config.Validate(), "redis_addr")

		config = base()
		config.Store.Backend = "postgres"
		require.ErrorContains(t, config.Validate(), "postgres_dsn")

		config = base()
		config.Store.Backend = "etcd"
		require.ErrorContains(t, config.Validate(), "unknown store backend")
	})
}
