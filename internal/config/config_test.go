package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "LOG_LEVEL", "HISTORY_BACKEND", "STATE_TABLE", "SQLITE_PATH",
	"HISTORY_TTL_HOURS", "SUMMARY_TIMEOUT_SECONDS", "OPENAI_API_KEY",
	"OPENAI_BASE_URL", "OPENAI_MODEL", "PARAM_PREFIX", "REPLY_GENERATOR",
	"NATS_URL", "NATS_TOKEN",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "memory", cfg.HistoryBackend)
	require.Empty(t, cfg.StateTable)
	require.True(t, strings.HasSuffix(cfg.SQLitePath, filepath.Join(".moments-agent", "history.db")))
	require.Equal(t, 7*24*time.Hour, cfg.HistoryTTL)
	require.Equal(t, 30*time.Second, cfg.SummaryTimeout)
	require.Equal(t, "gpt-3.5-turbo", cfg.OpenAIModel)
	require.Equal(t, "template", cfg.ReplyGenerator)
	require.Empty(t, cfg.NatsURL)
	require.False(t, cfg.LLMConfigured())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HISTORY_BACKEND", "DynamoDB")
	t.Setenv("STATE_TABLE", "moments-history")
	t.Setenv("SQLITE_PATH", "/tmp/h.db")
	t.Setenv("HISTORY_TTL_HOURS", "24")
	t.Setenv("SUMMARY_TIMEOUT_SECONDS", "5")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("OPENAI_MODEL", "qwen2")
	t.Setenv("PARAM_PREFIX", "/moments/")
	t.Setenv("REPLY_GENERATOR", "llm")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("NATS_TOKEN", "s3cr3t")

	cfg := Load()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "dynamodb", cfg.HistoryBackend)
	require.Equal(t, "moments-history", cfg.StateTable)
	require.Equal(t, "/tmp/h.db", cfg.SQLitePath)
	require.Equal(t, 24*time.Hour, cfg.HistoryTTL)
	require.Equal(t, 5*time.Second, cfg.SummaryTimeout)
	require.Equal(t, "http://localhost:11434/v1", cfg.OpenAIBaseURL)
	require.Equal(t, "qwen2", cfg.OpenAIModel)
	require.Equal(t, "/moments", cfg.ParamPrefix)
	require.Equal(t, "llm", cfg.ReplyGenerator)
	require.Equal(t, "nats://localhost:4222", cfg.NatsURL)
	require.Equal(t, "s3cr3t", cfg.NatsToken)
	require.True(t, cfg.LLMConfigured())
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("HISTORY_TTL_HOURS", "-3")
	t.Setenv("SUMMARY_TIMEOUT_SECONDS", "0")

	cfg := Load()
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, 7*24*time.Hour, cfg.HistoryTTL)
	require.Equal(t, 30*time.Second, cfg.SummaryTimeout)
}

func TestLLMConfigured_APIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	require.True(t, Load().LLMConfigured())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STATE_TABLE=from-file\nPORT=7000\n"), 0o600))
	// godotenv skips keys already present in the environment, even empty ones.
	t.Setenv("STATE_TABLE", "from-env")
	require.NoError(t, os.Unsetenv("PORT"))

	require.NoError(t, LoadEnvFile(path))
	cfg := Load()
	require.Equal(t, "from-env", cfg.StateTable)
	require.Equal(t, 7000, cfg.Port)
}
