package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	LogLevel       string
	HistoryBackend string
	StateTable     string
	SQLitePath     string
	HistoryTTL     time.Duration
	SummaryTimeout time.Duration
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	ParamPrefix    string
	ReplyGenerator string
	NatsURL        string
	NatsToken      string
}

// LoadEnvFile seeds the environment from path. A missing file is not an error
// and variables already set are left alone.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func Load() Config {
	return Config{
		Port:           envInt("PORT", 8000),
		LogLevel:       strings.ToLower(envStr("LOG_LEVEL", "info")),
		HistoryBackend: strings.ToLower(envStr("HISTORY_BACKEND", "memory")),
		StateTable:     envStr("STATE_TABLE", ""),
		SQLitePath:     envStr("SQLITE_PATH", defaultSQLitePath()),
		HistoryTTL:     time.Duration(envInt("HISTORY_TTL_HOURS", 168)) * time.Hour,
		SummaryTimeout: time.Duration(envInt("SUMMARY_TIMEOUT_SECONDS", 30)) * time.Second,
		OpenAIAPIKey:   envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  envStr("OPENAI_BASE_URL", ""),
		OpenAIModel:    envStr("OPENAI_MODEL", "gpt-3.5-turbo"),
		ParamPrefix:    strings.TrimRight(envStr("PARAM_PREFIX", ""), "/"),
		ReplyGenerator: strings.ToLower(envStr("REPLY_GENERATOR", "template")),
		NatsURL:        envStr("NATS_URL", ""),
		NatsToken:      envStr("NATS_TOKEN", ""),
	}
}

// LLMConfigured reports whether an API key is available, directly or via
// the parameter store.
func (c Config) LLMConfigured() bool {
	return c.OpenAIAPIKey != "" || c.ParamPrefix != ""
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".moments-agent", "history.db")
	}
	return filepath.Join(home, ".moments-agent", "history.db")
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
