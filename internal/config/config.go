package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	DatabaseURL     string
	NatsURL         string
	NatsToken       string
	RedisAddr       string
	RedisPassword   string
	FlagCacheTTL    time.Duration
	AnalysisTimeout time.Duration
	APIToken        string
	CORSOrigins     []string
}

func Load() Config {
	return Config{
		Port:            envInt("SUBTEXT_PORT", 8760),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("SUBTEXT_MODEL", "claude-sonnet-4-20250514"),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		NatsURL:         envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		RedisAddr:       envStr("REDIS_ADDR", ""),
		RedisPassword:   envStr("REDIS_PASSWORD", ""),
		FlagCacheTTL:    envDuration("SUBTEXT_FLAG_CACHE_TTL", 24*time.Hour),
		AnalysisTimeout: envDuration("SUBTEXT_ANALYSIS_TIMEOUT", 60*time.Second),
		APIToken:        envStr("SUBTEXT_API_TOKEN", ""),
		CORSOrigins:     envList("SUBTEXT_CORS_ORIGINS"),
	}
}

// LoadDotEnv populates the environment from .env files. Missing files are
// ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
