package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	BlobRoot string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AnchorProviders   []string
	AnchorLedgerKey   string
	AccessPolicyPath  string
	NotifyFrom        string
	OutboxBatchSize   int
	OutboxPollSeconds int

	AdminAPIKey string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:          addr,
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		LogLevel:          envDefault("LOG_LEVEL", "info"),
		BlobRoot:          envDefault("BLOB_ROOT", "./data/blobs"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           envIntDefault("REDIS_DB", 0),
		AnchorProviders:   envListDefault("ANCHOR_PROVIDERS", nil),
		AnchorLedgerKey:   envDefault("ANCHOR_LEDGER_KEY", ""),
		AccessPolicyPath:  os.Getenv("ACCESS_POLICY_PATH"),
		NotifyFrom:        envDefault("NOTIFY_FROM", "signet@localhost"),
		OutboxBatchSize:   envIntDefault("OUTBOX_BATCH_SIZE", 100),
		OutboxPollSeconds: envIntDefault("OUTBOX_POLL_SECONDS", 5),
		AdminAPIKey:       os.Getenv("ADMIN_API_KEY"),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envListDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
