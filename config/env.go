package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvProxies     = "KDP_PROXIES"
	EnvDatabase    = "KDP_DB"
	EnvSnapshotDir = "KDP_SNAPSHOT_DIR"
	EnvMaxAttempts = "KDP_MAX_ATTEMPTS"
	EnvMetricsAddr = "KDP_METRICS_ADDR"
)

// LoadEnv overlays variables from local .env files onto the process environment.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			slog.Warn("failed to load env file", slog.String("file", file), slog.Any("error", err))
			continue
		}
		slog.Debug("loaded env file", slog.String("file", file))
	}
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer. ok is false when the variable is unset.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overrides c with any KDP_* variables present in the environment.
// KDP_PROXIES is a comma separated list of host:port:user:password entries.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString(EnvProxies); ok {
		c.Proxies = splitList(value)
	}
	if value, ok := EnvString(EnvDatabase); ok {
		c.DatabasePath = value
	}
	if value, ok := EnvString(EnvSnapshotDir); ok {
		c.SnapshotDir = value
	}
	if value, ok := EnvString(EnvMetricsAddr); ok {
		c.MetricsAddr = value
	}
	value, ok, err := EnvInt(EnvMaxAttempts)
	if err != nil {
		return err
	}
	if ok {
		c.MaxAttempts = value
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
