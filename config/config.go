package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds parser configuration.
type Config struct {
	Proxies           []string      `yaml:"proxies"`
	MaxAttempts       int           `yaml:"max_attempts"`
	Timeout           time.Duration `yaml:"timeout"`
	RetryDelayMin     time.Duration `yaml:"retry_delay_min"`
	RetryDelayMax     time.Duration `yaml:"retry_delay_max"`
	ChallengeDelayMin time.Duration `yaml:"challenge_delay_min"`
	ChallengeDelayMax time.Duration `yaml:"challenge_delay_max"`
	WarmUpURLs        []string      `yaml:"warm_up_urls"`
	WarmUpDelayMin    time.Duration `yaml:"warm_up_delay_min"`
	WarmUpDelayMax    time.Duration `yaml:"warm_up_delay_max"`
	Referer           string        `yaml:"referer"`
	SnapshotDir       string        `yaml:"snapshot_dir"`
	TitlePrefixLen    int           `yaml:"title_prefix_len"`
	DatabasePath      string        `yaml:"database"`
	MetricsAddr       string        `yaml:"metrics_addr"`
	Verbose           bool          `yaml:"verbose"`
}

// DefaultConfig returns the pacing the target tolerates in practice.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		Timeout:           15 * time.Second,
		RetryDelayMin:     2 * time.Second,
		RetryDelayMax:     5 * time.Second,
		ChallengeDelayMin: 5 * time.Second,
		ChallengeDelayMax: 10 * time.Second,
		WarmUpDelayMin:    1 * time.Second,
		WarmUpDelayMax:    3 * time.Second,
		Referer:           "https://www.amazon.com/",
		SnapshotDir:       "data",
		TitlePrefixLen:    20,
		DatabasePath:      "data/catalog.db",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.Proxies) == 0 {
		return fmt.Errorf("proxy list cannot be empty")
	}
	for i, p := range c.Proxies {
		if len(strings.Split(strings.TrimSpace(p), ":")) != 4 {
			return fmt.Errorf("proxy %d must have the form host:port:user:password", i)
		}
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if err := validateRange("retry delay", c.RetryDelayMin, c.RetryDelayMax); err != nil {
		return err
	}
	if err := validateRange("challenge delay", c.ChallengeDelayMin, c.ChallengeDelayMax); err != nil {
		return err
	}
	if err := validateRange("warm-up delay", c.WarmUpDelayMin, c.WarmUpDelayMax); err != nil {
		return err
	}
	for _, raw := range c.WarmUpURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid warm-up URL %q: %w", raw, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("warm-up URL %q must include a host", raw)
		}
	}
	if c.SnapshotDir == "" {
		return fmt.Errorf("snapshot dir cannot be empty")
	}
	if c.TitlePrefixLen <= 0 {
		return fmt.Errorf("title prefix length must be positive")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	return nil
}

func validateRange(name string, min, max time.Duration) error {
	if min < 0 {
		return fmt.Errorf("%s min cannot be negative", name)
	}
	if max < min {
		return fmt.Errorf("%s max (%s) cannot be below min (%s)", name, max, min)
	}
	return nil
}
