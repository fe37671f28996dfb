package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"feedreader/models"

	"github.com/BurntSushi/toml"
)

const (
	DefaultIdlePeriodMs   = 15000
	DefaultFetchTimeoutMs = 30000
)

// TomlFeed represents one feed of the collection
type TomlFeed struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	IdlePeriodMs   int64      `toml:"idle_period_ms"`
	FetchTimeoutMs int64      `toml:"fetch_timeout_ms"`
	FetchRetries   uint64     `toml:"fetch_retries"`
	Feeds          []TomlFeed `toml:"feeds"`
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*TomlConfig, error) {
	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if config.IdlePeriodMs == 0 {
		config.IdlePeriodMs = DefaultIdlePeriodMs
	}
	if config.FetchTimeoutMs == 0 {
		config.FetchTimeoutMs = DefaultFetchTimeoutMs
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the invariants the widget relies on
func (c *TomlConfig) Validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("config must list at least one feed")
	}
	for i, feed := range c.Feeds {
		if strings.TrimSpace(feed.URL) == "" {
			return fmt.Errorf("feed %d has no url", i)
		}
		if strings.TrimSpace(feed.Name) == "" {
			return fmt.Errorf("feed %d (%s) has no name", i, feed.URL)
		}
	}
	if c.IdlePeriodMs < 0 || c.FetchTimeoutMs < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

func (c *TomlConfig) Sources() []models.FeedSource {
	sources := make([]models.FeedSource, len(c.Feeds))
	for i, feed := range c.Feeds {
		sources[i] = models.FeedSource{URL: feed.URL, Name: feed.Name}
	}
	return sources
}

func (c *TomlConfig) IdlePeriod() time.Duration {
	return time.Duration(c.IdlePeriodMs) * time.Millisecond
}

func (c *TomlConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}
