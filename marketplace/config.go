package marketplace

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
	DB     DBConfig     `toml:"db"`
	AMQP   AMQPConfig   `toml:"amqp"`
	Market MarketConfig `toml:"market"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type AMQPConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Queue   string `toml:"queue"`
}

// MarketConfig tunes the background loops and the view cache. Durations are
// TOML strings in time.ParseDuration syntax.
type MarketConfig struct {
	SweepInterval     string `toml:"sweep_interval"`
	ReconcileInterval string `toml:"reconcile_interval"`
	ViewCacheSize     int    `toml:"view_cache_size"`
	ViewCacheTTL      string `toml:"view_cache_ttl"`
	BidRateLimit      int    `toml:"bid_rate_limit"`
}

func (c MarketConfig) SweepEvery() time.Duration {
	return parseDuration(c.SweepInterval, 60*time.Second)
}

func (c MarketConfig) ReconcileEvery() time.Duration {
	return parseDuration(c.ReconcileInterval, 15*time.Minute)
}

func (c MarketConfig) ViewTTL() time.Duration {
	return parseDuration(c.ViewCacheTTL, 5*time.Second)
}

func (c MarketConfig) CacheSize() int {
	if c.ViewCacheSize <= 0 {
		return 10000
	}
	return c.ViewCacheSize
}

func (c MarketConfig) BidsPerMinute() int {
	if c.BidRateLimit <= 0 {
		return 30
	}
	return c.BidRateLimit
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
