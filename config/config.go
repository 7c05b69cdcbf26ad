package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Stockpulse StockpulseConfig `yaml:"stockpulse"`
	Server     ServerConfig     `yaml:"server"`
	Market     MarketConfig     `yaml:"market"`
	Source     SourceConfig     `yaml:"source"`
	Reader     ReaderConfig     `yaml:"reader"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type StockpulseConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type MarketConfig struct {
	Symbols []string `yaml:"symbols"`
}

type SourceConfig struct {
	Yahoo YahooSourceConfig `yaml:"yahoo"`
}

type YahooSourceConfig struct {
	URL            string               `yaml:"url"`
	UserAgent      string               `yaml:"user_agent"`
	HistoryDays    int                  `yaml:"history_days"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type ReaderConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// DefaultUserAgent is sent with every provider request. Yahoo Finance rejects
// requests carrying the default Go user agent, so a browser string is spoofed.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, defaultConfigPath, envConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			BroadcastInterval: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Source: SourceConfig{
			Yahoo: YahooSourceConfig{
				URL:         "https://query1.finance.yahoo.com/v8/finance/chart",
				UserAgent:   DefaultUserAgent,
				HistoryDays: 365,
			},
		},
		Reader: ReaderConfig{
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnvOverrides(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployments tweak the listening port, tracked
// symbols and CloudWatch region without editing the config file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		symbols := make([]string, 0)
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		cfg.Market.Symbols = symbols
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Stockpulse.Name == "" {
		return fmt.Errorf("stockpulse.name is required")
	}
	if cfg.Stockpulse.Version == "" {
		return fmt.Errorf("stockpulse.version is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be greater than 0")
	}

	if len(cfg.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols must list at least one symbol")
	}
	seen := make(map[string]struct{}, len(cfg.Market.Symbols))
	for _, s := range cfg.Market.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("market.symbols must not contain empty entries")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("market.symbols contains duplicate symbol '%s'", s)
		}
		seen[s] = struct{}{}
	}

	if cfg.Source.Yahoo.URL == "" {
		return fmt.Errorf("source.yahoo.url is required")
	}
	if cfg.Source.Yahoo.HistoryDays <= 0 {
		return fmt.Errorf("source.yahoo.history_days must be greater than 0")
	}

	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}

	return nil
}
