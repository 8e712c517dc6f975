package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Arbiscan ArbiscanConfig `yaml:"arbiscan"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Channels ChannelsConfig `yaml:"channels"`
	Venues   []VenueConfig  `yaml:"venues"`
	Reporter ReporterConfig `yaml:"reporter"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ArbiscanConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ScannerConfig struct {
	Interval        time.Duration `yaml:"interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	QuoteCurrencies []string      `yaml:"quote_currencies"`
	MaxInstruments  int           `yaml:"max_instruments"`
}

type ChannelsConfig struct {
	SnapshotBuffer int `yaml:"snapshot_buffer"`
}

type VenueConfig struct {
	Name           string               `yaml:"name"`
	Enabled        bool                 `yaml:"enabled"`
	Fee            float64              `yaml:"fee"`
	BaseURL        string               `yaml:"base_url"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ReporterConfig struct {
	Table          TableConfig          `yaml:"table"`
	OpportunityLog OpportunityLogConfig `yaml:"opportunity_log"`
}

type TableConfig struct {
	Enabled bool `yaml:"enabled"`
	Color   bool `yaml:"color"`
}

type OpportunityLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxAge  int    `yaml:"max_age"`
	MaxSize int    `yaml:"max_size"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Prefix          string        `yaml:"prefix"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	BatchSize       int           `yaml:"batch_size"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
}

// knownVenues lists the venue integrations this build ships with. A
// configured venue outside this set is rejected at load time rather than
// discovered missing mid-scan.
var knownVenues = map[string]struct{}{
	"binance": {},
	"bybit":   {},
	"kucoin":  {},
	"okx":     {},
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, "config/config.yml", map[string]string{
		environmentProduction: "config/config.production.yml",
		environmentStaging:    "config/config.staging.yml",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Scanner: ScannerConfig{
			Interval:     5 * time.Second,
			FetchTimeout: 3 * time.Second,
		},
		Channels: ChannelsConfig{
			SnapshotBuffer: 16,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// EnabledVenues returns the venues participating in the scan.
func (c *Config) EnabledVenues() []VenueConfig {
	out := make([]VenueConfig, 0, len(c.Venues))
	for _, v := range c.Venues {
		if v.Enabled {
			out = append(out, v)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Arbiscan.Name == "" {
		return fmt.Errorf("arbiscan.name is required")
	}
	if cfg.Arbiscan.Version == "" {
		return fmt.Errorf("arbiscan.version is required")
	}

	if cfg.Scanner.Interval <= 0 {
		return fmt.Errorf("scanner.interval must be greater than 0")
	}
	if cfg.Scanner.FetchTimeout <= 0 {
		return fmt.Errorf("scanner.fetch_timeout must be greater than 0")
	}
	if cfg.Scanner.FetchTimeout > cfg.Scanner.Interval {
		return fmt.Errorf("scanner.fetch_timeout must not exceed scanner.interval")
	}

	if cfg.Channels.SnapshotBuffer <= 0 {
		return fmt.Errorf("channels.snapshot_buffer must be greater than 0")
	}

	enabled := 0
	seen := make(map[string]struct{}, len(cfg.Venues))
	for _, v := range cfg.Venues {
		if v.Name == "" {
			return fmt.Errorf("venue name is required")
		}
		if _, ok := knownVenues[v.Name]; !ok {
			return fmt.Errorf("unknown venue %q", v.Name)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("venue %q configured twice", v.Name)
		}
		seen[v.Name] = struct{}{}
		if v.Fee < 0 || v.Fee >= 1 {
			return fmt.Errorf("venue %q fee must be a fraction in [0,1)", v.Name)
		}
		if v.Enabled {
			enabled++
		}
	}
	if enabled < 2 {
		return fmt.Errorf("at least two enabled venues are required for arbitrage scanning")
	}

	if cfg.Reporter.OpportunityLog.Enabled && cfg.Reporter.OpportunityLog.Path == "" {
		return fmt.Errorf("reporter.opportunity_log.path is required when the opportunity log is enabled")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
