// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path             string        `yaml:"path"`
	HistoryRetention time.Duration `yaml:"history_retention"`
}

type PrometheusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}

type DiscoveryConfig struct {
	Interval         time.Duration `yaml:"interval"`
	AutoEnabled      bool          `yaml:"auto_enabled"`
	SweepBatchSize   int           `yaml:"sweep_batch_size"`
	RefreshBatchSize int           `yaml:"refresh_batch_size"`
	BatchDelay       time.Duration `yaml:"batch_delay"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	RecheckInterval  time.Duration `yaml:"recheck_interval"`
	SNMPCommunity    string        `yaml:"snmp_community"`
	Ranges           []RangeConfig `yaml:"ranges"`
}

// RangeConfig describes one last-octet sweep: base "10.0.11" with start=1
// end=254 expands to 10.0.11.1 .. 10.0.11.254. Type selects the target
// table (devices or vlan).
type RangeConfig struct {
	Range string `yaml:"range"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Type  string `yaml:"type"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	// Database defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/lanmap.db"
	}
	if cfg.Database.HistoryRetention == 0 {
		cfg.Database.HistoryRetention = 7 * 24 * time.Hour
	}

	// Discovery defaults
	if cfg.Discovery.Interval == 0 {
		cfg.Discovery.Interval = 30 * time.Minute
	}
	if cfg.Discovery.SweepBatchSize == 0 {
		cfg.Discovery.SweepBatchSize = 32
	}
	if cfg.Discovery.RefreshBatchSize == 0 {
		// Refresh items do more auxiliary I/O per device, so smaller batches
		cfg.Discovery.RefreshBatchSize = 16
	}
	if cfg.Discovery.BatchDelay == 0 {
		cfg.Discovery.BatchDelay = 200 * time.Millisecond
	}
	if cfg.Discovery.ProbeTimeout == 0 {
		cfg.Discovery.ProbeTimeout = 1 * time.Second
	}
	if cfg.Discovery.RecheckInterval == 0 {
		cfg.Discovery.RecheckInterval = 5 * time.Minute
	}
	if cfg.Discovery.SNMPCommunity == "" {
		cfg.Discovery.SNMPCommunity = "public"
	}
	for i := range cfg.Discovery.Ranges {
		if cfg.Discovery.Ranges[i].Start == 0 {
			cfg.Discovery.Ranges[i].Start = 1
		}
		if cfg.Discovery.Ranges[i].End == 0 {
			cfg.Discovery.Ranges[i].End = 254
		}
		if cfg.Discovery.Ranges[i].Type == "" {
			cfg.Discovery.Ranges[i].Type = "devices"
		}
	}

	// Prometheus defaults
	if cfg.Prometheus.MetricsPath == "" {
		cfg.Prometheus.MetricsPath = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Discovery.Interval < time.Minute {
		return fmt.Errorf("discovery.interval must be at least 1m")
	}
	if cfg.Discovery.SweepBatchSize < 1 || cfg.Discovery.RefreshBatchSize < 1 {
		return fmt.Errorf("discovery batch sizes must be at least 1")
	}
	if cfg.Discovery.ProbeTimeout < 100*time.Millisecond {
		return fmt.Errorf("discovery.probe_timeout must be at least 100ms")
	}

	seen := make(map[string]bool)
	for _, r := range cfg.Discovery.Ranges {
		if r.Range == "" {
			return fmt.Errorf("discovery range is missing its base address")
		}
		if r.Start < 1 || r.End > 254 || r.Start > r.End {
			return fmt.Errorf("discovery range %s has invalid octet bounds %d-%d", r.Range, r.Start, r.End)
		}
		if r.Type != "devices" && r.Type != "vlan" {
			return fmt.Errorf("discovery range %s has unknown type %q", r.Range, r.Type)
		}
		key := fmt.Sprintf("%s:%s", r.Range, r.Type)
		if seen[key] {
			return fmt.Errorf("duplicate discovery range: %s", r.Range)
		}
		seen[key] = true
	}

	return nil
}
