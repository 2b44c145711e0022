// Package config loads the server and poller configuration from a YAML file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Alerts AlertsConfig `yaml:"alerts"`
	Watch  WatchConfig  `yaml:"watch"`
	Client ClientConfig `yaml:"client"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type AlertsConfig struct {
	// WarningOffsets are minutes before a session's end at which a warning
	// fires. The deployed default is 10 and 5.
	WarningOffsets   []int         `yaml:"warning_offsets"`
	ToleranceMinutes int           `yaml:"tolerance_minutes"`
	DedupCapacity    int           `yaml:"dedup_capacity"`
	DedupMaxAge      time.Duration `yaml:"dedup_max_age"`
}

type WatchConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	StoreTimeout     time.Duration `yaml:"store_timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

type ClientConfig struct {
	ServerURL      string        `yaml:"server_url"`
	ListRefresh    time.Duration `yaml:"list_refresh"`
	AlertCheck     time.Duration `yaml:"alert_check"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Path: "events.db",
		},
		Alerts: AlertsConfig{
			WarningOffsets:   []int{10, 5},
			ToleranceMinutes: 1,
			DedupCapacity:    50,
			DedupMaxAge:      5 * time.Minute,
		},
		Watch: WatchConfig{
			PollInterval:     5 * time.Second,
			SnapshotInterval: 30 * time.Second,
			StoreTimeout:     5 * time.Second,
			FailureThreshold: 3,
		},
		Client: ClientConfig{
			ServerURL:      "http://127.0.0.1:8080",
			ListRefresh:    30 * time.Second,
			AlertCheck:     5 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
	}
}

// Load reads the config at path on top of the defaults. A missing file is
// not an error: the binary runs on defaults plus environment overrides
// (PORT, FORMACIONES_DB, FORMACIONES_SERVER_URL).
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("FORMACIONES_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("FORMACIONES_SERVER_URL"); v != "" {
		c.Client.ServerURL = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if len(c.Alerts.WarningOffsets) == 0 {
		return fmt.Errorf("alerts.warning_offsets must not be empty")
	}
	for _, o := range c.Alerts.WarningOffsets {
		if o <= 0 {
			return fmt.Errorf("warning offset %d must be positive", o)
		}
	}
	// The due window must outlast the poll cadence or boundaries can slip
	// between ticks.
	tolerance := time.Duration(c.Alerts.ToleranceMinutes) * time.Minute
	if c.Watch.PollInterval >= tolerance {
		return fmt.Errorf("watch.poll_interval %v must be shorter than the %v tolerance window",
			c.Watch.PollInterval, tolerance)
	}
	return nil
}
