package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/webprobe/internal/logger"
	"github.com/loykin/webprobe/internal/target"
)

// TargetConfig is one [[targets]] entry.
type TargetConfig struct {
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval"`
	Pattern  string        `mapstructure:"pattern"`
}

// EngineConfig tunes scheduling and hand-off.
type EngineConfig struct {
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	ChannelCapacity int           `mapstructure:"channel_capacity"`
	PushTimeout     time.Duration `mapstructure:"push_timeout"`
	MaxConcurrent   int64         `mapstructure:"max_concurrent"`
	ShutdownGrace   time.Duration `mapstructure:"shutdown_grace"`
}

// SinkConfig tunes the persistence retry policy.
type SinkConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// StoreConfig selects and sizes the metric store.
type StoreConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxAge   time.Duration `mapstructure:"conn_max_age"`
}

// ServerConfig configures the status/metrics HTTP listener. An empty
// Listen disables the server.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// Config is the top-level TOML structure.
type Config struct {
	Targets []TargetConfig `mapstructure:"targets"`
	Engine  EngineConfig   `mapstructure:"engine"`
	Sink    SinkConfig     `mapstructure:"sink"`
	Store   StoreConfig    `mapstructure:"store"`
	Server  ServerConfig   `mapstructure:"server"`
	Log     logger.Config  `mapstructure:"log"`
}

// Load reads and validates a TOML config file. Every target must be
// valid before any part of the engine is constructed; malformed entries
// are fatal here, never later.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(c.Targets) == 0 {
		return nil, fmt.Errorf("config defines no targets")
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "webprobe.db"
	}
	if _, err := c.Registry(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Registry compiles the target list into a validated immutable registry.
func (c *Config) Registry() (*target.Registry, error) {
	specs := make([]target.Spec, 0, len(c.Targets))
	for _, tc := range c.Targets {
		var re *regexp.Regexp
		if tc.Pattern != "" {
			var err error
			re, err = regexp.Compile(tc.Pattern)
			if err != nil {
				return nil, fmt.Errorf("target %s: invalid pattern: %w", tc.URL, err)
			}
		}
		specs = append(specs, target.Spec{URL: tc.URL, Interval: tc.Interval, Pattern: re})
	}
	return target.NewRegistry(specs)
}
