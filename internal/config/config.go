package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/tune"
)

const (
	DefaultConfigPath    = "config.yaml"
	DefaultCachePath     = "autotune_cache.yaml"
	DefaultListenAddress = "127.0.0.1:9464"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Encoding  string `yaml:"encoding"`
	} `yaml:"logger"`
	Compute struct {
		Backend           string `yaml:"backend"`
		Channel           string `yaml:"channel"`
		MaxBufferElements int    `yaml:"maxBufferElements"`
	} `yaml:"compute"`
	Autotune struct {
		Warmup               *int   `yaml:"warmup"`
		Samples              int    `yaml:"samples"`
		SkipFailedCandidates bool   `yaml:"skipFailedCandidates"`
		CachePath            string `yaml:"cachePath"`
	} `yaml:"autotune"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"metrics"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.Logger.Verbosity == "" {
		c.Logger.Verbosity = "info"
	}
	if c.Logger.Encoding == "" {
		c.Logger.Encoding = "json"
	}
	if c.Compute.Backend == "" {
		c.Compute.Backend = "cpu"
	}
	if c.Compute.Channel == "" {
		c.Compute.Channel = compute.StrategyMutex.String()
	}
	if c.Autotune.Warmup == nil {
		warmup := tune.DefaultWarmup
		c.Autotune.Warmup = &warmup
	}
	if c.Autotune.Samples == 0 {
		c.Autotune.Samples = tune.DefaultSamples
	}
	if c.Autotune.CachePath == "" {
		c.Autotune.CachePath = DefaultCachePath
	}
	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = DefaultListenAddress
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if _, err := compute.ParseStrategy(c.Compute.Channel); err != nil {
		return err
	}
	if c.Compute.MaxBufferElements < 0 {
		return fmt.Errorf("compute.maxBufferElements must not be negative, got %d", c.Compute.MaxBufferElements)
	}
	if c.Autotune.Warmup != nil && *c.Autotune.Warmup < 0 {
		return fmt.Errorf("autotune.warmup must not be negative, got %d", *c.Autotune.Warmup)
	}
	if c.Autotune.Samples < 0 {
		return fmt.Errorf("autotune.samples must be positive, got %d", c.Autotune.Samples)
	}
	return nil
}

// TuneOptions converts the autotune section into tuner options.
func (c *Config) TuneOptions() tune.Options {
	opts := tune.DefaultOptions()
	if c.Autotune.Warmup != nil {
		opts.Warmup = *c.Autotune.Warmup
	}
	if c.Autotune.Samples > 0 {
		opts.Samples = c.Autotune.Samples
	}
	opts.SkipFailedCandidates = c.Autotune.SkipFailedCandidates
	return opts
}

// ChannelStrategy returns the configured channel strategy.
func (c *Config) ChannelStrategy() (compute.Strategy, error) {
	return compute.ParseStrategy(c.Compute.Channel)
}

// ClientProperties returns the limits shared by every client of a context.
func (c *Config) ClientProperties() compute.Properties {
	return compute.Properties{MaxBufferElements: c.Compute.MaxBufferElements}
}
