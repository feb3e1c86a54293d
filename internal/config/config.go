// Package config resolves the engine's run options — threshold mode,
// output selection, and the ambient runtime/log knobs — from a config
// file, environment variables, and CLI flags, composed the way the
// perf-analysis reference repo's pkg/config layers viper (§6 CLI surface,
// §7 ConfigError).
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/maskedbox"
)

// ThresholdConfig selects the activity threshold mode and polarity (§4.2).
type ThresholdConfig struct {
	Rho      float64 `mapstructure:"rho"`
	Absolute bool    `mapstructure:"absolute"`
	Negate   bool    `mapstructure:"negate"`
}

// Mode translates Absolute into the maskedbox threshold mode.
func (t ThresholdConfig) Mode() maskedbox.Mode {
	if t.Absolute {
		return maskedbox.ModeAbsolute
	}
	return maskedbox.ModeRelative
}

// RuntimeConfig holds the ambient execution knobs: how many blocks may be
// resident in memory at once before spilling (§4.9, §5), and how many
// worker goroutines foreach may use.
type RuntimeConfig struct {
	InMemoryBlocks int    `mapstructure:"in_memory_blocks"`
	Threads        int    `mapstructure:"threads"`
	SpillDir       string `mapstructure:"spill_dir"`
}

// LogConfig controls internal/telemetry's output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Config holds every resolved run option.
type Config struct {
	Threshold      ThresholdConfig `mapstructure:"threshold"`
	MinCells       int             `mapstructure:"min_cells"`
	FunctionFields []string        `mapstructure:"function_fields"`
	IntegralFields []string        `mapstructure:"integral_fields"`
	Blocks         int             `mapstructure:"blocks"`
	Split          string          `mapstructure:"split"`
	Runtime        RuntimeConfig   `mapstructure:"runtime"`
	Log            LogConfig       `mapstructure:"log"`
}

// Load reads configuration from configPath (or the standard search path
// when empty), allowing AMRTREE_-prefixed environment variables to
// override any key.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("amrtree")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/amrtree")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configPath == "" {
			// no config file on the search path: defaults + env + flags only.
		} else if os.IsNotExist(err) {
			return nil, errs.Config("config file %s does not exist", configPath)
		} else {
			return nil, errs.Config("reading config file %s: %v", configPath, err)
		}
	}

	v.SetEnvPrefix("AMRTREE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Config("unmarshalling config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from in-memory content, useful for
// tests that don't want to touch the filesystem.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, errs.Config("reading config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Config("unmarshalling config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("threshold.rho", 1.0)
	v.SetDefault("threshold.absolute", false)
	v.SetDefault("threshold.negate", false)

	v.SetDefault("min_cells", 1)
	v.SetDefault("blocks", 0)
	v.SetDefault("split", "")

	v.SetDefault("runtime.in_memory_blocks", 0) // 0 == unlimited, no spilling
	v.SetDefault("runtime.threads", 1)
	v.SetDefault("runtime.spill_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate reports a ConfigError, before compute starts, for a negative
// rho or min_cells, threads below 1, a negative in_memory_blocks,
// in_memory_blocks without spill_dir, or a log format other than text or
// json. Keys that Config does not declare are ignored, not reported.
func (c *Config) Validate() error {
	if c.Threshold.Rho < 0 {
		return errs.Config("rho must be non-negative, got %g", c.Threshold.Rho)
	}
	if c.MinCells < 0 {
		return errs.Config("min_cells must be non-negative, got %d", c.MinCells)
	}
	if c.Runtime.Threads < 1 {
		return errs.Config("runtime.threads must be at least 1, got %d", c.Runtime.Threads)
	}
	if c.Runtime.InMemoryBlocks < 0 {
		return errs.Config("runtime.in_memory_blocks must be non-negative, got %d", c.Runtime.InMemoryBlocks)
	}
	if c.Runtime.InMemoryBlocks > 0 && c.Runtime.SpillDir == "" {
		return errs.Config("runtime.spill_dir is required when in_memory_blocks > 0")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errs.Config("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// String renders a one-line summary for startup log lines.
func (c *Config) String() string {
	return fmt.Sprintf("rho=%g absolute=%t negate=%t min_cells=%d threads=%d in_memory_blocks=%d",
		c.Threshold.Rho, c.Threshold.Absolute, c.Threshold.Negate, c.MinCells, c.Runtime.Threads, c.Runtime.InMemoryBlocks)
}
