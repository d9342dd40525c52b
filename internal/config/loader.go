package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".toolloop"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. TOOLLOOP_CONFIG overrides
// the default location; a leading ~ is expanded.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("TOOLLOOP_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home dir: %w", err)
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present), applies environment overrides,
// fills defaults, and validates the result.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit path. A missing file is not
// an error; defaults plus environment overrides apply.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, jsonErr)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers TOOLLOOP_* environment variables over the file
// config, one section at a time. Errors are ignored: a malformed override is
// treated as absent.
func applyEnvOverrides(cfg *Config) {
	_ = envconfig.Process("TOOLLOOP_PATHS", &cfg.Paths)
	_ = envconfig.Process("TOOLLOOP_MODEL", &cfg.Model)
	_ = envconfig.Process("TOOLLOOP_LIMITS", &cfg.Limits)
	_ = envconfig.Process("TOOLLOOP_LOOP", &cfg.Loop)
	_ = envconfig.Process("TOOLLOOP_TOOLS", &cfg.Tools)
	_ = envconfig.Process("TOOLLOOP_GEMINI", &cfg.Providers.Gemini)
	_ = envconfig.Process("TOOLLOOP_OPENAI", &cfg.Providers.OpenAI)
	_ = envconfig.Process("TOOLLOOP_TRACE", &cfg.Trace)
	_ = envconfig.Process("TOOLLOOP_TIMELINE", &cfg.Timeline)
}

func (c *Config) applyDefaults() {
	if c.Model.Name == "" {
		c.Model.Name = "gemini-2.0-flash"
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 4096
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = 0.7
	}
	if c.Limits.MaxRequests == 0 {
		c.Limits.MaxRequests = 20
	}
	if c.Limits.PeriodSeconds == 0 {
		c.Limits.PeriodSeconds = 60
	}
	if c.Loop.MaxTurns == 0 {
		c.Loop.MaxTurns = 20
	}
	if c.Loop.StuckWindow == 0 {
		c.Loop.StuckWindow = 3
	}
	if c.Loop.SignatureLength == 0 {
		c.Loop.SignatureLength = 50
	}
	if len(c.Tools.Dangerous) == 0 {
		c.Tools.Dangerous = []string{"write_file", "edit_file", "delete_file", "exec"}
	}
	if c.Tools.ExecTimeoutSeconds == 0 {
		c.Tools.ExecTimeoutSeconds = 60
	}
	if c.Trace.Topic == "" {
		c.Trace.Topic = "toolloop.traces"
	}
	if c.Timeline.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Timeline.Path = filepath.Join(home, ConfigDir, "timeline.db")
		}
	}
	if c.Paths.Workspace == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Paths.Workspace = wd
		}
	}
	if c.Paths.Sessions == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Paths.Sessions = filepath.Join(home, ConfigDir, "sessions")
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Limits.MaxRequests <= 0 {
		return fmt.Errorf("limits.maxRequests must be positive, got %d", c.Limits.MaxRequests)
	}
	if c.Limits.PeriodSeconds <= 0 {
		return fmt.Errorf("limits.periodSeconds must be positive, got %d", c.Limits.PeriodSeconds)
	}
	if c.Loop.MaxTurns <= 0 {
		return fmt.Errorf("loop.maxTurns must be positive, got %d", c.Loop.MaxTurns)
	}
	if c.Loop.StuckWindow <= 0 {
		return fmt.Errorf("loop.stuckWindow must be positive, got %d", c.Loop.StuckWindow)
	}
	if c.Trace.Enabled && strings.TrimSpace(c.Trace.Brokers) == "" {
		return fmt.Errorf("trace.brokers required when trace is enabled")
	}
	return nil
}
