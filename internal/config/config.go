package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iamnilay3/Shimmer/internal/retry"
)

// Config represents the complete Shimmer configuration
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Parallel ParallelConfig `mapstructure:"parallel" yaml:"parallel"`
	Instance InstanceConfig `mapstructure:"instance" yaml:"instance"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// PathsConfig controls where scratch data and lock files live
type PathsConfig struct {
	// TempRoot is the directory under which scoped temporary directories are
	// created. SHIMMER_PATHS_TEMP_ROOT overrides the config file; when both
	// are unset TMPDIR, then TEMP, is used. If all are empty, temp directory
	// allocation fails.
	TempRoot string `mapstructure:"temp_root" yaml:"temp_root"`

	// LockDir holds the single-instance lock files on Unix systems.
	// Empty means os.TempDir().
	LockDir string `mapstructure:"lock_dir" yaml:"lock_dir"`
}

// RetryConfig controls retries of filesystem removals
type RetryConfig struct {
	// MaxAttempts is the number of retries after the initial attempt (default: 3)
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// DelayMs is the fixed wait between attempts in milliseconds (default: 100)
	DelayMs int `mapstructure:"delay_ms" yaml:"delay_ms"`
}

// ParallelConfig controls bounded-parallelism batches
type ParallelConfig struct {
	// Degree is the maximum number of units running at once (default: number of CPUs)
	Degree int `mapstructure:"degree" yaml:"degree"`
}

// InstanceConfig controls the single-instance guard
type InstanceConfig struct {
	// Key identifies the guarded resource. Processes using the same key
	// exclude each other. (default: "shimmer")
	Key string `mapstructure:"key" yaml:"key"`
	// TimeoutMs bounds the wait for the guard in milliseconds.
	// 0 tries exactly once; a negative value waits indefinitely.
	TimeoutMs int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory receiving shimmer.log. Empty writes to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TempRootEnv overrides paths.temp_root.
const TempRootEnv = "SHIMMER_PATHS_TEMP_ROOT"

// TempRootFallbackEnv lists the environment variables consulted, in order,
// when paths.temp_root is not configured.
var TempRootFallbackEnv = []string{"TMPDIR", "TEMP"}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			TempRoot: "",
			LockDir:  "",
		},
		Retry: RetryConfig{
			MaxAttempts: retry.DefaultMaxAttempts,
			DelayMs:     int(retry.DefaultDelay / time.Millisecond),
		},
		Parallel: ParallelConfig{
			Degree: runtime.NumCPU(),
		},
		Instance: InstanceConfig{
			Key:       "shimmer",
			TimeoutMs: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// Policy returns the retry policy described by the config.
// It panics on values Validate rejects.
func (c *RetryConfig) Policy() retry.Policy {
	return retry.NewPolicy(c.MaxAttempts, c.Delay())
}

// Delay returns the retry delay as a time.Duration
func (c *RetryConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Timeout returns the guard timeout as a time.Duration.
// Any negative value is normalised to -1 (wait indefinitely).
func (c *InstanceConfig) Timeout() time.Duration {
	if c.TimeoutMs < 0 {
		return -1
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ResolveTempRoot returns TempRoot with a leading ~ expanded.
// An empty TempRoot stays empty.
func (p *PathsConfig) ResolveTempRoot() string {
	return expandHome(p.TempRoot)
}

// ResolveLockDir returns the directory for lock files, falling back to
// os.TempDir() when LockDir is empty.
func (p *PathsConfig) ResolveLockDir() string {
	if p.LockDir == "" {
		return os.TempDir()
	}
	return expandHome(p.LockDir)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// SetDefaults registers default values with viper and binds the temp root
// override to its environment variable.
func SetDefaults() {
	defaults := Default()

	// Paths defaults
	viper.SetDefault("paths.temp_root", defaults.Paths.TempRoot)
	viper.SetDefault("paths.lock_dir", defaults.Paths.LockDir)
	_ = viper.BindEnv("paths.temp_root", TempRootEnv)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.delay_ms", defaults.Retry.DelayMs)

	// Parallel defaults
	viper.SetDefault("parallel.degree", defaults.Parallel.Degree)

	// Instance defaults
	viper.SetDefault("instance.key", defaults.Instance.Key)
	viper.SetDefault("instance.timeout_ms", defaults.Instance.TimeoutMs)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.applyEnvFallbacks()

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// applyEnvFallbacks fills unset values from the platform environment.
func (c *Config) applyEnvFallbacks() {
	if c.Paths.TempRoot != "" {
		return
	}
	for _, name := range TempRootFallbackEnv {
		if v := os.Getenv(name); v != "" {
			c.Paths.TempRoot = v
			return
		}
	}
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "shimmer")
	}
	// Fall back to ~/.config/shimmer
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shimmer"
	}
	return filepath.Join(home, ".config", "shimmer")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
