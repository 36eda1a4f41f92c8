// Package config loads statemon settings from the global config file, the
// project config file, a project .env file, and STATEMON_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ProjectFile is the project config file name, looked up in the project root.
const ProjectFile = ".statemon.toml"

// EnvPrefix prefixes every environment override, e.g. STATEMON_MAX_DIFF_CHARS.
const EnvPrefix = "STATEMON"

// Config holds all configurable statemon settings.
type Config struct {
	CacheTTLSeconds  int    `mapstructure:"cache_ttl_seconds"`
	MaxDiffChars     int    `mapstructure:"max_diff_chars"`
	ObservationLimit int    `mapstructure:"observation_limit"`
	DBPath           string `mapstructure:"db_path"`   // relative to the project root
	PlansDir         string `mapstructure:"plans_dir"` // relative to the project root
	GitBackend       string `mapstructure:"git_backend"`
	LogLevel         string `mapstructure:"log_level"`
	DefaultFormat    string `mapstructure:"default_format"` // "markdown" | "json" | "toml"
}

var (
	gitBackends = []string{"cli", "gogit"}
	logLevels   = []string{"debug", "info", "warn", "error"}
	formats     = []string{"markdown", "json", "toml"}
)

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		CacheTTLSeconds:  30,
		MaxDiffChars:     10_000,
		ObservationLimit: 10,
		DBPath:           ".claude-mem/claude-mem.db",
		PlansDir:         "docs/plans",
		GitBackend:       "cli",
		LogLevel:         "warn",
		DefaultFormat:    "markdown",
	}
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load resolves the effective configuration for the project at root:
// defaults, then the global file, then the project file, then environment
// variables (including those from <root>/.env).
func Load(root string) (Config, error) {
	if err := LoadDotEnv(root); err != nil {
		return Config{}, err
	}
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject(root)
	if err != nil {
		return Config{}, err
	}
	cfg := Merge(global, project)
	ApplyEnv(&cfg)
	return cfg, nil
}

// GlobalPath returns ~/.config/statemon/config.toml.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "statemon", "config.toml"), nil
}

// LoadGlobal reads ~/.config/statemon/config.toml.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .statemon.toml in root.
// Returns nil (no error) if the file is absent.
func LoadProject(root string) (*Config, error) {
	return loadFile(filepath.Join(root, ProjectFile), false)
}

// LoadDotEnv loads <root>/.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(root string) error {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// loadFile reads and parses a TOML config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	// A zero left in Config reads as "unset" during Merge, so explicit
	// non-positive numbers are rejected here.
	for _, key := range positiveKeys {
		if v.IsSet(key) && v.GetInt(key) <= 0 {
			return nil, fmt.Errorf("%s: %w", path, &ConfigError{Key: key, Value: v.GetInt(key), Reason: "must be positive"})
		}
	}
	return &cfg, nil
}

var positiveKeys = []string{"cache_ttl_seconds", "max_diff_chars", "observation_limit"}

// ApplyEnv overrides cfg with any STATEMON_* variables that are set.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{
		"cache_ttl_seconds", "max_diff_chars", "observation_limit",
		"db_path", "plans_dir", "git_backend", "log_level", "default_format",
	} {
		_ = v.BindEnv(key)
	}

	if v.IsSet("cache_ttl_seconds") {
		cfg.CacheTTLSeconds = v.GetInt("cache_ttl_seconds")
	}
	if v.IsSet("max_diff_chars") {
		cfg.MaxDiffChars = v.GetInt("max_diff_chars")
	}
	if v.IsSet("observation_limit") {
		cfg.ObservationLimit = v.GetInt("observation_limit")
	}
	if v.IsSet("db_path") {
		cfg.DBPath = v.GetString("db_path")
	}
	if v.IsSet("plans_dir") {
		cfg.PlansDir = v.GetString("plans_dir")
	}
	if v.IsSet("git_backend") {
		cfg.GitBackend = v.GetString("git_backend")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("default_format") {
		cfg.DefaultFormat = v.GetString("default_format")
	}
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

func overlay(dst, src *Config) {
	if src == nil {
		return
	}
	if src.CacheTTLSeconds != 0 {
		dst.CacheTTLSeconds = src.CacheTTLSeconds
	}
	if src.MaxDiffChars != 0 {
		dst.MaxDiffChars = src.MaxDiffChars
	}
	if src.ObservationLimit != 0 {
		dst.ObservationLimit = src.ObservationLimit
	}
	if src.DBPath != "" {
		dst.DBPath = src.DBPath
	}
	if src.PlansDir != "" {
		dst.PlansDir = src.PlansDir
	}
	if src.GitBackend != "" {
		dst.GitBackend = src.GitBackend
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.DefaultFormat != "" {
		dst.DefaultFormat = src.DefaultFormat
	}
}

// Validate reports the first setting that the monitor would reject.
func (c Config) Validate() error {
	switch {
	case c.CacheTTLSeconds <= 0:
		return &ConfigError{Key: "cache_ttl_seconds", Value: c.CacheTTLSeconds, Reason: "must be positive"}
	case c.MaxDiffChars <= 0:
		return &ConfigError{Key: "max_diff_chars", Value: c.MaxDiffChars, Reason: "must be positive"}
	case c.ObservationLimit <= 0:
		return &ConfigError{Key: "observation_limit", Value: c.ObservationLimit, Reason: "must be positive"}
	case !slices.Contains(gitBackends, c.GitBackend):
		return &ConfigError{Key: "git_backend", Value: c.GitBackend, Reason: "must be one of " + strings.Join(gitBackends, ", ")}
	case !slices.Contains(logLevels, strings.ToLower(c.LogLevel)):
		return &ConfigError{Key: "log_level", Value: c.LogLevel, Reason: "must be one of " + strings.Join(logLevels, ", ")}
	case !slices.Contains(formats, c.DefaultFormat):
		return &ConfigError{Key: "default_format", Value: c.DefaultFormat, Reason: "must be one of " + strings.Join(formats, ", ")}
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConfigError describes a setting with an unusable value.
type ConfigError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Key, e.Value, e.Reason)
}
