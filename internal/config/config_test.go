package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"
)

// Feature: statemon, Property: Config merge precedence
func TestConfigMergePrecedence(t *testing.T) {
	nonEmptyString := rapid.StringMatching(`[a-zA-Z0-9/_.-]{1,20}`)
	positive := rapid.IntRange(1, 100_000)

	// Each field is independently either zero or set.
	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasDBPath") {
			cfg.DBPath = nonEmptyString.Draw(t, "dbPath")
		}
		if rapid.Bool().Draw(t, "hasPlansDir") {
			cfg.PlansDir = nonEmptyString.Draw(t, "plansDir")
		}
		if rapid.Bool().Draw(t, "hasGitBackend") {
			cfg.GitBackend = rapid.SampledFrom(gitBackends).Draw(t, "gitBackend")
		}
		if rapid.Bool().Draw(t, "hasMaxDiffChars") {
			cfg.MaxDiffChars = positive.Draw(t, "maxDiffChars")
		}
		if rapid.Bool().Draw(t, "hasCacheTTLSeconds") {
			cfg.CacheTTLSeconds = positive.Draw(t, "cacheTTLSeconds")
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		checkField(t, "DBPath", global.DBPath, project.DBPath, defaults.DBPath, merged.DBPath)
		checkField(t, "PlansDir", global.PlansDir, project.PlansDir, defaults.PlansDir, merged.PlansDir)
		checkField(t, "GitBackend", global.GitBackend, project.GitBackend, defaults.GitBackend, merged.GitBackend)
		checkField(t, "MaxDiffChars", global.MaxDiffChars, project.MaxDiffChars, defaults.MaxDiffChars, merged.MaxDiffChars)
		checkField(t, "CacheTTLSeconds", global.CacheTTLSeconds, project.CacheTTLSeconds, defaults.CacheTTLSeconds, merged.CacheTTLSeconds)

		if err := merged.Validate(); err != nil {
			t.Fatalf("merged config should be valid: %v", err)
		}
	})
}

// checkField asserts the merge precedence rule for a single field:
//   - project set -> merged == project
//   - project zero, global set -> merged == global
//   - both zero -> merged == defaultVal
func checkField[T comparable](t *rapid.T, name string, globalVal, projectVal, defaultVal, mergedVal T) {
	t.Helper()
	var zero T
	switch {
	case projectVal != zero:
		if mergedVal != projectVal {
			t.Fatalf("%s: expected project value %v, got %v", name, projectVal, mergedVal)
		}
	case globalVal != zero:
		if mergedVal != globalVal {
			t.Fatalf("%s: only global set, expected %v, got %v", name, globalVal, mergedVal)
		}
	default:
		if mergedVal != defaultVal {
			t.Fatalf("%s: neither set, expected default %v, got %v", name, defaultVal, mergedVal)
		}
	}
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.CacheTTL().Seconds() != 30 {
		t.Errorf("CacheTTL: want 30s, got %s", d.CacheTTL())
	}
	if d.MaxDiffChars != 10_000 {
		t.Errorf("MaxDiffChars: want 10000, got %d", d.MaxDiffChars)
	}
	if d.ObservationLimit != 10 {
		t.Errorf("ObservationLimit: want 10, got %d", d.ObservationLimit)
	}
	if d.GitBackend != "cli" {
		t.Errorf("GitBackend: want cli, got %q", d.GitBackend)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config, got nil")
	}
	if *cfg != Defaults() {
		t.Errorf("want defaults, got %+v", *cfg)
	}
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	cfg, err := LoadProject(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadProjectFile(t *testing.T) {
	root := t.TempDir()
	content := "max_diff_chars = 500\nplans_dir = \"plans\"\ngit_backend = \"gogit\"\n"
	if err := os.WriteFile(filepath.Join(root, ProjectFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadProject(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if cfg.MaxDiffChars != 500 || cfg.PlansDir != "plans" || cfg.GitBackend != "gogit" {
		t.Errorf("unexpected config: %+v", *cfg)
	}
	if cfg.ObservationLimit != 0 {
		t.Errorf("unset key should stay zero, got %d", cfg.ObservationLimit)
	}
}

func TestLoadRejectsExplicitZero(t *testing.T) {
	for _, key := range []string{"cache_ttl_seconds", "max_diff_chars", "observation_limit"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			root := t.TempDir()
			if err := os.WriteFile(filepath.Join(root, ProjectFile), []byte(key+" = 0\n"), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := Load(root)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
			if cfgErr.Key != key {
				t.Errorf("ConfigError.Key: want %q, got %q", key, cfgErr.Key)
			}
		})
	}
}

func TestLoadGlobalParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := filepath.Join(tmp, ".config", "statemon")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte("max_diff_chars = = ["), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadGlobal()
	if err == nil {
		t.Fatal("expected an error for invalid TOML, got nil")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if parseErr.Path != filepath.Join(cfgDir, "config.toml") {
		t.Errorf("ParseError.Path: got %q", parseErr.Path)
	}
}

func TestLoadLayers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()

	cfgDir := filepath.Join(home, ".config", "statemon")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	global := "observation_limit = 25\nmax_diff_chars = 2000\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(global), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ProjectFile), []byte("max_diff_chars = 300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STATEMON_LOG_LEVEL", "debug")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ObservationLimit != 25 {
		t.Errorf("ObservationLimit from global: want 25, got %d", cfg.ObservationLimit)
	}
	if cfg.MaxDiffChars != 300 {
		t.Errorf("MaxDiffChars from project: want 300, got %d", cfg.MaxDiffChars)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel from env: want debug, got %q", cfg.LogLevel)
	}
}

func TestApplyEnvOverridesFiles(t *testing.T) {
	t.Setenv("STATEMON_MAX_DIFF_CHARS", "42")
	t.Setenv("STATEMON_GIT_BACKEND", "gogit")

	cfg := Defaults()
	cfg.MaxDiffChars = 9000
	ApplyEnv(&cfg)

	if cfg.MaxDiffChars != 42 {
		t.Errorf("MaxDiffChars: want 42, got %d", cfg.MaxDiffChars)
	}
	if cfg.GitBackend != "gogit" {
		t.Errorf("GitBackend: want gogit, got %q", cfg.GitBackend)
	}
	if cfg.PlansDir != Defaults().PlansDir {
		t.Errorf("PlansDir should be untouched, got %q", cfg.PlansDir)
	}
}

func TestDotEnvIsLoaded(t *testing.T) {
	const key = "STATEMON_PLANS_DIR"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s already set in the environment", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte(key+"=notes/plans\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := Defaults()
	ApplyEnv(&cfg)
	if cfg.PlansDir != "notes/plans" {
		t.Errorf("PlansDir: want notes/plans, got %q", cfg.PlansDir)
	}
}

func TestDotEnvMissingIsFine(t *testing.T) {
	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"cache_ttl_seconds": func(c *Config) { c.CacheTTLSeconds = 0 },
		"max_diff_chars":    func(c *Config) { c.MaxDiffChars = -1 },
		"observation_limit": func(c *Config) { c.ObservationLimit = 0 },
		"git_backend":       func(c *Config) { c.GitBackend = "svn" },
		"log_level":         func(c *Config) { c.LogLevel = "loud" },
		"default_format":    func(c *Config) { c.DefaultFormat = "html" },
	}
	for key, mutate := range cases {
		t.Run(key, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
			if cfgErr.Key != key {
				t.Errorf("Key: want %q, got %q", key, cfgErr.Key)
			}
		})
	}
}
