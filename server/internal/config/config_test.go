package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadDefaults 验证不传配置文件时使用默认值。
func TestLoadDefaults(t *testing.T) {
	t.Setenv("BLOGPOSTS_PORT", "")
	t.Setenv("PORT", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:5002" {
		t.Fatalf("expected default addr 0.0.0.0:5002, got %s", cfg.Addr())
	}
	if cfg.Stream.PingInterval != 30*time.Second {
		t.Fatalf("unexpected ping interval %s", cfg.Stream.PingInterval)
	}
}

// TestLoadFileAndEnvOverride 验证配置文件覆盖默认值，环境变量再覆盖配置文件。
func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  host: 127.0.0.1
  port: 6000
  shutdown_timeout: 2s
logging:
  level: debug
  format: json
paths:
  seed: seed.json
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BLOGPOSTS_PORT", "7000")
	t.Setenv("BLOGPOSTS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:7000" {
		t.Fatalf("expected env port override, got %s", cfg.Addr())
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Paths.Seed != filepath.Join(dir, "seed.json") {
		t.Fatalf("unexpected seed path %q", cfg.Paths.Seed)
	}
	// 未在文件中出现的字段保留默认值。
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected default read timeout kept, got %s", cfg.Server.ReadTimeout)
	}
}

func TestLoadRejectsBadPortEnv(t *testing.T) {
	t.Setenv("BLOGPOSTS_PORT", "abc")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for non numeric port")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "verbose" }},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "negative timeout", mutate: func(c *Config) { c.Server.ReadTimeout = -time.Second }},
		{name: "zero ping", mutate: func(c *Config) { c.Stream.PingInterval = 0 }},
		{name: "metrics without path", mutate: func(c *Config) { c.Metrics.Path = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

// TestLoadSeedPathRelativeToConfig 验证相对种子路径按配置文件目录解析，绝对路径与环境变量保持原样。
func TestLoadSeedPathRelativeToConfig(t *testing.T) {
	t.Setenv("BLOGPOSTS_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("BLOGPOSTS_SEED", "")

	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "posts.json")
	cases := []struct {
		name string
		seed string
		want string
	}{
		{name: "relative", seed: "data/seed.json", want: filepath.Join(dir, "data", "seed.json")},
		{name: "absolute", seed: abs, want: abs},
		{name: "empty", seed: `""`, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte("paths:\n  seed: "+tc.seed+"\n"), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Paths.Seed != tc.want {
				t.Fatalf("expected seed %q, got %q", tc.want, cfg.Paths.Seed)
			}
		})
	}

	t.Setenv("BLOGPOSTS_SEED", "from-env.json")
	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.Seed != "from-env.json" {
		t.Fatalf("expected env seed kept as given, got %q", cfg.Paths.Seed)
	}
}
