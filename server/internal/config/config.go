package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Paths   PathsConfig   `yaml:"paths"`
	Stream  StreamConfig  `yaml:"stream"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
	Output string `yaml:"output"` // stderr | stdout | 文件路径
}

type PathsConfig struct {
	// Seed 指向启动时加载的帖子 JSON 文件，为空则使用内置的两条种子数据。
	Seed string `yaml:"seed"`
}

type StreamConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// Buffer 是每个订阅者的消息缓冲大小。
	Buffer int `yaml:"buffer"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 返回可直接运行的默认配置：监听 0.0.0.0:5002。
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5002,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Stream: StreamConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
			Buffer:       64,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load 在默认配置之上叠加配置文件与环境变量。path 为空时跳过配置文件。
// BLOGPOSTS_SEED 给出的路径按工作目录解析。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		// 配置文件里的相对路径以配置文件所在目录为基准。
		if cfg.Paths.Seed != "" && !filepath.IsAbs(cfg.Paths.Seed) {
			cfg.Paths.Seed = filepath.Join(filepath.Dir(path), cfg.Paths.Seed)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnv 从环境变量覆盖部署相关的配置。
func (c *Config) applyEnv() error {
	if host := os.Getenv("BLOGPOSTS_HOST"); host != "" {
		c.Server.Host = host
	}

	port := os.Getenv("BLOGPOSTS_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("parse port %q: %w", port, err)
		}
		c.Server.Port = n
	}

	if level := os.Getenv("BLOGPOSTS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if seed := os.Getenv("BLOGPOSTS_SEED"); seed != "" {
		c.Paths.Seed = seed
	}
	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if c.Stream.PingInterval <= 0 {
		return errors.New("stream ping_interval must be positive")
	}
	if c.Stream.Buffer < 0 {
		return errors.New("stream buffer must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return errors.New("metrics path is required when metrics are enabled")
	}
	return nil
}

// Addr 返回 http 监听地址。
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
