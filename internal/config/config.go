// Package config loads gateway settings from the environment with sane
// defaults. Every knob is an SQLGATE_* variable; nested keys are not used.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"sqlgate/internal/dialect"
)

// Transport selects how the server is exposed.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

const envPrefix = "SQLGATE_"

type Config struct {
	Driver     string `koanf:"driver"`
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	Database   string `koanf:"database"`
	SQLitePath string `koanf:"sqlite_path"`

	Transport  Transport `koanf:"transport"`
	ListenHost string    `koanf:"listen_host"`
	ListenPort int       `koanf:"listen_port"`
	AuthToken  string    `koanf:"auth_token"`

	QueryTimeout time.Duration `koanf:"query_timeout"`
	MaxRows      int           `koanf:"max_rows"`
}

func defaults() map[string]any {
	return map[string]any{
		"driver":        "mysql",
		"host":          "localhost",
		"port":          3306,
		"user":          "root",
		"password":      "",
		"database":      "",
		"sqlite_path":   "",
		"transport":     "stdio",
		"listen_host":   "0.0.0.0",
		"listen_port":   8000,
		"auth_token":    "",
		"query_timeout": "30s",
		"max_rows":      10000,
	}
}

// Load reads configuration from the environment on top of the defaults and
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported driver %q (want mysql, postgres or sqlite)", c.Driver)
	}
	if c.Driver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("sqlite driver requires SQLGATE_SQLITE_PATH")
	}

	switch c.Transport {
	case TransportStdio, TransportHTTP, TransportSSE:
	default:
		return fmt.Errorf("unsupported transport %q (want stdio, http or sse)", c.Transport)
	}
	if c.Transport != TransportStdio && c.AuthToken == "" {
		return fmt.Errorf("transport %q requires SQLGATE_AUTH_TOKEN", c.Transport)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port %d", c.ListenPort)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.QueryTimeout)
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("max rows must be positive, got %d", c.MaxRows)
	}
	return nil
}

// ConnParams maps the configured connection settings to dialect form.
func (c *Config) ConnParams() dialect.ConnParams {
	return dialect.ConnParams{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Path:     c.SQLitePath,
	}
}

// ListenAddr is the host:port the HTTP transports bind to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}
