// Package config loads the server configuration from an optional YAML file.
// Values missing from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendDemo = "demo"
	BackendHTTP = "http"

	DefaultDatastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.1/bundles/datastar.js"
)

const DefaultYAML = `# cvd-portal server configuration
addr: ":8080"
db_path: cvd-portal.db
rpc_socket: /tmp/cvd-portal.sock

# backend.mode is "demo" for the built-in stand-in or "http" for a remote
# inference service at backend.url.
backend:
  mode: demo
  url: http://127.0.0.1:8000
  timeout: 20s

session:
  ttl: 12h
  sweep_interval: 1m

log:
  level: info
  format: text

http:
  cookie_secure: false
  datastar_script: ` + DefaultDatastarScript + `
  demo_hint: true
`

type BackendConfig struct {
	Mode    string        `yaml:"mode"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	CookieSecure   bool   `yaml:"cookie_secure"`
	DatastarScript string `yaml:"datastar_script"`
	DemoHint       bool   `yaml:"demo_hint"`
}

type Config struct {
	Addr      string        `yaml:"addr"`
	DBPath    string        `yaml:"db_path"`
	RPCSocket string        `yaml:"rpc_socket"`
	Backend   BackendConfig `yaml:"backend"`
	Session   SessionConfig `yaml:"session"`
	Log       LogConfig     `yaml:"log"`
	HTTP      HTTPConfig    `yaml:"http"`
}

func Default() Config {
	return Config{
		Addr:      ":8080",
		DBPath:    "cvd-portal.db",
		RPCSocket: "/tmp/cvd-portal.sock",
		Backend:   BackendConfig{Mode: BackendDemo, URL: "http://127.0.0.1:8000", Timeout: 20 * time.Second},
		Session:   SessionConfig{TTL: 12 * time.Hour, SweepInterval: time.Minute},
		Log:       LogConfig{Level: "info", Format: "text"},
		HTTP:      HTTPConfig{DatastarScript: DefaultDatastarScript, DemoHint: true},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write stores DefaultYAML at path, refusing to overwrite an existing file.
func Write(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(DefaultYAML); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "db_path is required")
	}
	switch c.Backend.Mode {
	case BackendDemo:
	case BackendHTTP:
		if strings.TrimSpace(c.Backend.URL) == "" {
			problems = append(problems, "backend.url is required when backend.mode is http")
		}
	default:
		problems = append(problems, fmt.Sprintf("backend.mode must be %q or %q, got %q", BackendDemo, BackendHTTP, c.Backend.Mode))
	}
	if c.Backend.Timeout < 0 {
		problems = append(problems, "backend.timeout must not be negative")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
