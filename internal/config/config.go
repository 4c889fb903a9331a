package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models atlas.yml.
type Config struct {
	Org struct {
		Name string `yaml:"name"`
		// EmailDomain is the suffix every account email must carry,
		// without the leading "@".
		EmailDomain string `yaml:"email_domain"`
	} `yaml:"org"`
	Server struct {
		Listen   string `yaml:"listen"`
		BasePath string `yaml:"base_path"`
		// JWTSecret signs session tokens (the public/anon tier).
		JWTSecret string `yaml:"jwt_secret"`
		CORS      CORS   `yaml:"cors"`
	} `yaml:"server"`
	Defaults struct {
		Priority string `yaml:"priority"`
	} `yaml:"defaults"`
}

// CORS controls cross-origin access. The provisioning endpoints are called
// from browser clients on other origins, so preflight must always succeed.
type CORS struct {
	AllowedOrigins string `yaml:"allowed_origins"`
	AllowedHeaders string `yaml:"allowed_headers"`
	AllowedMethods string `yaml:"allowed_methods"`
	MaxAge         int    `yaml:"max_age"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run atlas config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets the required structure.
func (c *Config) Validate() error {
	if c.Org.EmailDomain == "" {
		return fmt.Errorf("config.org.email_domain is required")
	}
	if strings.HasPrefix(c.Org.EmailDomain, "@") {
		return fmt.Errorf("config.org.email_domain must not include '@'")
	}
	if strings.Contains(c.Org.EmailDomain, " ") {
		return fmt.Errorf("config.org.email_domain must not contain spaces")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with '/'")
	}
	if c.Defaults.Priority != "" {
		switch c.Defaults.Priority {
		case "Baja", "Media", "Alta", "Urgente":
		default:
			return fmt.Errorf("config.defaults.priority %q unknown", c.Defaults.Priority)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "atlas.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `org:
  name: Zelenza
  email_domain: zelenza.com

server:
  listen: 127.0.0.1:8080
  base_path: /v1
  jwt_secret: ""
  cors:
    allowed_origins: "*"
    allowed_headers: "authorization, x-client-info, apikey, content-type"
    allowed_methods: "GET, POST, PATCH, PUT, DELETE, OPTIONS"
    max_age: 86400

defaults:
  priority: Media
`
