package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTenant signs in against any organizational directory the
	// account belongs to.
	DefaultTenant = "organizations"
	// DefaultRegion selects the chat service deployment.
	DefaultRegion = "emea"
	// DefaultTimeoutSeconds bounds every network call.
	DefaultTimeoutSeconds = 30
)

// Config is the application configuration, read from the per-user YAML file
// with environment overrides on top.
type Config struct {
	Auth AuthConfig `yaml:"auth"`
	API  APIConfig  `yaml:"api"`
}

// AuthConfig holds identity provider settings.
type AuthConfig struct {
	Tenant string `yaml:"tenant"`
}

// APIConfig holds backend API settings.
type APIConfig struct {
	Region         string `yaml:"region"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// Timeout returns the configured network timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Path returns the location of the config file.
func Path() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "squads", "config.yaml")
	}
	return filepath.Join(os.Getenv("HOME"), ".squads", "config.yaml")
}

// Load reads the config file if present and applies environment overrides
// (SQUADS_TENANT, SQUADS_REGION). A missing file yields the defaults; an
// unparseable one is an error so a typo does not silently change tenants.
func Load() (*Config, error) {
	// A .env file in the working directory is handy during development.
	_ = godotenv.Load()

	cfg := &Config{
		Auth: AuthConfig{Tenant: DefaultTenant},
		API:  APIConfig{Region: DefaultRegion, TimeoutSeconds: DefaultTimeoutSeconds},
	}

	path := Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if tenant := os.Getenv("SQUADS_TENANT"); tenant != "" {
		cfg.Auth.Tenant = tenant
	}
	if region := os.Getenv("SQUADS_REGION"); region != "" {
		cfg.API.Region = region
	}

	if cfg.Auth.Tenant == "" {
		cfg.Auth.Tenant = DefaultTenant
	}
	if cfg.API.Region == "" {
		cfg.API.Region = DefaultRegion
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = DefaultTimeoutSeconds
	}

	log.Debug().Str("tenant", cfg.Auth.Tenant).Str("region", cfg.API.Region).Msg("Configuration loaded")
	return cfg, nil
}
