package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tasnim.dev/iamctl/internal/utils"
)

const (
	BackendSQLite = "sqlite"
	BackendS3     = "s3"

	// DefaultUserPath is the IAM path given to users created through iamctl.
	DefaultUserPath = "/system/"
)

// Config holds optional defaults loaded from ~/.config/iamctl/config.yaml.
type Config struct {
	DefaultProfile string `yaml:"default_profile"`
	DefaultRegion  string `yaml:"default_region"`

	StateBackend string `yaml:"state_backend"`
	StatePath    string `yaml:"state_path"`
	StateBucket  string `yaml:"state_bucket"`
	StatePrefix  string `yaml:"state_prefix"`

	CatalogFile string `yaml:"catalog_file"`
	UserPath    string `yaml:"user_path"`

	// CredentialPasswordHash is a bcrypt hash gating "show credentials".
	// Generate one with `iamctl credentials hash-password`.
	CredentialPasswordHash string `yaml:"credential_password_hash"`

	LogLevel string `yaml:"log_level"`
}

// Dir returns the iamctl configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "iamctl"), nil
}

// Load reads the config file. Returns zero-value Config if the file doesn't exist.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return &Config{}, nil
	}
	return LoadFile(filepath.Join(dir, "config.yaml"))
}

// LoadFile reads the config at path. A missing file yields a zero-value Config.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the state backend settings and the user path.
func (c *Config) Validate() error {
	if c.UserPath != "" {
		if err := utils.CheckPath(c.UserPath); err != nil {
			return fmt.Errorf("user_path: %w", err)
		}
	}
	switch c.Backend() {
	case BackendSQLite:
	case BackendS3:
		if c.StateBucket == "" {
			return errors.New("state_backend s3 requires state_bucket")
		}
	default:
		return fmt.Errorf("unknown state_backend %q", c.StateBackend)
	}
	return nil
}

// Merge applies CLI flag overrides. Flags take precedence over config defaults.
func (c *Config) Merge(profile, region string) (string, string) {
	p := c.DefaultProfile
	if profile != "" {
		p = profile
	}
	r := c.DefaultRegion
	if region != "" {
		r = region
	}
	return p, r
}

// Backend returns the configured state backend, defaulting to sqlite.
func (c *Config) Backend() string {
	if c.StateBackend == "" {
		return BackendSQLite
	}
	return c.StateBackend
}

// SQLitePath returns the sqlite state file, defaulting to state.db in the config directory.
func (c *Config) SQLitePath() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	dir, err := Dir()
	if err != nil {
		return "iamctl-state.db"
	}
	return filepath.Join(dir, "state.db")
}

// NewUserPath returns the IAM path for newly created users.
func (c *Config) NewUserPath() string {
	if c.UserPath == "" {
		return DefaultUserPath
	}
	return c.UserPath
}

// Level returns the configured log level, flag value first.
func (c *Config) Level(flag string) string {
	if flag != "" {
		return flag
	}
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "warn"
}
