package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MacJediWizard/hearth/internal/archive"
	"gopkg.in/yaml.v3"
)

// DefaultConfigDir returns the default config directory (~/.hearth).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".hearth"), nil
}

// DefaultConfigPath returns the default config file path (~/.hearth/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// CLIConfig holds the operator CLI's configuration.
type CLIConfig struct {
	DatabaseURL      string           `yaml:"database_url,omitempty"`
	ArchiveDir       string           `yaml:"archive_dir,omitempty"`
	S3               archive.S3Config `yaml:"s3,omitempty"`
	StrictReferences bool             `yaml:"strict_references,omitempty"`
}

// Validate checks that the configuration has required fields for operation.
func (c *CLIConfig) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	if c.ArchiveDir != "" && c.S3.Enabled() {
		return errors.New("archive_dir and s3.bucket are mutually exclusive")
	}
	return nil
}

// ArchiveEnabled reports whether an archive sink is configured.
func (c *CLIConfig) ArchiveEnabled() bool {
	return c.ArchiveDir != "" || c.S3.Enabled()
}

// ApplyOverrides lets the DATABASE_URL environment variable and then an
// explicit flag value take precedence over the file.
func (c *CLIConfig) ApplyOverrides(flagDatabaseURL string) {
	if env := strings.TrimSpace(os.Getenv("DATABASE_URL")); env != "" {
		c.DatabaseURL = env
	}
	if flagDatabaseURL != "" {
		c.DatabaseURL = flagDatabaseURL
	}
}

// Load reads the configuration from the given path.
// If the file does not exist, an empty config is returned.
func Load(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &CLIConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads the configuration from the default path.
func LoadDefault() (*CLIConfig, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the configuration to the given path, creating directories as needed.
func (c *CLIConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file may hold database and S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
