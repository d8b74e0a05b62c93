package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete plugvfs configuration.
//
// This structure captures all configurable aspects of the adapter layer:
//   - Logging configuration
//   - The list of virtual filesystems to register, each with its backend
//     type and type-specific settings
//
// Configuration sources (in order of precedence):
//  1. Environment variables (PLUGVFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each backend implementation defines its own configuration shape. The
// BackendConfig struct contains one type-specific section per backend
// type (badger, s3) and only the section matching the selected type is
// decoded and used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Filesystems defines the virtual filesystems to register at startup
	Filesystems []FilesystemConfig `mapstructure:"filesystems" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// FilesystemConfig defines one virtual filesystem registration.
type FilesystemConfig struct {
	// Name is the registration name connections use to select this
	// filesystem. Must be unique within the process.
	Name string `mapstructure:"name" validate:"required"`

	// Default makes this filesystem the process default. At most one
	// filesystem may set it.
	Default bool `mapstructure:"default"`

	// Backend specifies the storage backend type and its configuration
	Backend BackendConfig `mapstructure:"backend" validate:"required"`
}

// BackendConfig specifies storage backend configuration.
//
// The Type field determines which backend implementation is used.
// Only the corresponding type-specific configuration section is used.
type BackendConfig struct {
	// Type specifies which backend implementation to use
	// Valid values: memory, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PLUGVFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use PLUGVFS_ prefix and underscores
	// Example: PLUGVFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("PLUGVFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/plugvfs/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable, defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// current directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "plugvfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "plugvfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
