package config

import "strings"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by backend constructors
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	// With no filesystems configured, register a single default
	// in-memory one so the process is usable out of the box.
	if len(cfg.Filesystems) == 0 {
		cfg.Filesystems = []FilesystemConfig{
			{
				Name:    "memfs",
				Default: true,
				Backend: BackendConfig{Type: "memory"},
			},
		}
	}

	for i := range cfg.Filesystems {
		applyBackendDefaults(&cfg.Filesystems[i].Backend)
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyBackendDefaults sets backend defaults.
func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}
