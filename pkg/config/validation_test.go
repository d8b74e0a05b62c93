package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig builds a minimal configuration that passes validation.
func validConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Filesystems: []FilesystemConfig{
			{
				Name:    "mem",
				Default: true,
				Backend: BackendConfig{Type: "memory"},
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "TRACE"
	assert.Error(t, Validate(cfg))

	// Lowercase is accepted, normalization happens in ApplyDefaults.
	cfg.Logging.Level = "debug"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_BackendType(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystems[0].Backend.Type = "floppy"
	assert.Error(t, Validate(cfg))
}

func TestValidate_NoFilesystems(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystems = nil
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one filesystem")
}

func TestValidate_DuplicateNames(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystems = append(cfg.Filesystems, FilesystemConfig{
		Name:    "mem",
		Backend: BackendConfig{Type: "memory"},
	})
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate filesystem name")
}

func TestValidate_EmbeddedNul(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystems[0].Name = "bad\x00name"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUL")
}

func TestValidate_MultipleDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystems = append(cfg.Filesystems, FilesystemConfig{
		Name:    "second",
		Default: true,
		Backend: BackendConfig{Type: "memory"},
	})
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most one filesystem")
}
