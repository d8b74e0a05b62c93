package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that
// cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Filesystems) == 0 {
		return fmt.Errorf("filesystems: at least one filesystem must be configured")
	}

	// Filesystem names must be unique: the engine registry rejects
	// collisions, better to fail before any backend is constructed.
	names := make(map[string]bool)
	defaults := 0
	for i, fs := range cfg.Filesystems {
		if names[fs.Name] {
			return fmt.Errorf("filesystems[%d]: duplicate filesystem name %q", i, fs.Name)
		}
		names[fs.Name] = true

		// The name crosses the registration boundary NUL-terminated.
		if strings.IndexByte(fs.Name, 0) >= 0 {
			return fmt.Errorf("filesystems[%d]: name contains an embedded NUL byte", i)
		}

		if fs.Default {
			defaults++
		}
	}

	if defaults > 1 {
		return fmt.Errorf("filesystems: at most one filesystem may set default, found %d", defaults)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
