package config

import (
	"context"
	"fmt"

	"github.com/plugvfs/plugvfs/internal/logger"
	"github.com/plugvfs/plugvfs/pkg/vfs"
)

// RegisterFilesystems constructs every configured backend and registers
// it with the engine under its configured name.
//
// Registrations are permanent: there is no unregister path, so this is
// meant to run once at process startup. Construction and registration
// stop at the first failure; filesystems registered before the failure
// stay registered.
//
// Parameters:
//   - ctx: Context for backend initialization (S3 credential loading, etc.)
//   - cfg: Loaded and validated configuration
//
// Returns:
//   - error: Backend construction or registration error
func RegisterFilesystems(ctx context.Context, cfg *Config) error {
	for i := range cfg.Filesystems {
		fsCfg := &cfg.Filesystems[i]

		backend, err := CreateBackend(ctx, &fsCfg.Backend)
		if err != nil {
			return fmt.Errorf("filesystem %q: %w", fsCfg.Name, err)
		}

		if err := vfs.Register(fsCfg.Name, fsCfg.Default, backend); err != nil {
			return fmt.Errorf("filesystem %q: %w", fsCfg.Name, err)
		}

		logger.Info("Registered filesystem %q (backend=%s, default=%t)",
			fsCfg.Name, fsCfg.Backend.Type, fsCfg.Default)
	}

	return nil
}
