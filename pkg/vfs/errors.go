package vfs

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// Sentinel errors backends return to steer status-code translation.
// They are matched with errors.Is, so backends may wrap them with
// additional context.
var (
	// ErrBusy reports a locking conflict with another connection.
	ErrBusy = errors.New("file is locked by another connection")

	// ErrReadOnly reports an attempted write to read-only storage.
	ErrReadOnly = errors.New("storage is read-only")

	// ErrNotSupported reports an operation or opcode the backend does
	// not implement.
	ErrNotSupported = errors.New("operation not supported")
)

// NulError is returned by Register when the filesystem name contains an
// embedded NUL byte. The name crosses the boundary as a NUL-terminated
// string, so an interior NUL would silently truncate it; registration is
// refused before any engine call is made.
type NulError struct {
	// Name is the rejected filesystem name.
	Name string
}

func (e *NulError) Error() string {
	return fmt.Sprintf("vfs name %q contains an embedded NUL byte", e.Name)
}

// RegisterError is returned by Register when the engine's registration
// call itself fails, most commonly a name collision with an existing
// filesystem.
type RegisterError struct {
	// Code is the status the engine registry reported.
	Code sqlite.Status
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("registering vfs failed with status %s (%d)", e.Code, int(e.Code))
}

// StatusError carries an exact engine status chosen by a backend,
// overriding the default translation. The wrapped error is what gets
// recorded in the last-error slot.
type StatusError struct {
	Code sqlite.Status
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// statusFromError translates a backend error into the engine's status
// vocabulary. Specific sentinels win over the caller's fallback code;
// anything unrecognized maps to the fallback, which names the operation
// that failed (IOErrRead, CantOpen, ...).
func statusFromError(err error, fallback sqlite.Status) sqlite.Status {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, ErrBusy):
		return sqlite.Busy
	case errors.Is(err, ErrReadOnly):
		return sqlite.ReadOnly
	case errors.Is(err, ErrNotSupported):
		return sqlite.NotFound
	case errors.Is(err, fs.ErrPermission):
		return sqlite.Perm
	default:
		return fallback
	}
}
