package vfs

import (
	"strings"

	"github.com/plugvfs/plugvfs/internal/logger"
	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// maxPathname is the pathname bound advertised by every filesystem this
// adapter registers.
const maxPathname = 512

// Register installs backend as a virtual filesystem named name in the
// engine's global registry. When asDefault is true the filesystem also
// becomes the process default.
//
// The backend is consumed: it becomes the shared instance behind every
// callback for this filesystem and must remain valid (and internally
// synchronized) for the rest of the process. Registration allocates the
// descriptor, the NUL-terminated name, and the shared state permanently;
// no unregister path exists, so none of it is ever reclaimed. This also
// holds when the engine rejects the registration: the allocations for a
// failed attempt are not recovered.
//
// The callback table carries one trampoline per capability the backend
// implements; everything else is left unset and reported by the engine
// as unsupported. Returns *NulError if name contains an embedded NUL
// byte (no engine call is made), or *RegisterError carrying the engine's
// status if the registry refuses the descriptor, typically a name
// collision.
func Register(name string, asDefault bool, backend Backend) error {
	if strings.IndexByte(name, 0) >= 0 {
		return &NulError{Name: name}
	}

	st := &vfsState{backend: backend}

	desc := &sqlite.VFS{
		Version:     2,
		OSFileSize:  handleSize,
		MaxPathname: maxPathname,
		Name:        sqlite.CString(name),
		AppData:     retainState(st),
		Open:        xOpen,
		// The last-error channel exists for every backend; the slot
		// only reads the adapter's own state.
		GetLastError: xGetLastError,
	}

	if _, ok := backend.(BackendDeleter); ok {
		desc.Delete = xDelete
	}
	if _, ok := backend.(BackendAccessor); ok {
		desc.Access = xAccess
	}
	if _, ok := backend.(BackendPathResolver); ok {
		desc.FullPathname = xFullPathname
	}

	if rc := sqlite.Register(desc, asDefault); rc != sqlite.OK {
		return &RegisterError{Code: rc}
	}

	logger.Debug("registered vfs %q (handle size %d bytes)", name, handleSize)
	return nil
}
