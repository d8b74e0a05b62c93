package vfs

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/plugvfs/plugvfs/internal/logger"
	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// vfsState is the shared state of one registered filesystem: the backend
// instance and the last-error diagnostic slot. Every trampoline
// invocation for that filesystem recovers this object, either from the
// descriptor's opaque AppData pointer or through a file handle's
// extension.
//
// The state is created at registration and lives for the rest of the
// process; there is no unregister path.
type vfsState struct {
	backend Backend

	// mu guards the last-error pair. The critical section is O(1), so
	// contention resolves by blocking.
	mu       sync.Mutex
	lastCode sqlite.Status
	lastErr  error
}

// setLastError records (code, err) in the last-error slot, overwriting
// whatever was there, and returns code unchanged so call sites can record
// and propagate in one expression. Last-write-wins: the slot is a
// diagnostic channel, not a queue.
func (s *vfsState) setLastError(code sqlite.Status, err error) sqlite.Status {
	s.mu.Lock()
	s.lastCode = code
	s.lastErr = err
	s.mu.Unlock()
	logger.Debug("vfs callback failed: status=%s err=%v", code, err)
	return code
}

// lastError reads the most recently recorded (code, error) pair. The
// third result is false if nothing has been recorded yet.
func (s *vfsState) lastError() (sqlite.Status, error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCode, s.lastErr, s.lastErr != nil || s.lastCode != sqlite.OK
}

// ============================================================================
// State Arena
// ============================================================================

// states is the process-scoped arena of shared filesystem states. It
// serves two purposes: it keeps every registered state reachable forever
// (the engine holds only an untraced pointer to it), and it is the
// validity oracle for the checked cast that recovers a state from an
// opaque pointer.
var states struct {
	mu    sync.RWMutex
	byPtr map[unsafe.Pointer]*vfsState
}

var (
	errNullPointer   = errors.New("received null pointer")
	errUnknownState  = errors.New("pointer does not identify a registered vfs state")
	errInvalidHandle = errors.New("file handle is not initialized or already closed")
	errNullFile      = errors.New("invalid file pointer")
)

// retainState adds st to the arena and returns the opaque pointer to
// embed in the descriptor. The allocation is intentionally permanent.
func retainState(st *vfsState) unsafe.Pointer {
	p := unsafe.Pointer(st)
	states.mu.Lock()
	if states.byPtr == nil {
		states.byPtr = make(map[unsafe.Pointer]*vfsState)
	}
	states.byPtr[p] = st
	states.mu.Unlock()
	return p
}

// stateFromVFS recovers the shared state from a descriptor passed back
// by the engine. This is the single checked cast for filesystem-level
// trampolines: a nil descriptor, nil AppData, or a pointer that never
// came out of retainState is reported as an error, never dereferenced.
func stateFromVFS(v *sqlite.VFS) (*vfsState, error) {
	if v == nil || v.AppData == nil {
		return nil, errNullPointer
	}
	states.mu.RLock()
	st, ok := states.byPtr[v.AppData]
	states.mu.RUnlock()
	if !ok {
		return nil, errUnknownState
	}
	return st, nil
}

// LastError reports the most recent (status, error) pair recorded by the
// filesystem registered under name. The engine reads the same slot
// through the descriptor's get-last-error callback; this accessor is for
// embedding applications and tests. ok is false when the name is not
// registered by this adapter or nothing has been recorded.
func LastError(name string) (code sqlite.Status, err error, ok bool) {
	v := sqlite.Find(name)
	if v == nil {
		return 0, nil, false
	}
	st, serr := stateFromVFS(v)
	if serr != nil {
		return 0, nil, false
	}
	return st.lastError()
}
