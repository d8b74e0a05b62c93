// Package memfs implements an in-memory storage backend.
//
// It supports the full capability set (read, write, truncate, sync,
// size, five-tier locking, sector size, device characteristics), which
// makes it the reference backend for tests and for ephemeral databases.
// All data is lost when the process exits.
package memfs

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
	"github.com/plugvfs/plugvfs/pkg/vfs"
)

// MemFS is an in-memory backend. One MemFS holds a flat namespace of
// files shared by every connection on the filesystem it is registered
// as.
//
// Thread Safety:
// The file table is guarded by a RWMutex and each file's contents and
// lock ladder are guarded by the file's own mutex, so concurrent
// callbacks for different files never contend.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
}

// New creates an empty in-memory backend.
func New() *MemFS {
	return &MemFS{files: make(map[string]*memFile)}
}

// memFile is the shared body of one named file. Open handles reference
// it; the data survives until Delete removes it from the table.
type memFile struct {
	mu   sync.Mutex
	name string
	data []byte

	// shared counts connections holding a shared lock; reserved marks
	// the single connection allowed to hold reserved or higher.
	shared   int
	reserved bool
	pending  bool
}

// Open returns a handle onto the named file, creating it when the
// create flag is set. Flags are echoed back unchanged.
func (m *MemFS) Open(name string, flags sqlite.OpenFlag) (vfs.File, sqlite.OpenFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		if flags&sqlite.OpenCreate == 0 {
			return nil, 0, fmt.Errorf("%q: %w", name, fs.ErrNotExist)
		}
		f = &memFile{name: name}
		m.files[name] = f
	}
	return &handle{file: f, readOnly: flags&sqlite.OpenReadOnly != 0}, flags, nil
}

// Delete removes the named file. Removing a missing file reports
// fs.ErrNotExist, which the adapter treats as success. syncDir is
// meaningless for memory storage.
func (m *MemFS) Delete(name string, syncDir bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("%q: %w", name, fs.ErrNotExist)
	}
	delete(m.files, name)
	return nil
}

// Access reports file existence. Memory storage has no permission
// model, so every existing file is readable and writable.
func (m *MemFS) Access(name string, flags sqlite.AccessFlag) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[name]
	return ok, nil
}

// FullPathname cleans the name; the namespace is flat, so no further
// resolution happens.
func (m *MemFS) FullPathname(name string) (string, error) {
	return path.Clean(name), nil
}

// ============================================================================
// File handle
// ============================================================================

// handle is one open handle onto a memFile, carrying the lock level
// this connection holds.
type handle struct {
	file     *memFile
	readOnly bool
	level    sqlite.LockLevel
	closed   bool
}

func (h *handle) Close() error {
	if h.closed {
		return fmt.Errorf("memfs: handle already closed")
	}
	if h.level > sqlite.LockNone {
		_ = h.Unlock(sqlite.LockNone)
	}
	h.closed = true
	return nil
}

func (h *handle) ReadAt(p []byte, off int64) (int, error) {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if off >= int64(len(h.file.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.file.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *handle) WriteAt(p []byte, off int64) (int, error) {
	if h.readOnly {
		return 0, vfs.ErrReadOnly
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if grown := off + int64(len(p)); grown > int64(len(h.file.data)) {
		// Writing past the end extends the file, zero-filling any gap.
		data := make([]byte, grown)
		copy(data, h.file.data)
		h.file.data = data
	}
	return copy(h.file.data[off:], p), nil
}

func (h *handle) Truncate(size int64) error {
	if h.readOnly {
		return vfs.ErrReadOnly
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	switch {
	case size < int64(len(h.file.data)):
		h.file.data = h.file.data[:size]
	case size > int64(len(h.file.data)):
		data := make([]byte, size)
		copy(data, h.file.data)
		h.file.data = data
	}
	return nil
}

// Sync is a no-op: memory is as durable as it gets here.
func (h *handle) Sync(flags sqlite.SyncFlag) error {
	return nil
}

func (h *handle) Size() (int64, error) {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	return int64(len(h.file.data)), nil
}

// Lock raises this handle's lock to level, following the engine's
// ladder: any number of shared holders, one reserved holder, and an
// exclusive holder only once it is the sole shared holder left.
func (h *handle) Lock(level sqlite.LockLevel) error {
	if level <= h.level {
		return nil
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	switch level {
	case sqlite.LockShared:
		if h.file.pending {
			return vfs.ErrBusy
		}
		h.file.shared++
	case sqlite.LockReserved:
		if h.file.reserved {
			return vfs.ErrBusy
		}
		if h.level < sqlite.LockShared {
			return fmt.Errorf("memfs: reserved lock requires shared: %w", vfs.ErrBusy)
		}
		h.file.reserved = true
	case sqlite.LockPending, sqlite.LockExclusive:
		// A handle that never acquired shared never joined the shared
		// count, so letting it climb higher would desynchronize the
		// ladder on the way back down.
		if h.level < sqlite.LockShared {
			return fmt.Errorf("memfs: lock upgrade requires shared: %w", vfs.ErrBusy)
		}
		if h.file.reserved && h.level < sqlite.LockReserved {
			return vfs.ErrBusy
		}
		if h.file.pending && h.level < sqlite.LockPending {
			return vfs.ErrBusy
		}
		if level == sqlite.LockExclusive {
			// Other shared holders must drain first.
			others := h.file.shared
			if h.level >= sqlite.LockShared {
				others--
			}
			if others > 0 {
				return vfs.ErrBusy
			}
		}
		h.file.reserved = true
		h.file.pending = true
	}
	h.level = level
	return nil
}

// Unlock lowers this handle's lock to level, releasing whatever tiers
// it held above it.
func (h *handle) Unlock(level sqlite.LockLevel) error {
	if level >= h.level {
		return nil
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if h.level >= sqlite.LockReserved {
		h.file.reserved = false
	}
	if h.level >= sqlite.LockPending {
		h.file.pending = false
	}
	if level == sqlite.LockNone && h.level >= sqlite.LockShared {
		h.file.shared--
	}
	h.level = level
	return nil
}

func (h *handle) CheckReservedLock() (bool, error) {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	return h.file.reserved || h.file.pending, nil
}

func (h *handle) SectorSize() int {
	return 512
}

func (h *handle) DeviceCharacteristics() sqlite.DeviceCharacteristics {
	// Memory writes are atomic and ordered from the engine's point of
	// view, and no data survives to be corrupted by power loss.
	return sqlite.IOCapAtomic | sqlite.IOCapSequential | sqlite.IOCapSafeAppend
}
