package vfs

import (
	"sync"
	"unsafe"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// fileHandle is the adapter's view of the engine-allocated file handle
// memory: the engine-mandated header followed by the adapter-owned
// extension.
//
// Dual ownership:
// The engine allocates exactly handleSize bytes per open file (it learns
// the size from the descriptor) and interprets only the leading header.
// The extension region is uninitialized garbage until the open
// trampoline writes it, and must never be read before that point. The
// close trampoline finalizes it exactly once.
//
// The extension does not store Go pointers. Handle memory is invisible
// to the garbage collector, so the extension carries a magic cookie plus
// a token into the open-file table, and the table entry owns the real
// references (shared state, backend file, method table). Recovering
// typed state from a handle is therefore a checked lookup, which is also
// what makes garbage or stale pointers detectable instead of fatal.
type fileHandle struct {
	base   sqlite.File
	cookie uint64
	token  uint64
}

// handleSize is the exact byte size advertised in every descriptor this
// adapter registers.
var handleSize = int(unsafe.Sizeof(fileHandle{}))

// handleCookie marks an initialized extension. The engine's allocation
// pattern cannot collide with it by accident other than astronomically.
const handleCookie = 0x70766673_66696c65 // "pvfs" "file"

// openFile is the table entry behind one initialized handle: the shared
// filesystem state, the backend file, and the method table installed in
// the handle header (kept here so it stays reachable).
type openFile struct {
	state   *vfsState
	file    File
	methods *sqlite.IOMethods
}

// openFiles maps extension tokens to their entries. Guarded by a RWMutex
// because per-file callbacks for different handles run concurrently.
var openFiles struct {
	mu      sync.RWMutex
	byToken map[uint64]*openFile
	next    uint64
}

// initHandle performs the one-time initialization of a handle's
// extension: it allocates a token for the entry and writes the header
// and extension fields into the raw memory. Called only by the open
// trampoline, after the backend open succeeded.
func initHandle(p unsafe.Pointer, entry *openFile) {
	openFiles.mu.Lock()
	openFiles.next++
	token := openFiles.next
	if openFiles.byToken == nil {
		openFiles.byToken = make(map[uint64]*openFile)
	}
	openFiles.byToken[token] = entry
	openFiles.mu.Unlock()

	fh := (*fileHandle)(p)
	fh.base.Methods = entry.methods
	fh.token = token
	fh.cookie = handleCookie
}

// handleEntry recovers the open-file entry behind a handle pointer. This
// is the single checked cast for per-file trampolines: nil pointers,
// uninitialized extensions, and stale tokens all come back as errors.
func handleEntry(p unsafe.Pointer) (*openFile, error) {
	if p == nil {
		return nil, errNullPointer
	}
	fh := (*fileHandle)(p)
	if fh.cookie != handleCookie {
		return nil, errInvalidHandle
	}
	openFiles.mu.RLock()
	entry, ok := openFiles.byToken[fh.token]
	openFiles.mu.RUnlock()
	if !ok {
		return nil, errInvalidHandle
	}
	return entry, nil
}

// finalizeHandle drops the extension exactly once: it removes the table
// entry and clears the cookie so any later call through this handle is
// rejected by handleEntry instead of reaching a dead backend file.
func finalizeHandle(p unsafe.Pointer) (*openFile, error) {
	entry, err := handleEntry(p)
	if err != nil {
		return nil, err
	}
	fh := (*fileHandle)(p)

	openFiles.mu.Lock()
	delete(openFiles.byToken, fh.token)
	openFiles.mu.Unlock()

	fh.cookie = 0
	fh.token = 0
	fh.base.Methods = nil
	return entry, nil
}
