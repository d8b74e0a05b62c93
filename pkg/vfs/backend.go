package vfs

import (
	"unsafe"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// ============================================================================
// Backend Interface
// ============================================================================

// Backend is the capability contract a pluggable storage backend
// implements. Open is the one required operation; everything else is an
// optional capability declared by implementing the corresponding
// interface below. Unimplemented capabilities are simply omitted from
// the callback table handed to the engine, which treats a missing slot
// as "operation unsupported".
//
// Ownership:
// The backend instance is consumed by Register and thereafter shared by
// every callback invocation for that filesystem, for the rest of the
// process. It is never mutated structurally after registration.
//
// Thread Safety:
// The engine invokes callbacks from arbitrary threads, concurrently for
// different files and possibly for the same filesystem. Implementations
// must be safe for concurrent use; any internal mutable state is the
// backend's own responsibility to synchronize. The adapter synchronizes
// only its own last-error slot.
type Backend interface {
	// Open opens the named file and reports the flags it was
	// effectively opened with. The engine serializes calls on the
	// resulting File, but distinct Files may be used concurrently.
	//
	// Open errors are translated to the engine's cannot-open status
	// unless the error maps to something more specific (see the
	// sentinel errors in this package).
	Open(name string, flags sqlite.OpenFlag) (File, sqlite.OpenFlag, error)
}

// Optional backend-level capabilities. Each maps 1:1 to a descriptor
// callback slot that is filled at registration only when the backend
// implements the interface.
type (
	// BackendDeleter removes files. When syncDir is true the deletion
	// must be durable before returning.
	BackendDeleter interface {
		Delete(name string, syncDir bool) error
	}

	// BackendAccessor tests files for existence or permission.
	BackendAccessor interface {
		Access(name string, flags sqlite.AccessFlag) (bool, error)
	}

	// BackendPathResolver canonicalizes pathnames.
	BackendPathResolver interface {
		FullPathname(name string) (string, error)
	}
)

// ============================================================================
// File Interface
// ============================================================================

// File is one open file as the backend sees it. Close is the only
// required operation; per-file capabilities are declared by implementing
// the optional interfaces below and are probed once, when the file is
// opened, to build its method table.
//
// Reading and writing use the standard io.ReaderAt / io.WriterAt
// contracts: absolute byte offsets, full-length transfers on success.
// A read past end-of-file returns the bytes available and io.EOF; the
// adapter zero-fills the remainder and reports the engine's short-read
// status, per the engine contract.
type File interface {
	Close() error
}

// Optional per-file capabilities.
type (
	// FileTruncator resizes a file to exactly size bytes.
	FileTruncator interface {
		Truncate(size int64) error
	}

	// FileSyncer flushes file contents to durable storage at the
	// requested durability level.
	FileSyncer interface {
		Sync(flags sqlite.SyncFlag) error
	}

	// FileSizer reports the current file size in bytes.
	FileSizer interface {
		Size() (int64, error)
	}

	// FileLocker implements the engine's five-tier locking ladder.
	// Lock raises the held level, Unlock lowers it. A conflicting hold
	// by another connection is reported with ErrBusy.
	FileLocker interface {
		Lock(level sqlite.LockLevel) error
		Unlock(level sqlite.LockLevel) error
		CheckReservedLock() (bool, error)
	}

	// FileController handles backend-specific file-control opcodes.
	// Unknown opcodes are reported with ErrNotSupported.
	FileController interface {
		FileControl(op int, arg unsafe.Pointer) error
	}

	// FileSectorSizer reports the sector size of the backing device.
	FileSectorSizer interface {
		SectorSize() int
	}

	// FileDeviceCharacterizer reports device-characteristics bits of
	// the backing device.
	FileDeviceCharacterizer interface {
		DeviceCharacteristics() sqlite.DeviceCharacteristics
	}
)
