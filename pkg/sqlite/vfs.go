package sqlite

import "unsafe"

// VFS is the virtual filesystem descriptor: the engine-visible record
// describing one registered filesystem.
//
// A descriptor is built once by an adapter, handed to Register, and owned
// by the global registry for the remainder of the process. The engine
// stores the pointer as-is and calls back through the function slots at
// arbitrary later times, on arbitrary threads. There is no unregister
// path, so everything the descriptor references (the name bytes, the
// AppData object, the slot functions) must stay valid for process
// lifetime.
//
// A nil function slot means the filesystem does not provide that
// operation. The engine treats a missing slot as "unsupported", not as a
// registration error.
type VFS struct {
	// Version selects the ABI variant of this descriptor.
	Version int

	// OSFileSize is the exact number of bytes the engine must allocate
	// for each open file handle on this filesystem. The allocation is
	// raw memory: the engine does not zero it, and only the leading
	// File header has a layout the engine knows about.
	OSFileSize int

	// MaxPathname is the longest pathname, in bytes, this filesystem
	// accepts.
	MaxPathname int

	// Name is the NUL-terminated registered name. The registry compares
	// and returns filesystems by this name; the pointed-to bytes are
	// never copied and never freed.
	Name *byte

	// AppData is an opaque pointer owned by the adapter. The engine
	// passes the descriptor (and therefore AppData) back on every
	// filesystem-level callback and never dereferences it.
	AppData unsafe.Pointer

	// Open opens the file identified by name into the raw handle memory
	// at file, which is exactly OSFileSize bytes and uninitialized. On
	// success the callback must have written a valid File header at the
	// start of that memory, and the returned OpenFlag reports the flags
	// the file was effectively opened with.
	Open func(vfs *VFS, name string, file unsafe.Pointer, flags OpenFlag) (OpenFlag, Status)

	// Delete removes the named file. When syncDir is true the directory
	// change must be durable before the callback returns.
	Delete func(vfs *VFS, name string, syncDir bool) Status

	// Access tests for file existence or permission.
	Access func(vfs *VFS, name string, flags AccessFlag) (bool, Status)

	// FullPathname canonicalizes name.
	FullPathname func(vfs *VFS, name string) (string, Status)

	// Randomness fills buf with entropy and returns the byte count.
	Randomness func(vfs *VFS, buf []byte) int

	// Sleep pauses the calling thread for at least micros microseconds
	// and returns the time actually slept.
	Sleep func(vfs *VFS, micros int) int

	// CurrentTime returns the current time as a Julian Day Number.
	CurrentTime func(vfs *VFS) float64

	// GetLastError reports the most recent error recorded by this
	// filesystem: the status code and a human-readable message.
	GetLastError func(vfs *VFS) (Status, string)
}

// IOMethods is the per-file callback table. The open callback selects the
// table by writing its address into the File header, so different files
// on one filesystem may carry different tables.
//
// Slots are nilable with the same "missing = unsupported" rule as the
// descriptor slots. Close is the one slot every table must provide: it
// finalizes whatever the open callback initialized.
type IOMethods struct {
	// Version selects the ABI variant of this table. Version 1 covers
	// the slots through DeviceCharacteristics; version 2 adds the
	// shared-memory slots; version 3 adds Fetch/Unfetch.
	Version int

	Close                 func(file unsafe.Pointer) Status
	Read                  func(file unsafe.Pointer, p []byte, off int64) Status
	Write                 func(file unsafe.Pointer, p []byte, off int64) Status
	Truncate              func(file unsafe.Pointer, size int64) Status
	Sync                  func(file unsafe.Pointer, flags SyncFlag) Status
	FileSize              func(file unsafe.Pointer, size *int64) Status
	Lock                  func(file unsafe.Pointer, level LockLevel) Status
	Unlock                func(file unsafe.Pointer, level LockLevel) Status
	CheckReservedLock     func(file unsafe.Pointer, out *bool) Status
	FileControl           func(file unsafe.Pointer, op int, arg unsafe.Pointer) Status
	SectorSize            func(file unsafe.Pointer) int
	DeviceCharacteristics func(file unsafe.Pointer) DeviceCharacteristics

	ShmMap     func(file unsafe.Pointer, region int, size int, extend bool) (unsafe.Pointer, Status)
	ShmLock    func(file unsafe.Pointer, offset int, n int, flags int) Status
	ShmBarrier func(file unsafe.Pointer)
	ShmUnmap   func(file unsafe.Pointer, deleteFlag bool) Status

	Fetch   func(file unsafe.Pointer, off int64, amt int) (unsafe.Pointer, Status)
	Unfetch func(file unsafe.Pointer, off int64, p unsafe.Pointer) Status
}

// File is the engine-mandated header at the start of every open file
// handle. The engine interprets only this leading region of the handle
// memory; everything after it belongs to the filesystem that opened the
// file.
type File struct {
	// Methods is the dispatch table for this file. It is written by the
	// open callback and read by the engine on every per-file call.
	Methods *IOMethods
}
