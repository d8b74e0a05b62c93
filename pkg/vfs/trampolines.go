package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"unsafe"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// Trampolines: the functions bound into callback-table slots. They run
// synchronously on whatever thread the engine is using and share one
// protocol:
//
//  1. Resolve every incoming pointer through a checked cast
//     (stateFromVFS / handleEntry); a null or foreign pointer yields a
//     failure status, never a fault.
//  2. Delegate to the backend capability method.
//  3. Translate the result into the engine's status vocabulary,
//     recording the native error in the last-error slot before the code
//     is returned. Nothing ever unwinds across the boundary.
//
// Filesystem-level trampolines recover shared state from the descriptor;
// per-file trampolines recover it through the handle extension. A
// per-file call whose handle cannot be resolved has no reachable
// last-error slot, so it reports the failure code alone.

// ============================================================================
// Filesystem-level trampolines
// ============================================================================

// xOpen delegates to Backend.Open and performs the one-time
// initialization of the handle extension. The handle memory arrives
// uninitialized; nothing is read from it, and it is written only after
// the backend open succeeded.
func xOpen(v *sqlite.VFS, name string, filePtr unsafe.Pointer, flags sqlite.OpenFlag) (sqlite.OpenFlag, sqlite.Status) {
	st, err := stateFromVFS(v)
	if err != nil {
		return 0, sqlite.Error
	}

	if filePtr == nil {
		return 0, st.setLastError(sqlite.CantOpen, errNullFile)
	}

	f, outFlags, err := st.backend.Open(name, flags)
	if err != nil {
		return 0, st.setLastError(statusFromError(err, sqlite.CantOpen),
			fmt.Errorf("open %q: %w", name, err))
	}

	initHandle(filePtr, &openFile{
		state:   st,
		file:    f,
		methods: ioMethodsFor(f),
	})
	return outFlags, sqlite.OK
}

func xDelete(v *sqlite.VFS, name string, syncDir bool) sqlite.Status {
	st, err := stateFromVFS(v)
	if err != nil {
		return sqlite.IOErrDelete
	}
	deleter, ok := st.backend.(BackendDeleter)
	if !ok {
		return sqlite.NotFound
	}
	if err := deleter.Delete(name, syncDir); err != nil {
		// Deleting a file that is already gone is not a failure the
		// engine needs to hear about.
		if errors.Is(err, fs.ErrNotExist) {
			return sqlite.OK
		}
		return st.setLastError(statusFromError(err, sqlite.IOErrDelete),
			fmt.Errorf("delete %q: %w", name, err))
	}
	return sqlite.OK
}

func xAccess(v *sqlite.VFS, name string, flags sqlite.AccessFlag) (bool, sqlite.Status) {
	st, err := stateFromVFS(v)
	if err != nil {
		return false, sqlite.IOErr
	}
	accessor, ok := st.backend.(BackendAccessor)
	if !ok {
		return false, sqlite.NotFound
	}
	exists, err := accessor.Access(name, flags)
	if err != nil {
		return false, st.setLastError(statusFromError(err, sqlite.IOErr),
			fmt.Errorf("access %q: %w", name, err))
	}
	return exists, sqlite.OK
}

func xFullPathname(v *sqlite.VFS, name string) (string, sqlite.Status) {
	st, err := stateFromVFS(v)
	if err != nil {
		return "", sqlite.Error
	}
	resolver, ok := st.backend.(BackendPathResolver)
	if !ok {
		return "", sqlite.NotFound
	}
	full, err := resolver.FullPathname(name)
	if err != nil {
		return "", st.setLastError(statusFromError(err, sqlite.CantOpen),
			fmt.Errorf("full pathname %q: %w", name, err))
	}
	if len(full) > maxPathname {
		return "", st.setLastError(sqlite.CantOpen,
			fmt.Errorf("full pathname %q exceeds %d bytes", name, maxPathname))
	}
	return full, sqlite.OK
}

func xGetLastError(v *sqlite.VFS) (sqlite.Status, string) {
	st, err := stateFromVFS(v)
	if err != nil {
		return sqlite.Error, ""
	}
	code, lastErr, ok := st.lastError()
	if !ok {
		return sqlite.OK, ""
	}
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return code, msg
}

// ============================================================================
// Per-file method table
// ============================================================================

// ioMethodsFor builds the method table for one opened file from the
// capabilities its concrete type implements. The header's method-table
// pointer is per-file by engine contract, so files of different types
// from one backend can legitimately carry different tables. Close is
// always present; every other slot is filled only when the file
// implements the matching interface, leaving the rest "not provided".
func ioMethodsFor(f File) *sqlite.IOMethods {
	m := &sqlite.IOMethods{
		Version: 1,
		Close:   xClose,
	}

	if _, ok := f.(io.ReaderAt); ok {
		m.Read = xRead
	}
	if _, ok := f.(io.WriterAt); ok {
		m.Write = xWrite
	}
	if _, ok := f.(FileTruncator); ok {
		m.Truncate = xTruncate
	}
	if _, ok := f.(FileSyncer); ok {
		m.Sync = xSync
	}
	if _, ok := f.(FileSizer); ok {
		m.FileSize = xFileSize
	}
	if _, ok := f.(FileLocker); ok {
		m.Lock = xLock
		m.Unlock = xUnlock
		m.CheckReservedLock = xCheckReservedLock
	}
	if _, ok := f.(FileController); ok {
		m.FileControl = xFileControl
	}
	if _, ok := f.(FileSectorSizer); ok {
		m.SectorSize = xSectorSize
	}
	if _, ok := f.(FileDeviceCharacterizer); ok {
		m.DeviceCharacteristics = xDeviceCharacteristics
	}
	return m
}

// ============================================================================
// Per-file trampolines
// ============================================================================

// xClose finalizes the handle extension exactly once and closes the
// backend file. After it runs, the handle is dead: later calls through
// it fail the checked cast instead of reaching the backend.
func xClose(p unsafe.Pointer) sqlite.Status {
	entry, err := finalizeHandle(p)
	if err != nil {
		return sqlite.IOErrClose
	}
	if err := entry.file.Close(); err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrClose),
			fmt.Errorf("close: %w", err))
	}
	return sqlite.OK
}

// xRead fills p from the file at offset off. A read reaching past
// end-of-file zero-fills the remainder and reports the engine's
// designated short-read status, which the engine relies on to detect
// truncated files.
func xRead(ptr unsafe.Pointer, p []byte, off int64) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrRead
	}
	r, ok := entry.file.(io.ReaderAt)
	if !ok {
		return sqlite.NotFound
	}

	n, err := r.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrRead),
			fmt.Errorf("read %d bytes at %d: %w", len(p), off, err))
	}
	if n < len(p) {
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
		return sqlite.IOErrShortRead
	}
	return sqlite.OK
}

func xWrite(ptr unsafe.Pointer, p []byte, off int64) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrWrite
	}
	w, ok := entry.file.(io.WriterAt)
	if !ok {
		return sqlite.NotFound
	}

	n, err := w.WriteAt(p, off)
	if err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrWrite),
			fmt.Errorf("write %d bytes at %d: %w", len(p), off, err))
	}
	if n < len(p) {
		return entry.state.setLastError(sqlite.IOErrWrite,
			fmt.Errorf("short write: %d of %d bytes at %d", n, len(p), off))
	}
	return sqlite.OK
}

func xTruncate(ptr unsafe.Pointer, size int64) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrTruncate
	}
	t, ok := entry.file.(FileTruncator)
	if !ok {
		return sqlite.NotFound
	}
	if err := t.Truncate(size); err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrTruncate),
			fmt.Errorf("truncate to %d: %w", size, err))
	}
	return sqlite.OK
}

func xSync(ptr unsafe.Pointer, flags sqlite.SyncFlag) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrFsync
	}
	s, ok := entry.file.(FileSyncer)
	if !ok {
		return sqlite.NotFound
	}
	if err := s.Sync(flags); err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrFsync),
			fmt.Errorf("sync: %w", err))
	}
	return sqlite.OK
}

func xFileSize(ptr unsafe.Pointer, size *int64) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrFstat
	}
	if size == nil {
		return entry.state.setLastError(sqlite.IOErrFstat, errNullPointer)
	}
	sizer, ok := entry.file.(FileSizer)
	if !ok {
		return sqlite.NotFound
	}
	n, err := sizer.Size()
	if err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrFstat),
			fmt.Errorf("file size: %w", err))
	}
	*size = n
	return sqlite.OK
}

func xLock(ptr unsafe.Pointer, level sqlite.LockLevel) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrLock
	}
	locker, ok := entry.file.(FileLocker)
	if !ok {
		return sqlite.NotFound
	}
	if err := locker.Lock(level); err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrLock),
			fmt.Errorf("lock to %s: %w", level, err))
	}
	return sqlite.OK
}

func xUnlock(ptr unsafe.Pointer, level sqlite.LockLevel) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrUnlock
	}
	locker, ok := entry.file.(FileLocker)
	if !ok {
		return sqlite.NotFound
	}
	if err := locker.Unlock(level); err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrUnlock),
			fmt.Errorf("unlock to %s: %w", level, err))
	}
	return sqlite.OK
}

func xCheckReservedLock(ptr unsafe.Pointer, out *bool) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErrRdlock
	}
	if out == nil {
		return entry.state.setLastError(sqlite.IOErrRdlock, errNullPointer)
	}
	locker, ok := entry.file.(FileLocker)
	if !ok {
		return sqlite.NotFound
	}
	held, err := locker.CheckReservedLock()
	if err != nil {
		return entry.state.setLastError(statusFromError(err, sqlite.IOErrRdlock),
			fmt.Errorf("check reserved lock: %w", err))
	}
	*out = held
	return sqlite.OK
}

func xFileControl(ptr unsafe.Pointer, op int, arg unsafe.Pointer) sqlite.Status {
	entry, err := handleEntry(ptr)
	if err != nil {
		return sqlite.IOErr
	}
	fc, ok := entry.file.(FileController)
	if !ok {
		return sqlite.NotFound
	}
	if err := fc.FileControl(op, arg); err != nil {
		if errors.Is(err, ErrNotSupported) {
			// Unknown opcode: the engine probes opcodes routinely, so
			// this is not recorded as an error.
			return sqlite.NotFound
		}
		return entry.state.setLastError(statusFromError(err, sqlite.Error),
			fmt.Errorf("file control op %d: %w", op, err))
	}
	return sqlite.OK
}

// xSectorSize and xDeviceCharacteristics have no status channel; an
// unresolvable handle falls back to the engine's defaults.
func xSectorSize(ptr unsafe.Pointer) int {
	entry, err := handleEntry(ptr)
	if err != nil {
		return 0
	}
	if s, ok := entry.file.(FileSectorSizer); ok {
		return s.SectorSize()
	}
	return 0
}

func xDeviceCharacteristics(ptr unsafe.Pointer) sqlite.DeviceCharacteristics {
	entry, err := handleEntry(ptr)
	if err != nil {
		return 0
	}
	if d, ok := entry.file.(FileDeviceCharacterizer); ok {
		return d.DeviceCharacteristics()
	}
	return 0
}
