package sqlite

import "unsafe"

// OpenFile is an open file as the engine tracks it: the raw handle
// allocation plus the descriptor it was opened through.
//
// The handle memory is allocated by Open with exactly the byte size the
// descriptor advertises, is never zeroed, and is interpreted only through
// the File header at its start. Everything after the header belongs to
// the filesystem that opened the file.
type OpenFile struct {
	vfs *VFS

	// raw backs the handle allocation. uint64 elements guarantee the
	// 8-byte alignment the header layout requires.
	raw []uint64

	ptr    unsafe.Pointer
	closed bool
}

// handleGarbage is the fill pattern written into freshly allocated handle
// memory. The engine gives no zeroing guarantee, so the driver actively
// scribbles the allocation to surface adapters that read the extension
// region before their open callback initialized it.
const handleGarbage = 0xa5a5a5a5a5a5a5a5

// Open resolves the filesystem registered under vfsName ("" selects the
// process default), allocates the raw handle memory its descriptor asks
// for, and invokes the open callback.
//
// On success the returned OpenFile dispatches per-file operations through
// the method table the open callback installed. On failure the handle
// memory is discarded.
func Open(vfsName, fileName string, flags OpenFlag) (*OpenFile, OpenFlag, Status) {
	var vfs *VFS
	if vfsName == "" {
		vfs = Default()
	} else {
		vfs = Find(vfsName)
	}
	if vfs == nil {
		return nil, 0, Error
	}
	if len(fileName) > vfs.MaxPathname {
		return nil, 0, CantOpen
	}

	words := (vfs.OSFileSize + 7) / 8
	if words == 0 {
		words = 1
	}
	raw := make([]uint64, words)
	for i := range raw {
		raw[i] = handleGarbage
	}

	f := &OpenFile{
		vfs: vfs,
		raw: raw,
		ptr: unsafe.Pointer(&raw[0]),
	}

	outFlags, rc := vfs.Open(vfs, fileName, f.ptr, flags)
	if rc != OK {
		return nil, 0, rc
	}
	return f, outFlags, OK
}

// methods returns the dispatch table installed in the handle header, or
// nil if the file is closed.
func (f *OpenFile) methods() *IOMethods {
	if f == nil || f.closed {
		return nil
	}
	return (*File)(f.ptr).Methods
}

// Handle returns the raw handle pointer, as the engine would pass it to a
// per-file callback. Useful for driving callbacks directly in tests.
func (f *OpenFile) Handle() unsafe.Pointer {
	return f.ptr
}

// Close invokes the close slot and releases the handle. The engine calls
// close exactly once per successfully opened file; further calls on this
// OpenFile report Misuse without touching the callback table.
func (f *OpenFile) Close() Status {
	m := f.methods()
	if m == nil {
		return Misuse
	}
	if m.Close == nil {
		return NotFound
	}
	rc := m.Close(f.ptr)
	f.closed = true
	return rc
}

// ReadAt reads len(p) bytes at offset off through the read slot.
func (f *OpenFile) ReadAt(p []byte, off int64) Status {
	m := f.methods()
	if m == nil {
		return Misuse
	}
	if m.Read == nil {
		return NotFound
	}
	return m.Read(f.ptr, p, off)
}

// WriteAt writes p at offset off through the write slot.
func (f *OpenFile) WriteAt(p []byte, off int64) Status {
	m := f.methods()
	if m == nil {
		return Misuse
	}
	if m.Write == nil {
		return NotFound
	}
	return m.Write(f.ptr, p, off)
}

// Truncate resizes the file through the truncate slot.
func (f *OpenFile) Truncate(size int64) Status {
	m := f.methods()
	if m == nil {
		return Misuse
	}
	if m.Truncate == nil {
		return NotFound
	}
	return m.Truncate(f.ptr, size)
}

// Sync flushes the file through the sync slot.
func (f *OpenFile) Sync(flags SyncFlag) Status {
	m := f.methods()
	if m == nil {
		return Misuse
	}
	if m.Sync == nil {
		return NotFound
	}
	return m.Sync(f.ptr, flags)
}

// FileSize reports the current file size through the file-size slot.
func (f *OpenFile) FileSize() (int64, Status) {
	m := f.methods()
	if m == nil {
		return 0, Misuse
	}
	if m.FileSize == nil {
		return 0, NotFound
	}
	var size int64
	rc := m.FileSize(f.ptr, &size)
	return size, rc
}

// Lock raises the file lock to level through the lock slot.
func (f *OpenFile) Lock(level LockLevel) Status {
	m := f.methods()
	if m == nil {
		return Misuse
	}
	if m.Lock == nil {
		return NotFound
	}
	return m.Lock(f.ptr, level)
}

// Unlock lowers the file lock to level through the unlock slot.
func (f *OpenFile) Unlock(level LockLevel) Status {
	m := f.methods()
	if m == nil {
		return Misuse
	}
	if m.Unlock == nil {
		return NotFound
	}
	return m.Unlock(f.ptr, level)
}

// CheckReservedLock reports whether any connection holds a reserved or
// higher lock on the file.
func (f *OpenFile) CheckReservedLock() (bool, Status) {
	m := f.methods()
	if m == nil {
		return false, Misuse
	}
	if m.CheckReservedLock == nil {
		return false, NotFound
	}
	var held bool
	rc := m.CheckReservedLock(f.ptr, &held)
	return held, rc
}

// SectorSize reports the file's sector size, falling back to the
// engine's default of 4096 when the slot is missing.
func (f *OpenFile) SectorSize() int {
	m := f.methods()
	if m == nil || m.SectorSize == nil {
		return 4096
	}
	return m.SectorSize(f.ptr)
}

// DeviceCharacteristics reports the file's device-characteristics bits,
// or 0 when the slot is missing.
func (f *OpenFile) DeviceCharacteristics() DeviceCharacteristics {
	m := f.methods()
	if m == nil || m.DeviceCharacteristics == nil {
		return 0
	}
	return m.DeviceCharacteristics(f.ptr)
}
