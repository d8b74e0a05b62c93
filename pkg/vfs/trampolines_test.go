package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// fakeBackend is a small in-memory backend used to exercise the adapter
// without depending on the real backend packages (which import this
// package and would form a cycle in in-package tests).
type fakeBackend struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{files: make(map[string][]byte)}
}

func (b *fakeBackend) Open(name string, flags sqlite.OpenFlag) (File, sqlite.OpenFlag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.files[name]; !ok {
		if flags&sqlite.OpenCreate == 0 {
			return nil, 0, fmt.Errorf("%q: %w", name, fs.ErrNotExist)
		}
		b.files[name] = nil
	}
	return &fakeFile{b: b, name: name}, flags, nil
}

func (b *fakeBackend) Delete(name string, syncDir bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.files[name]; !ok {
		return fmt.Errorf("%q: %w", name, fs.ErrNotExist)
	}
	delete(b.files, name)
	return nil
}

func (b *fakeBackend) Access(name string, flags sqlite.AccessFlag) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[name]
	return ok, nil
}

func (b *fakeBackend) FullPathname(name string) (string, error) {
	return path.Clean(name), nil
}

type fakeFile struct {
	b    *fakeBackend
	name string
}

func (f *fakeFile) Close() error { return nil }

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()

	data := f.b.files[f.name]
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *fakeFile) WriteAt(p []byte, off int64) (int, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()

	data := f.b.files[f.name]
	if grown := off + int64(len(p)); grown > int64(len(data)) {
		next := make([]byte, grown)
		copy(next, data)
		data = next
	}
	copy(data[off:], p)
	f.b.files[f.name] = data
	return len(p), nil
}

func (f *fakeFile) Size() (int64, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	return int64(len(f.b.files[f.name])), nil
}

func (f *fakeFile) Sync(flags sqlite.SyncFlag) error { return nil }

// registerFakeFS registers a fresh fake backend under a unique name.
func registerFakeFS(t *testing.T) string {
	t.Helper()
	name := uniqueName("tramp")
	require.NoError(t, Register(name, false, newFakeBackend()))
	return name
}

func TestLifecycle_OpenWriteReadClose(t *testing.T) {
	name := registerFakeFS(t)

	f, outFlags, rc := sqlite.Open(name, "lifecycle.db",
		sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
	require.Equal(t, sqlite.OK, rc)
	assert.NotZero(t, outFlags&sqlite.OpenReadWrite)

	payload := []byte("through the whole stack")
	require.Equal(t, sqlite.OK, f.WriteAt(payload, 0))

	got := make([]byte, len(payload))
	require.Equal(t, sqlite.OK, f.ReadAt(got, 0))
	assert.Equal(t, payload, got)

	size, rc := f.FileSize()
	require.Equal(t, sqlite.OK, rc)
	assert.Equal(t, int64(len(payload)), size)

	require.Equal(t, sqlite.OK, f.Sync(sqlite.SyncNormal))
	require.Equal(t, sqlite.OK, f.Close())
}

func TestClose_InvalidatesHandle(t *testing.T) {
	name := registerFakeFS(t)

	f, _, rc := sqlite.Open(name, "close.db",
		sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
	require.Equal(t, sqlite.OK, rc)

	handle := f.Handle()
	require.Equal(t, sqlite.OK, f.Close())

	// The engine driver refuses a second close before reaching the
	// callback table.
	assert.Equal(t, sqlite.Misuse, f.Close())
	assert.Equal(t, sqlite.Misuse, f.ReadAt(make([]byte, 4), 0))

	// Driving the callbacks directly on the dead handle must fail the
	// checked cast, not reach the backend.
	assert.Equal(t, sqlite.IOErrClose, xClose(handle))
	assert.Equal(t, sqlite.IOErrRead, xRead(handle, make([]byte, 4), 0))
	assert.Equal(t, sqlite.IOErrWrite, xWrite(handle, []byte("x"), 0))
	assert.Equal(t, sqlite.IOErrLock, xLock(handle, sqlite.LockShared))
}

func TestTrampolines_GarbageHandle(t *testing.T) {
	// A handle whose extension was never initialized carries whatever the
	// allocator left there. Every per-file trampoline must reject it.
	raw := make([]uint64, (handleSize+7)/8)
	for i := range raw {
		raw[i] = 0xdeadbeefdeadbeef
	}
	p := unsafe.Pointer(&raw[0])

	assert.Equal(t, sqlite.IOErrClose, xClose(p))
	assert.Equal(t, sqlite.IOErrRead, xRead(p, make([]byte, 8), 0))
	assert.Equal(t, sqlite.IOErrWrite, xWrite(p, []byte("x"), 0))
	assert.Equal(t, sqlite.IOErrTruncate, xTruncate(p, 0))
	assert.Equal(t, sqlite.IOErrFsync, xSync(p, sqlite.SyncNormal))
	var size int64
	assert.Equal(t, sqlite.IOErrFstat, xFileSize(p, &size))
	assert.Equal(t, sqlite.IOErrLock, xLock(p, sqlite.LockShared))
	assert.Equal(t, sqlite.IOErrUnlock, xUnlock(p, sqlite.LockNone))
	var held bool
	assert.Equal(t, sqlite.IOErrRdlock, xCheckReservedLock(p, &held))
	assert.Equal(t, 0, xSectorSize(p))
	assert.Equal(t, sqlite.DeviceCharacteristics(0), xDeviceCharacteristics(p))
}

func TestTrampolines_NullPointers(t *testing.T) {
	assert.Equal(t, sqlite.IOErrClose, xClose(nil))
	assert.Equal(t, sqlite.IOErrRead, xRead(nil, make([]byte, 8), 0))

	// Filesystem-level trampolines with a nil or foreign descriptor.
	_, rc := xOpen(nil, "x.db", nil, 0)
	assert.Equal(t, sqlite.Error, rc)

	var garbage int
	foreign := &sqlite.VFS{AppData: unsafe.Pointer(&garbage)}
	_, rc = xOpen(foreign, "x.db", nil, 0)
	assert.Equal(t, sqlite.Error, rc)
	assert.Equal(t, sqlite.IOErrDelete, xDelete(foreign, "x.db", false))
}

func TestOpen_NullFilePointer(t *testing.T) {
	name := registerFakeFS(t)
	desc := sqlite.Find(name)
	require.NotNil(t, desc)

	_, rc := xOpen(desc, "null.db", nil, sqlite.OpenReadWrite|sqlite.OpenCreate)
	assert.Equal(t, sqlite.CantOpen, rc)

	code, err, ok := LastError(name)
	require.True(t, ok, "the failure should be recorded")
	assert.Equal(t, sqlite.CantOpen, code)
	assert.Error(t, err)
}

func TestOpen_MissingFileRecordsLastError(t *testing.T) {
	name := registerFakeFS(t)

	_, _, rc := sqlite.Open(name, "missing.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.Equal(t, sqlite.CantOpen, rc)

	code, err, ok := LastError(name)
	require.True(t, ok)
	assert.Equal(t, sqlite.CantOpen, code)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "recorded error should carry the backend cause, got %v", err)
}

func TestLastError_LastWriteWins(t *testing.T) {
	name := registerFakeFS(t)

	_, _, rc := sqlite.Open(name, "first-missing.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.Equal(t, sqlite.CantOpen, rc)

	_, _, rc = sqlite.Open(name, "second-missing.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.Equal(t, sqlite.CantOpen, rc)

	_, err, ok := LastError(name)
	require.True(t, ok)
	assert.Contains(t, err.Error(), "second-missing.db", "the slot should hold the most recent failure")
	assert.NotContains(t, err.Error(), "first-missing.db")
}

func TestRead_ShortReadZeroFills(t *testing.T) {
	name := registerFakeFS(t)

	f, _, rc := sqlite.Open(name, "short.db",
		sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
	require.Equal(t, sqlite.OK, rc)
	defer f.Close()

	require.Equal(t, sqlite.OK, f.WriteAt([]byte("abc"), 0))

	// Poison the buffer so zero-filling is observable.
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	rc = f.ReadAt(buf, 0)
	assert.Equal(t, sqlite.IOErrShortRead, rc)
	assert.Equal(t, []byte("abc\x00\x00\x00\x00\x00"), buf)

	// Entirely past end-of-file: all zeros, same status.
	buf = []byte{0xff, 0xff, 0xff, 0xff}
	rc = f.ReadAt(buf, 100)
	assert.Equal(t, sqlite.IOErrShortRead, rc)
	assert.Equal(t, make([]byte, 4), buf)
}

// readOnlyBackend produces files that implement reading but no write,
// truncate, lock, or size capabilities.
type readOnlyBackend struct {
	data []byte
}

type readOnlyFile struct {
	data []byte
}

func (b *readOnlyBackend) Open(name string, flags sqlite.OpenFlag) (File, sqlite.OpenFlag, error) {
	return readOnlyFile{data: b.data}, flags &^ sqlite.OpenReadWrite, nil
}

func (readOnlyFile) Close() error { return nil }

func (f readOnlyFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestIOMethods_CapabilityOmission(t *testing.T) {
	name := uniqueName("readonly")
	require.NoError(t, Register(name, false, &readOnlyBackend{data: []byte("fixed contents")}))

	f, _, rc := sqlite.Open(name, "ro.db", sqlite.OpenReadOnly|sqlite.OpenMainDB)
	require.Equal(t, sqlite.OK, rc)
	defer f.Close()

	got := make([]byte, 5)
	require.Equal(t, sqlite.OK, f.ReadAt(got, 0))
	assert.Equal(t, []byte("fixed"), got)

	// Unimplemented capabilities surface as "not provided", not errors.
	assert.Equal(t, sqlite.NotFound, f.WriteAt([]byte("x"), 0))
	assert.Equal(t, sqlite.NotFound, f.Truncate(0))
	assert.Equal(t, sqlite.NotFound, f.Lock(sqlite.LockShared))
	_, rc = f.FileSize()
	assert.Equal(t, sqlite.NotFound, rc)

	// Slots without a status channel fall back to engine defaults.
	assert.Equal(t, 4096, f.SectorSize())
	assert.Equal(t, sqlite.DeviceCharacteristics(0), f.DeviceCharacteristics())
}

// countingBackend wraps the fake backend and counts open calls.
type countingBackend struct {
	inner *fakeBackend
	opens atomic.Int32
}

func (b *countingBackend) Open(name string, flags sqlite.OpenFlag) (File, sqlite.OpenFlag, error) {
	b.opens.Add(1)
	return b.inner.Open(name, flags)
}

func TestOpen_Concurrent(t *testing.T) {
	backend := &countingBackend{inner: newFakeBackend()}
	name := uniqueName("concurrent")
	require.NoError(t, Register(name, false, backend))

	const goroutines = 8
	files := make([]*sqlite.OpenFile, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, _, rc := sqlite.Open(name, "shared.db",
				sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
			if rc == sqlite.OK {
				files[i] = f
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(goroutines), backend.opens.Load())
	for i, f := range files {
		require.NotNil(t, f, "goroutine %d failed to open", i)
		assert.Equal(t, sqlite.OK, f.Close())
	}
}

func TestDelete_MissingFileIsOK(t *testing.T) {
	name := registerFakeFS(t)
	desc := sqlite.Find(name)
	require.NotNil(t, desc)
	require.NotNil(t, desc.Delete)

	assert.Equal(t, sqlite.OK, desc.Delete(desc, "never-existed.db", false))
}

func TestFullPathname(t *testing.T) {
	name := registerFakeFS(t)
	desc := sqlite.Find(name)
	require.NotNil(t, desc)
	require.NotNil(t, desc.FullPathname)

	full, rc := desc.FullPathname(desc, "dir/../clean.db")
	require.Equal(t, sqlite.OK, rc)
	assert.Equal(t, "clean.db", full)
}
