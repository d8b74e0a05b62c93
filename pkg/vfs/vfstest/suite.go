// Package vfstest provides a reusable conformance suite for storage
// backends. Backend implementations run the suite from their own tests:
//
//	func TestMemFS(t *testing.T) {
//		suite := &vfstest.Suite{
//			NewBackend: func(t *testing.T) vfs.Backend { return memfs.New() },
//		}
//		suite.Run(t)
//	}
//
// Optional capabilities are probed with interface assertions; tests for
// capabilities a backend does not implement are skipped, matching the
// adapter's own slot-omission rule.
package vfstest

import (
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
	"github.com/plugvfs/plugvfs/pkg/vfs"
)

// Suite is the backend conformance suite. NewBackend must return a
// fresh, empty backend for every call.
type Suite struct {
	NewBackend func(t *testing.T) vfs.Backend
}

// Run executes the full suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("Open_Create", s.testOpenCreate)
	t.Run("Open_MissingWithoutCreate", s.testOpenMissing)
	t.Run("ReadWrite_RoundTrip", s.testReadWriteRoundTrip)
	t.Run("Read_PastEnd", s.testReadPastEnd)
	t.Run("Write_PastEndZeroFillsGap", s.testWritePastEnd)
	t.Run("Truncate_ShrinkAndGrow", s.testTruncate)
	t.Run("Size_TracksWrites", s.testSize)
	t.Run("Sync_Succeeds", s.testSync)
	t.Run("Delete_RemovesFile", s.testDelete)
	t.Run("Access_ReportsExistence", s.testAccess)
	t.Run("Lock_Ladder", s.testLockLadder)
	t.Run("Lock_SharedConflictsWithExclusive", s.testLockConflict)
	t.Run("Lock_UpgradeRequiresShared", s.testLockUpgradeRequiresShared)
}

// mustOpen opens a file with create flags and fails the test on error.
func (s *Suite) mustOpen(t *testing.T, backend vfs.Backend, name string) vfs.File {
	t.Helper()
	f, _, err := backend.Open(name, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
	require.NoError(t, err, "Open should succeed")
	return f
}

func (s *Suite) testOpenCreate(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "create.db")
	require.NoError(t, f.Close())

	// The file must persist past the handle that created it.
	f2, _, err := backend.Open("create.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.NoError(t, err, "reopening an existing file should succeed")
	require.NoError(t, f2.Close())
}

func (s *Suite) testOpenMissing(t *testing.T) {
	backend := s.NewBackend(t)

	_, _, err := backend.Open("missing.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.Error(t, err, "opening a missing file without the create flag should fail")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "error should report fs.ErrNotExist, got %v", err)
}

func (s *Suite) testReadWriteRoundTrip(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "roundtrip.db")
	defer f.Close()

	w, ok := f.(io.WriterAt)
	if !ok {
		t.Skip("backend files do not implement io.WriterAt")
	}
	r := f.(io.ReaderAt)

	payload := []byte("hello, virtual filesystem")
	n, err := w.WriteAt(payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	got := make([]byte, len(payload))
	n, err = r.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	assert.Equal(t, payload, got)

	// Offset read of a middle slice.
	mid := make([]byte, 7)
	_, err = r.ReadAt(mid, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("virtual"), mid)
}

func (s *Suite) testReadPastEnd(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "pastend.db")
	defer f.Close()

	w, ok := f.(io.WriterAt)
	if !ok {
		t.Skip("backend files do not implement io.WriterAt")
	}
	_, err := w.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)

	// Reading beyond EOF must report io.EOF with the partial count.
	buf := make([]byte, 8)
	n, err := f.(io.ReaderAt).ReadAt(buf, 0)
	assert.Equal(t, 3, n)
	assert.True(t, errors.Is(err, io.EOF), "expected io.EOF, got %v", err)

	n, err = f.(io.ReaderAt).ReadAt(buf, 100)
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, io.EOF), "expected io.EOF, got %v", err)
}

func (s *Suite) testWritePastEnd(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "sparse.db")
	defer f.Close()

	w, ok := f.(io.WriterAt)
	if !ok {
		t.Skip("backend files do not implement io.WriterAt")
	}
	_, err := w.WriteAt([]byte("tail"), 10)
	require.NoError(t, err)

	sizer, ok := f.(vfs.FileSizer)
	if ok {
		size, err := sizer.Size()
		require.NoError(t, err)
		assert.Equal(t, int64(14), size)
	}

	got := make([]byte, 14)
	_, err = f.(io.ReaderAt).ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 10), got[:10], "gap should read as zeros")
	assert.Equal(t, []byte("tail"), got[10:])
}

func (s *Suite) testTruncate(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "truncate.db")
	defer f.Close()

	tr, ok := f.(vfs.FileTruncator)
	if !ok {
		t.Skip("backend files do not implement FileTruncator")
	}
	w := f.(io.WriterAt)
	_, err := w.WriteAt([]byte("0123456789"), 0)
	require.NoError(t, err)

	require.NoError(t, tr.Truncate(4))
	if sizer, ok := f.(vfs.FileSizer); ok {
		size, err := sizer.Size()
		require.NoError(t, err)
		assert.Equal(t, int64(4), size)
	}

	require.NoError(t, tr.Truncate(8))
	got := make([]byte, 8)
	_, err = f.(io.ReaderAt).ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123\x00\x00\x00\x00"), got, "growth should zero-fill")
}

func (s *Suite) testSize(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "size.db")
	defer f.Close()

	sizer, ok := f.(vfs.FileSizer)
	if !ok {
		t.Skip("backend files do not implement FileSizer")
	}
	size, err := sizer.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	if w, ok := f.(io.WriterAt); ok {
		_, err = w.WriteAt(make([]byte, 4096), 0)
		require.NoError(t, err)
		size, err = sizer.Size()
		require.NoError(t, err)
		assert.Equal(t, int64(4096), size)
	}
}

func (s *Suite) testSync(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "sync.db")
	defer f.Close()

	syncer, ok := f.(vfs.FileSyncer)
	if !ok {
		t.Skip("backend files do not implement FileSyncer")
	}
	assert.NoError(t, syncer.Sync(sqlite.SyncNormal))
	assert.NoError(t, syncer.Sync(sqlite.SyncFull))
}

func (s *Suite) testDelete(t *testing.T) {
	backend := s.NewBackend(t)

	deleter, ok := backend.(vfs.BackendDeleter)
	if !ok {
		t.Skip("backend does not implement BackendDeleter")
	}

	f := s.mustOpen(t, backend, "delete.db")
	require.NoError(t, f.Close())

	require.NoError(t, deleter.Delete("delete.db", false))

	_, _, err := backend.Open("delete.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	assert.Error(t, err, "deleted file should not open without the create flag")
}

func (s *Suite) testAccess(t *testing.T) {
	backend := s.NewBackend(t)

	accessor, ok := backend.(vfs.BackendAccessor)
	if !ok {
		t.Skip("backend does not implement BackendAccessor")
	}

	exists, err := accessor.Access("nothing-here.db", sqlite.AccessExists)
	require.NoError(t, err)
	assert.False(t, exists)

	f := s.mustOpen(t, backend, "present.db")
	defer f.Close()

	exists, err = accessor.Access("present.db", sqlite.AccessExists)
	require.NoError(t, err)
	assert.True(t, exists)
}

func (s *Suite) testLockLadder(t *testing.T) {
	backend := s.NewBackend(t)

	f := s.mustOpen(t, backend, "locks.db")
	defer f.Close()

	locker, ok := f.(vfs.FileLocker)
	if !ok {
		t.Skip("backend files do not implement FileLocker")
	}

	require.NoError(t, locker.Lock(sqlite.LockShared))
	require.NoError(t, locker.Lock(sqlite.LockReserved))

	held, err := locker.CheckReservedLock()
	require.NoError(t, err)
	assert.True(t, held, "reserved lock should be visible")

	require.NoError(t, locker.Lock(sqlite.LockExclusive))
	require.NoError(t, locker.Unlock(sqlite.LockNone))

	held, err = locker.CheckReservedLock()
	require.NoError(t, err)
	assert.False(t, held, "all locks should be released")
}

func (s *Suite) testLockConflict(t *testing.T) {
	backend := s.NewBackend(t)

	f1 := s.mustOpen(t, backend, "conflict.db")
	defer f1.Close()
	f2, _, err := backend.Open("conflict.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.NoError(t, err)
	defer f2.Close()

	l1, ok := f1.(vfs.FileLocker)
	if !ok {
		t.Skip("backend files do not implement FileLocker")
	}
	l2 := f2.(vfs.FileLocker)

	require.NoError(t, l1.Lock(sqlite.LockShared))
	require.NoError(t, l2.Lock(sqlite.LockShared))

	// Both connections hold shared; an exclusive upgrade must conflict.
	require.NoError(t, l1.Lock(sqlite.LockReserved))
	err = l1.Lock(sqlite.LockExclusive)
	assert.True(t, errors.Is(err, vfs.ErrBusy), "exclusive with a second shared holder should report ErrBusy, got %v", err)

	// Once the other holder drains, the upgrade succeeds.
	require.NoError(t, l2.Unlock(sqlite.LockNone))
	require.NoError(t, l1.Lock(sqlite.LockExclusive))
	require.NoError(t, l1.Unlock(sqlite.LockNone))
}

func (s *Suite) testLockUpgradeRequiresShared(t *testing.T) {
	backend := s.NewBackend(t)

	f1 := s.mustOpen(t, backend, "ladder.db")
	defer f1.Close()
	f2, _, err := backend.Open("ladder.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.NoError(t, err)
	defer f2.Close()

	l1, ok := f1.(vfs.FileLocker)
	if !ok {
		t.Skip("backend files do not implement FileLocker")
	}
	l2 := f2.(vfs.FileLocker)

	// Jumping straight to exclusive without shared must be refused;
	// accepting it would let the matching unlock release a shared slot
	// the handle never took.
	err = l1.Lock(sqlite.LockExclusive)
	assert.True(t, errors.Is(err, vfs.ErrBusy), "exclusive without shared should report ErrBusy, got %v", err)
	require.NoError(t, l1.Unlock(sqlite.LockNone))

	// The shared count must still balance: a live shared holder keeps
	// blocking exclusive upgrades from other connections.
	require.NoError(t, l2.Lock(sqlite.LockShared))

	require.NoError(t, l1.Lock(sqlite.LockShared))
	require.NoError(t, l1.Lock(sqlite.LockReserved))
	err = l1.Lock(sqlite.LockExclusive)
	assert.True(t, errors.Is(err, vfs.ErrBusy), "exclusive with a live shared holder should report ErrBusy, got %v", err)

	require.NoError(t, l2.Unlock(sqlite.LockNone))
	require.NoError(t, l1.Lock(sqlite.LockExclusive))
	require.NoError(t, l1.Unlock(sqlite.LockNone))
}
