package badgerfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
	"github.com/plugvfs/plugvfs/pkg/vfs"
	"github.com/plugvfs/plugvfs/pkg/vfs/vfstest"
)

// newInMemory creates a throwaway Badger-backed backend for one test.
func newInMemory(t *testing.T) *BadgerFS {
	t.Helper()

	backend, err := New(Config{InMemory: true})
	require.NoError(t, err, "Failed to create BadgerFS backend")
	t.Cleanup(func() {
		require.NoError(t, backend.Close())
	})
	return backend
}

// TestBadgerFS runs the complete backend conformance suite against the
// Badger page-store implementation.
func TestBadgerFS(t *testing.T) {
	suite := &vfstest.Suite{
		NewBackend: func(t *testing.T) vfs.Backend {
			return newInMemory(t)
		},
	}

	suite.Run(t)
}

// TestBadgerFS_OnDisk verifies that data written through one backend
// instance survives reopening the database directory.
func TestBadgerFS_OnDisk(t *testing.T) {
	dir := t.TempDir()

	backend, err := New(Config{DBPath: dir})
	require.NoError(t, err)

	f, _, err := backend.Open("persist.db", sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
	require.NoError(t, err)
	_, err = f.(io.WriterAt).WriteAt([]byte("durable"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, backend.Close())

	reopened, err := New(Config{DBPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	f, _, err = reopened.Open("persist.db", sqlite.OpenReadWrite|sqlite.OpenMainDB)
	require.NoError(t, err)
	defer f.Close()

	got := make([]byte, 7)
	_, err = f.(io.ReaderAt).ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}

// TestBadgerFS_ColonNamesStayDistinct verifies the key schema keeps
// files apart even when one name is a prefix of another around the key
// separator. Deleting "a" must not touch the pages of "a:0".
func TestBadgerFS_ColonNamesStayDistinct(t *testing.T) {
	backend := newInMemory(t)
	flags := sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMainDB

	short, _, err := backend.Open("a", flags)
	require.NoError(t, err)
	require.NoError(t, short.Close())

	long, _, err := backend.Open("a:0", flags)
	require.NoError(t, err)
	defer long.Close()

	payload := []byte("colon-bearing names")
	_, err = long.(io.WriterAt).WriteAt(payload, 0)
	require.NoError(t, err)

	require.NoError(t, backend.Delete("a", false))

	exists, err := backend.Access("a:0", sqlite.AccessExists)
	require.NoError(t, err)
	assert.True(t, exists, "deleting %q must leave %q in place", "a", "a:0")

	got := make([]byte, len(payload))
	_, err = long.(io.ReaderAt).ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got, "deleting %q must not clobber pages of %q", "a", "a:0")
}

// TestBadgerFS_CrossPageWrite exercises a write spanning several pages,
// since the page assembly path is where off-by-one bugs would live.
func TestBadgerFS_CrossPageWrite(t *testing.T) {
	backend, err := New(Config{InMemory: true, PageSize: 64})
	require.NoError(t, err)
	defer backend.Close()

	f, _, err := backend.Open("pages.db", sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
	require.NoError(t, err)
	defer f.Close()

	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}

	// Start mid-page so the write covers a partial head page, two full
	// pages, and a partial tail page.
	n, err := f.(io.WriterAt).WriteAt(payload, 30)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	got := make([]byte, 200)
	_, err = f.(io.ReaderAt).ReadAt(got, 30)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
