package vfs

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

// The engine registry is global and has no unregister path, so every
// test registers under its own unique name.
var nameSeq atomic.Int64

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, nameSeq.Add(1))
}

func TestRegister_Discoverable(t *testing.T) {
	name := uniqueName("register")

	require.NoError(t, Register(name, false, newFakeBackend()))

	desc := sqlite.Find(name)
	require.NotNil(t, desc, "registered filesystem should be discoverable by name")
	assert.Equal(t, name, sqlite.GoString(desc.Name))
	assert.Equal(t, 2, desc.Version)
	assert.Equal(t, handleSize, desc.OSFileSize)
	assert.Equal(t, maxPathname, desc.MaxPathname)
	assert.NotNil(t, desc.AppData)
	assert.NotNil(t, desc.Open)
	assert.NotNil(t, desc.GetLastError)
}

func TestRegister_EmbeddedNul(t *testing.T) {
	err := Register("bad\x00name", false, newFakeBackend())
	require.Error(t, err)

	var nulErr *NulError
	require.True(t, errors.As(err, &nulErr), "expected *NulError, got %T", err)
	assert.Equal(t, "bad\x00name", nulErr.Name)

	// The engine must never have seen the attempt.
	assert.Nil(t, sqlite.Find("bad\x00name"))
}

func TestRegister_DuplicateName(t *testing.T) {
	name := uniqueName("dup")

	require.NoError(t, Register(name, false, newFakeBackend()))

	err := Register(name, false, newFakeBackend())
	require.Error(t, err)

	var regErr *RegisterError
	require.True(t, errors.As(err, &regErr), "expected *RegisterError, got %T", err)
	assert.Equal(t, sqlite.Misuse, regErr.Code)

	// The original registration must survive the collision intact.
	f, _, rc := sqlite.Open(name, "still-works.db",
		sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenMainDB)
	require.Equal(t, sqlite.OK, rc)
	require.Equal(t, sqlite.OK, f.Close())
}

// minimalBackend implements only the required Open; no delete, access,
// or pathname capabilities.
type minimalBackend struct{}

type minimalFile struct{}

func (minimalBackend) Open(name string, flags sqlite.OpenFlag) (File, sqlite.OpenFlag, error) {
	return minimalFile{}, flags, nil
}

func (minimalFile) Close() error { return nil }

func TestRegister_CapabilitySlots(t *testing.T) {
	fullName := uniqueName("full")
	require.NoError(t, Register(fullName, false, newFakeBackend()))

	full := sqlite.Find(fullName)
	require.NotNil(t, full)
	assert.NotNil(t, full.Delete, "deleter backend should wire the delete slot")
	assert.NotNil(t, full.Access, "accessor backend should wire the access slot")
	assert.NotNil(t, full.FullPathname, "resolver backend should wire the pathname slot")

	minName := uniqueName("minimal")
	require.NoError(t, Register(minName, false, minimalBackend{}))

	min := sqlite.Find(minName)
	require.NotNil(t, min)
	assert.Nil(t, min.Delete, "missing capability should leave the slot unset")
	assert.Nil(t, min.Access)
	assert.Nil(t, min.FullPathname)
	assert.NotNil(t, min.Open)
	assert.NotNil(t, min.GetLastError, "the last-error channel is always wired")
}

func TestRegister_AsDefault(t *testing.T) {
	name := uniqueName("default")
	require.NoError(t, Register(name, true, newFakeBackend()))

	def := sqlite.Default()
	require.NotNil(t, def)
	assert.Equal(t, name, sqlite.GoString(def.Name))
}
