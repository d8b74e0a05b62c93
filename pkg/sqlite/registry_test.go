package sqlite

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVFS(name string) *VFS {
	return &VFS{
		Version:     2,
		OSFileSize:  32,
		MaxPathname: 512,
		Name:        CString(name),
		Open: func(vfs *VFS, name string, file unsafe.Pointer, flags OpenFlag) (OpenFlag, Status) {
			return flags, OK
		},
	}
}

func TestRegister_FindByName(t *testing.T) {
	defer resetRegistry()
	resetRegistry()

	v := testVFS("alpha")
	require.Equal(t, OK, Register(v, false))

	assert.Same(t, v, Find("alpha"))
	assert.Nil(t, Find("beta"))
}

func TestRegister_RejectsInvalidDescriptors(t *testing.T) {
	defer resetRegistry()
	resetRegistry()

	assert.Equal(t, Misuse, Register(nil, false))

	noName := testVFS("x")
	noName.Name = nil
	assert.Equal(t, Misuse, Register(noName, false))

	emptyName := testVFS("")
	assert.Equal(t, Misuse, Register(emptyName, false))

	noOpen := testVFS("y")
	noOpen.Open = nil
	assert.Equal(t, Misuse, Register(noOpen, false))
}

func TestRegister_NameCollision(t *testing.T) {
	defer resetRegistry()
	resetRegistry()

	first := testVFS("shared-name")
	require.Equal(t, OK, Register(first, false))

	second := testVFS("shared-name")
	assert.Equal(t, Misuse, Register(second, false))

	// The first registration survives.
	assert.Same(t, first, Find("shared-name"))
}

func TestRegister_DefaultSelection(t *testing.T) {
	defer resetRegistry()
	resetRegistry()

	assert.Nil(t, Default())

	first := testVFS("first")
	require.Equal(t, OK, Register(first, false))
	assert.Same(t, first, Default(), "first registration becomes default implicitly")

	second := testVFS("second")
	require.Equal(t, OK, Register(second, false))
	assert.Same(t, first, Default(), "later registration without makeDefault leaves default alone")

	third := testVFS("third")
	require.Equal(t, OK, Register(third, true))
	assert.Same(t, third, Default(), "makeDefault promotes the new registration")
}
