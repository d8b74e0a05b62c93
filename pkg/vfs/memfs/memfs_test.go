package memfs

import (
	"testing"

	"github.com/plugvfs/plugvfs/pkg/vfs"
	"github.com/plugvfs/plugvfs/pkg/vfs/vfstest"
)

// TestMemFS runs the complete backend conformance suite against the
// in-memory implementation.
func TestMemFS(t *testing.T) {
	suite := &vfstest.Suite{
		NewBackend: func(t *testing.T) vfs.Backend {
			return New()
		},
	}

	suite.Run(t)
}
