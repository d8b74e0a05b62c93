package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback sqlite.Status
		want     sqlite.Status
	}{
		{
			name:     "busy sentinel",
			err:      ErrBusy,
			fallback: sqlite.IOErrLock,
			want:     sqlite.Busy,
		},
		{
			name:     "wrapped busy sentinel",
			err:      fmt.Errorf("lock ladder: %w", ErrBusy),
			fallback: sqlite.IOErrLock,
			want:     sqlite.Busy,
		},
		{
			name:     "read-only sentinel",
			err:      ErrReadOnly,
			fallback: sqlite.IOErrWrite,
			want:     sqlite.ReadOnly,
		},
		{
			name:     "not-supported sentinel",
			err:      ErrNotSupported,
			fallback: sqlite.Error,
			want:     sqlite.NotFound,
		},
		{
			name:     "permission error",
			err:      fmt.Errorf("open: %w", fs.ErrPermission),
			fallback: sqlite.CantOpen,
			want:     sqlite.Perm,
		},
		{
			name:     "status override wins",
			err:      &StatusError{Code: sqlite.NoMem, Err: errors.New("allocation failed")},
			fallback: sqlite.IOErrRead,
			want:     sqlite.NoMem,
		},
		{
			name:     "unrecognized error uses fallback",
			err:      errors.New("disk on fire"),
			fallback: sqlite.IOErrRead,
			want:     sqlite.IOErrRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFromError(tt.err, tt.fallback))
		})
	}
}

func TestStatusError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &StatusError{Code: sqlite.Busy, Err: fmt.Errorf("wrapped: %w", cause)}
	assert.True(t, errors.Is(err, cause))
}
