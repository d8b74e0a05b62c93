package sqlite

import "sync"

// registry is the process-global filesystem registry: the engine-side
// list every connection consults when resolving a filesystem by name.
//
// Thread Safety:
// All registry operations take the registry mutex. Callback invocations
// do not: once a descriptor is registered it is immutable and may be
// called into from any number of threads concurrently.
var registry struct {
	mu   sync.Mutex
	list []*VFS
	def  *VFS
}

// Register installs vfs in the global registry.
//
// The registry takes permanent ownership of the descriptor: there is no
// unregister call, and the descriptor (including its Name bytes and
// AppData object) must remain valid for the rest of the process.
//
// A nil descriptor, a nil Name, or a nil Open slot is rejected with
// Misuse. Registering a name that is already taken is a collision and
// also reports Misuse; the existing registration is left untouched and
// remains usable.
//
// When makeDefault is true the new filesystem also becomes the process
// default, returned by Default and used when a connection names no
// filesystem explicitly. The first registration becomes the default
// regardless.
func Register(vfs *VFS, makeDefault bool) Status {
	if vfs == nil || vfs.Name == nil || vfs.Open == nil {
		return Misuse
	}

	name := GoString(vfs.Name)
	if name == "" {
		return Misuse
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	for _, existing := range registry.list {
		if GoString(existing.Name) == name {
			return Misuse
		}
	}

	registry.list = append(registry.list, vfs)
	if makeDefault || registry.def == nil {
		registry.def = vfs
	}

	return OK
}

// Find returns the filesystem registered under name, or nil if no such
// registration exists.
func Find(name string) *VFS {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for _, vfs := range registry.list {
		if GoString(vfs.Name) == name {
			return vfs
		}
	}
	return nil
}

// Default returns the process-default filesystem, or nil if nothing has
// been registered yet.
func Default() *VFS {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.def
}

// resetRegistry empties the registry. Tests only: real engine processes
// never discard registrations.
func resetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.list = nil
	registry.def = nil
}
