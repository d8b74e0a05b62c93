// Package vfs adapts a user-supplied storage backend into a virtual
// filesystem the host database engine can use.
//
// A backend is a plain Go object implementing the Backend capability
// interface (and any of the optional capability interfaces next to it).
// Register wraps it in shared, process-lifetime state, builds the
// callback table with one trampoline per supported capability, and
// installs the descriptor in the engine's global registry:
//
//	err := vfs.Register("memfs", true, memfs.New())
//
// After registration the engine calls back through the table at
// arbitrary times on arbitrary threads. The trampolines recover the
// shared state (or the per-file handle extension) from the opaque
// pointers the engine passes, delegate to the backend, and translate
// results into the engine's numeric status vocabulary. Rich error
// detail is recorded in a per-filesystem last-error slot, readable by
// the engine through the get-last-error callback and by embedders via
// LastError.
package vfs
