// Package sqlite is the engine-side plugin contract: the virtual
// filesystem descriptor, the per-file method table, the numeric status
// vocabulary, and the process-global registry that connections resolve
// filesystems from.
//
// The package models the host engine's C ABI faithfully rather than
// idealizing it away:
//
//   - Callback slots are nilable function values; a missing slot means
//     the filesystem does not support that operation.
//   - File handles are raw, engine-allocated memory of exactly the size
//     a descriptor advertises, with no zeroing guarantee and no layout
//     known to the engine beyond the leading File header.
//   - Registered descriptors, their name bytes, and their AppData
//     objects live for the rest of the process; there is no unregister
//     path.
//
// Adapters (see pkg/vfs) build descriptors against this contract; the
// Open driver in this package invokes them exactly the way the engine
// would, which is what the end-to-end tests and the embedding CLI use.
package sqlite
