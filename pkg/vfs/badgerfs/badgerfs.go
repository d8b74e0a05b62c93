// Package badgerfs implements a persistent storage backend on BadgerDB.
//
// File contents are stored as fixed-size pages, one key per page, plus a
// small metadata entry per file carrying the logical size. Page
// granularity matches the engine's own access pattern (page-sized reads
// and writes at page-aligned offsets), so most operations touch exactly
// one key.
//
// Locking is single-process: Badger has no byte-range locks, so the
// backend arbitrates the engine's five-tier ladder in memory, which is
// correct for all connections sharing this backend instance.
package badgerfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
	"github.com/plugvfs/plugvfs/pkg/vfs"
)

// DefaultPageSize is the page granularity used when Config.PageSize is
// zero. It matches the engine's default database page size.
const DefaultPageSize = 4096

// Config configures a Badger-backed storage backend.
type Config struct {
	// DBPath is the directory where BadgerDB stores its files.
	// Ignored when InMemory is set.
	DBPath string

	// InMemory runs Badger without persistence. Useful for tests.
	InMemory bool

	// PageSize is the storage page granularity in bytes.
	// Defaults to DefaultPageSize.
	PageSize int

	// SyncWrites makes every commit durable before it returns. When
	// false, durability is deferred to the sync callback.
	SyncWrites bool

	// BadgerOptions overrides the Badger options entirely. If nil,
	// defaults tuned for page-sized values are used.
	BadgerOptions *badger.Options
}

// BadgerFS is a Badger-backed storage backend.
type BadgerFS struct {
	db       *badger.DB
	pageSize int

	// locks arbitrates the lock ladder per file name.
	mu    sync.Mutex
	locks map[string]*fileLock
}

// fileLock is the in-memory lock state of one file.
type fileLock struct {
	shared   int
	reserved bool
	pending  bool
}

// New opens (or creates) a Badger-backed storage backend.
func New(config Config) (*BadgerFS, error) {
	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithInMemory(config.InMemory)
		opts = opts.WithSyncWrites(config.SyncWrites)
		// Page-sized values sit comfortably in the LSM tree; quiet
		// Badger's default info logging.
		opts = opts.WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &BadgerFS{
		db:       db,
		pageSize: pageSize,
		locks:    make(map[string]*fileLock),
	}, nil
}

// Close releases the underlying database. Callers only use this when
// the backend was never registered; a registered backend lives for the
// rest of the process.
func (b *BadgerFS) Close() error {
	return b.db.Close()
}

// Key schema: one metadata entry and one entry per page.
//
//	m:<len><name>       -> 8-byte big-endian logical size
//	p:<len><name><page> -> page payload (up to pageSize bytes)
//
// len is the 4-byte big-endian name length and page the 8-byte
// big-endian page index. The fixed-width length makes the schema
// injective whatever bytes a name contains: no file's keys can sit
// inside another file's keyspace, so the prefix scan in Delete only
// ever sees its own pages.
func nameKey(kind byte, name string) []byte {
	key := make([]byte, 0, len(name)+6)
	key = append(key, kind, ':')
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(name)))
	key = append(key, n[:]...)
	return append(key, name...)
}

func metaKey(name string) []byte {
	return nameKey('m', name)
}

func pageKey(name string, page int64) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(page))
	return append(nameKey('p', name), idx[:]...)
}

// Open opens the named file, creating its metadata entry when the
// create flag is present.
func (b *BadgerFS) Open(name string, flags sqlite.OpenFlag) (vfs.File, sqlite.OpenFlag, error) {
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			if flags&sqlite.OpenCreate == 0 {
				return fmt.Errorf("%q: %w", name, fs.ErrNotExist)
			}
			var size [8]byte
			return txn.Set(metaKey(name), size[:])
		}
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return &badgerFile{fs: b, name: name}, flags, nil
}

// Delete removes the file's metadata and pages.
func (b *BadgerFS) Delete(name string, syncDir bool) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%q: %w", name, fs.ErrNotExist)
			}
			return err
		}
		if err := txn.Delete(metaKey(name)); err != nil {
			return err
		}

		it := txn.NewIterator(badger.IteratorOptions{Prefix: nameKey('p', name)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if syncDir {
		return b.db.Sync()
	}
	return nil
}

// Access reports whether the named file exists.
func (b *BadgerFS) Access(name string, flags sqlite.AccessFlag) (bool, error) {
	exists := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err == nil {
			exists = true
		}
		return err
	})
	return exists, err
}

// ============================================================================
// File handle
// ============================================================================

type badgerFile struct {
	fs    *BadgerFS
	name  string
	level sqlite.LockLevel
}

func (f *badgerFile) Close() error {
	if f.level > sqlite.LockNone {
		_ = f.Unlock(sqlite.LockNone)
	}
	return nil
}

// size reads the logical file size inside txn.
func (f *badgerFile) size(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(metaKey(f.name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%q: %w", f.name, fs.ErrNotExist)
	}
	if err != nil {
		return 0, err
	}
	var size int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("%q: corrupt size entry (%d bytes)", f.name, len(val))
		}
		size = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return size, err
}

func (f *badgerFile) setSize(txn *badger.Txn, size int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(size))
	return txn.Set(metaKey(f.name), buf[:])
}

// page reads one page into a full-size buffer; missing pages read as
// zeros (sparse files).
func (f *badgerFile) page(txn *badger.Txn, page int64) ([]byte, error) {
	buf := make([]byte, f.fs.pageSize)
	item, err := txn.Get(pageKey(f.name, page))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return buf, nil
	}
	if err != nil {
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		copy(buf, val)
		return nil
	})
	return buf, err
}

func (f *badgerFile) ReadAt(p []byte, off int64) (int, error) {
	read := 0
	err := f.fs.db.View(func(txn *badger.Txn) error {
		size, err := f.size(txn)
		if err != nil {
			return err
		}
		if off >= size {
			return io.EOF
		}

		avail := size - off
		want := int64(len(p))
		if want > avail {
			want = avail
		}

		pageSize := int64(f.fs.pageSize)
		for read < int(want) {
			pos := off + int64(read)
			pageData, err := f.page(txn, pos/pageSize)
			if err != nil {
				return err
			}
			read += copy(p[read:int(want)], pageData[pos%pageSize:])
		}
		if int64(read) < int64(len(p)) {
			return io.EOF
		}
		return nil
	})
	return read, err
}

func (f *badgerFile) WriteAt(p []byte, off int64) (int, error) {
	written := 0
	err := f.fs.db.Update(func(txn *badger.Txn) error {
		size, err := f.size(txn)
		if err != nil {
			return err
		}

		pageSize := int64(f.fs.pageSize)
		written = 0
		for written < len(p) {
			pos := off + int64(written)
			idx := pos / pageSize
			pageOff := pos % pageSize

			var pageData []byte
			chunk := int(pageSize - pageOff)
			if chunk > len(p)-written {
				chunk = len(p) - written
			}
			if pageOff == 0 && chunk == int(pageSize) {
				// Full-page overwrite, no read needed.
				pageData = make([]byte, pageSize)
			} else {
				pageData, err = f.page(txn, idx)
				if err != nil {
					return err
				}
			}
			copy(pageData[pageOff:], p[written:written+chunk])
			if err := txn.Set(pageKey(f.name, idx), pageData); err != nil {
				return err
			}
			written += chunk
		}

		if end := off + int64(len(p)); end > size {
			return f.setSize(txn, end)
		}
		return nil
	})
	if err != nil {
		written = 0
	}
	return written, err
}

func (f *badgerFile) Truncate(size int64) error {
	return f.fs.db.Update(func(txn *badger.Txn) error {
		current, err := f.size(txn)
		if err != nil {
			return err
		}
		if size >= current {
			// Growth is sparse: missing pages already read as zeros.
			return f.setSize(txn, size)
		}

		pageSize := int64(f.fs.pageSize)
		firstDead := (size + pageSize - 1) / pageSize
		lastLive := current / pageSize
		for idx := firstDead; idx <= lastLive; idx++ {
			if err := txn.Delete(pageKey(f.name, idx)); err != nil {
				return err
			}
		}

		// Zero the tail of the last surviving partial page so growth
		// after shrink reads as zeros.
		if tail := size % pageSize; tail != 0 {
			pageData, err := f.page(txn, size/pageSize)
			if err != nil {
				return err
			}
			for i := tail; i < pageSize; i++ {
				pageData[i] = 0
			}
			if err := txn.Set(pageKey(f.name, size/pageSize), pageData); err != nil {
				return err
			}
		}
		return f.setSize(txn, size)
	})
}

func (f *badgerFile) Sync(flags sqlite.SyncFlag) error {
	if f.fs.db.Opts().InMemory {
		return nil
	}
	return f.fs.db.Sync()
}

func (f *badgerFile) Size() (int64, error) {
	var size int64
	err := f.fs.db.View(func(txn *badger.Txn) error {
		var err error
		size, err = f.size(txn)
		return err
	})
	return size, err
}

func (f *badgerFile) Lock(level sqlite.LockLevel) error {
	if level <= f.level {
		return nil
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	l := f.fs.locks[f.name]
	if l == nil {
		l = &fileLock{}
		f.fs.locks[f.name] = l
	}

	switch level {
	case sqlite.LockShared:
		if l.pending {
			return vfs.ErrBusy
		}
		l.shared++
	case sqlite.LockReserved:
		if l.reserved {
			return vfs.ErrBusy
		}
		if f.level < sqlite.LockShared {
			return fmt.Errorf("badgerfs: reserved lock requires shared: %w", vfs.ErrBusy)
		}
		l.reserved = true
	case sqlite.LockPending, sqlite.LockExclusive:
		// A handle that never acquired shared never joined the shared
		// count, so letting it climb higher would desynchronize the
		// ladder on the way back down.
		if f.level < sqlite.LockShared {
			return fmt.Errorf("badgerfs: lock upgrade requires shared: %w", vfs.ErrBusy)
		}
		if l.reserved && f.level < sqlite.LockReserved {
			return vfs.ErrBusy
		}
		if l.pending && f.level < sqlite.LockPending {
			return vfs.ErrBusy
		}
		if level == sqlite.LockExclusive {
			others := l.shared
			if f.level >= sqlite.LockShared {
				others--
			}
			if others > 0 {
				return vfs.ErrBusy
			}
		}
		l.reserved = true
		l.pending = true
	}
	f.level = level
	return nil
}

func (f *badgerFile) Unlock(level sqlite.LockLevel) error {
	if level >= f.level {
		return nil
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	l := f.fs.locks[f.name]
	if l == nil {
		f.level = level
		return nil
	}

	if f.level >= sqlite.LockReserved {
		l.reserved = false
	}
	if f.level >= sqlite.LockPending {
		l.pending = false
	}
	if level == sqlite.LockNone && f.level >= sqlite.LockShared {
		l.shared--
	}
	f.level = level
	return nil
}

func (f *badgerFile) CheckReservedLock() (bool, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	l := f.fs.locks[f.name]
	return l != nil && (l.reserved || l.pending), nil
}

func (f *badgerFile) SectorSize() int {
	return f.fs.pageSize
}

func (f *badgerFile) DeviceCharacteristics() sqlite.DeviceCharacteristics {
	// Every write commits a whole transaction: page writes are atomic
	// and a torn write cannot reach disk.
	return sqlite.IOCapAtomic | sqlite.IOCapPowersafeOverwrite
}
