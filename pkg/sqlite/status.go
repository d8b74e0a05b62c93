package sqlite

// Status is the numeric result vocabulary of the engine's callback ABI.
//
// Every callback returns a Status; richer error detail never crosses the
// boundary directly (adapters record it in their own diagnostic channel).
// The values match the engine's published C constants so that a descriptor
// built by this package is indistinguishable from one built against the
// C headers.
type Status int

const (
	// OK indicates the operation completed successfully.
	OK Status = 0

	// Error is the generic failure code used when no more specific
	// status applies.
	Error Status = 1

	// Perm indicates the requested access mode could not be provided.
	Perm Status = 3

	// Busy indicates a locking conflict with another connection.
	Busy Status = 5

	// NoMem indicates an allocation failure.
	NoMem Status = 7

	// ReadOnly indicates an attempt to write to read-only storage.
	ReadOnly Status = 8

	// IOErr is the generic I/O failure code. Extended codes below
	// refine it with the failing operation in the high bits.
	IOErr Status = 10

	// NotFound is returned for unknown file-control opcodes and for
	// callback slots that a filesystem does not provide.
	NotFound Status = 12

	// CantOpen indicates a file could not be opened.
	CantOpen Status = 14

	// Misuse indicates an API contract violation, including an attempt
	// to register a filesystem under a name that is already taken.
	Misuse Status = 21
)

// Extended I/O error codes: the base IOErr code with the failing
// operation encoded in the high byte.
const (
	IOErrRead      = IOErr | 1<<8
	IOErrShortRead = IOErr | 2<<8
	IOErrWrite     = IOErr | 3<<8
	IOErrFsync     = IOErr | 4<<8
	IOErrTruncate  = IOErr | 6<<8
	IOErrFstat     = IOErr | 7<<8
	IOErrUnlock    = IOErr | 8<<8
	IOErrRdlock    = IOErr | 9<<8
	IOErrDelete    = IOErr | 10<<8
	IOErrLock      = IOErr | 15<<8
	IOErrClose     = IOErr | 16<<8
)

// Primary returns the base status with any extended operation bits
// stripped, e.g. IOErrShortRead.Primary() == IOErr.
func (s Status) Primary() Status {
	return s & 0xff
}

// String returns the engine's symbolic name for the status.
func (s Status) String() string {
	switch s.Primary() {
	case OK:
		return "OK"
	case Error:
		return "ERROR"
	case Perm:
		return "PERM"
	case Busy:
		return "BUSY"
	case NoMem:
		return "NOMEM"
	case ReadOnly:
		return "READONLY"
	case IOErr:
		return "IOERR"
	case NotFound:
		return "NOTFOUND"
	case CantOpen:
		return "CANTOPEN"
	case Misuse:
		return "MISUSE"
	default:
		return "UNKNOWN"
	}
}

// OpenFlag is the bit set passed to the open callback describing how and
// why a file is being opened. Values match the engine's C constants.
type OpenFlag int

const (
	OpenReadOnly      OpenFlag = 0x00000001
	OpenReadWrite     OpenFlag = 0x00000002
	OpenCreate        OpenFlag = 0x00000004
	OpenDeleteOnClose OpenFlag = 0x00000008
	OpenExclusive     OpenFlag = 0x00000010
	OpenMainDB        OpenFlag = 0x00000100
	OpenTempDB        OpenFlag = 0x00000200
	OpenTransientDB   OpenFlag = 0x00000400
	OpenMainJournal   OpenFlag = 0x00000800
	OpenTempJournal   OpenFlag = 0x00001000
	OpenSubJournal    OpenFlag = 0x00002000
	OpenSuperJournal  OpenFlag = 0x00004000
	OpenWAL           OpenFlag = 0x00080000
)

// AccessFlag selects what the access callback should test for.
type AccessFlag int

const (
	AccessExists    AccessFlag = 0
	AccessReadWrite AccessFlag = 1
	AccessRead      AccessFlag = 2
)

// SyncFlag controls the durability level requested from the sync callback.
type SyncFlag int

const (
	SyncNormal   SyncFlag = 0x00002
	SyncFull     SyncFlag = 0x00003
	SyncDataOnly SyncFlag = 0x00010
)

// LockLevel is the five-tier file locking ladder. Transitions always move
// through the tiers in order; the engine never skips from None straight
// to Exclusive on the way up.
type LockLevel int

const (
	LockNone LockLevel = iota
	LockShared
	LockReserved
	LockPending
	LockExclusive
)

// String returns the symbolic name of the lock level.
func (l LockLevel) String() string {
	switch l {
	case LockNone:
		return "NONE"
	case LockShared:
		return "SHARED"
	case LockReserved:
		return "RESERVED"
	case LockPending:
		return "PENDING"
	case LockExclusive:
		return "EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// DeviceCharacteristics is the bit set a file reports about its backing
// device via the device-characteristics callback.
type DeviceCharacteristics int

const (
	IOCapAtomic              DeviceCharacteristics = 0x00000001
	IOCapAtomic512           DeviceCharacteristics = 0x00000002
	IOCapAtomic1K            DeviceCharacteristics = 0x00000004
	IOCapAtomic4K            DeviceCharacteristics = 0x00000010
	IOCapSafeAppend          DeviceCharacteristics = 0x00000200
	IOCapSequential          DeviceCharacteristics = 0x00000400
	IOCapUndeletableWhenOpen DeviceCharacteristics = 0x00000800
	IOCapPowersafeOverwrite  DeviceCharacteristics = 0x00001000
	IOCapImmutable           DeviceCharacteristics = 0x00002000
)
