package sqlite

import "unsafe"

// CString converts s into a NUL-terminated byte sequence and returns a
// pointer to its first byte. The backing allocation is an ordinary Go
// slice; callers that hand the pointer to the registry must keep it
// reachable for process lifetime (the registry does this for descriptor
// names by holding the descriptor itself).
//
// s must not contain an embedded NUL byte; callers validate before
// converting.
func CString(s string) *byte {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return &buf[0]
}

// GoString reads the NUL-terminated sequence at p back into a Go string.
// Returns "" for a nil pointer.
func GoString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
