package wire

import "bytes"

// Target is the 8-byte fixed-width tag selecting the application handler.
type Target [TargetSize]byte

// NewTarget zero-pads name (truncated to 8 bytes) into a Target.
func NewTarget(name string) Target {
	var t Target
	copy(t[:], name)
	return t
}

// String renders the target trimmed of trailing NUL bytes, for logging.
func (t Target) String() string {
	return string(bytes.TrimRight(t[:], "\x00"))
}

// Bytes returns the full 8-byte tag for exact wire comparison.
func (t Target) Bytes() []byte { return t[:] }

// CString returns a 9-byte NUL-terminated copy for callers that want a
// conventionally-terminated buffer. The wire field itself is exactly 8
// bytes and carries no terminator.
func (t Target) CString() [TargetSize + 1]byte {
	var out [TargetSize + 1]byte
	copy(out[:TargetSize], t[:])
	return out
}

// Equal reports whether two targets are byte-identical over the full 8 bytes.
func (t Target) Equal(o Target) bool { return t == o }
