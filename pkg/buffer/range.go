// Package buffer provides the byte views and scratch buffers that values
// travel through between the store and its caller.
//
// A ByteRange never owns its memory. Its Origin says whose lifetime rules
// apply: StoreOwned ranges die with the transaction that produced them,
// HostOwned ranges follow the caller's allocation.
package buffer

import "fmt"

// Origin tags the owner of the memory behind a ByteRange.
type Origin uint8

const (
	// StoreOwned memory is valid until the producing transaction commits or aborts.
	StoreOwned Origin = iota + 1
	// HostOwned memory belongs to the caller (registered scratch, decompress targets).
	HostOwned
)

func (o Origin) String() string {
	switch o {
	case StoreOwned:
		return "store"
	case HostOwned:
		return "host"
	default:
		return "unknown"
	}
}

// ByteRange is a non-owning view into store or host memory
type ByteRange struct {
	data   []byte
	origin Origin
}

// StoreRange wraps memory handed out by the store.
func StoreRange(b []byte) ByteRange {
	return ByteRange{data: b, origin: StoreOwned}
}

// HostRange wraps caller-owned memory.
func HostRange(b []byte) ByteRange {
	return ByteRange{data: b, origin: HostOwned}
}

// Len returns the number of readable bytes
func (r ByteRange) Len() int {
	return len(r.data)
}

// Bytes returns the underlying slice. The caller must honour the range's
// lifetime; use Clone to keep the bytes past it.
func (r ByteRange) Bytes() []byte {
	return r.data
}

// Origin reports who owns the memory.
func (r ByteRange) Origin() Origin {
	return r.origin
}

// Empty reports whether the range has no bytes.
func (r ByteRange) Empty() bool {
	return len(r.data) == 0
}

// At returns the byte at offset i.
func (r ByteRange) At(i int) byte {
	return r.data[i]
}

// Advance returns the range with its first n bytes removed. It panics when n
// exceeds the length, the same way slicing would.
func (r ByteRange) Advance(n int) ByteRange {
	if n > len(r.data) {
		panic(fmt.Sprintf("buffer: advance %d past length %d", n, len(r.data)))
	}
	return ByteRange{data: r.data[n:], origin: r.origin}
}

// Clone copies the bytes into fresh host memory.
func (r ByteRange) Clone() []byte {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}

// SameMemory reports whether r starts at the first byte of b.
func (r ByteRange) SameMemory(b []byte) bool {
	if len(r.data) == 0 || len(b) == 0 {
		return false
	}
	return &r.data[0] == &b[0]
}
