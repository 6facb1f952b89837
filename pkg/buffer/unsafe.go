package buffer

import (
	"sync"

	"github.com/segmentio/ksuid"
)

// Unsafe is the scratch region registered by one execution context for
// zero-copy reads. It is not safe for concurrent use; each context holds its own.
type Unsafe struct {
	id  ksuid.KSUID
	buf []byte
}

// NewUnsafe creates a scope with buf registered.
func NewUnsafe(buf []byte) *Unsafe {
	return &Unsafe{id: ksuid.New(), buf: buf}
}

// Register replaces the active buffer. The previous buffer is forgotten,
// not freed; its owner remains responsible for it.
func (u *Unsafe) Register(buf []byte) {
	u.buf = buf
}

// ID identifies the scope in logs.
func (u *Unsafe) ID() ksuid.KSUID {
	return u.id
}

// Capacity returns the size of the registered region
func (u *Unsafe) Capacity() int {
	return len(u.buf)
}

// Pointer returns the registered region.
func (u *Unsafe) Pointer() []byte {
	return u.buf
}

// CopyFrom copies src to the start of the registered region. When src does
// not fit it returns false and the region is left untouched.
func (u *Unsafe) CopyFrom(src ByteRange) (ByteRange, bool) {
	n := src.Len()
	if n > len(u.buf) {
		return ByteRange{}, false
	}
	copy(u.buf, src.data)
	return HostRange(u.buf[:n]), true
}

// Pool hands out one Unsafe per execution context so registrations are
// never shared between goroutines.
type Pool struct {
	size int
	pool sync.Pool
}

// NewPool creates a pool of scopes with size-byte buffers.
func NewPool(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		return NewUnsafe(make([]byte, p.size))
	}
	return p
}

// Size returns the buffer size of pooled scopes.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a scope for exclusive use until Put.
func (p *Pool) Get() *Unsafe {
	u := p.pool.Get().(*Unsafe)
	if u.Capacity() != p.size {
		// re-registered with a foreign buffer by its last user
		u.Register(make([]byte, p.size))
	}
	return u
}

// Put returns a scope to the pool.
func (p *Pool) Put(u *Unsafe) {
	p.pool.Put(u)
}
