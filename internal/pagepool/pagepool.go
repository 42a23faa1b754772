// Package pagepool provides pooled 8192-byte page buffers to avoid hot-path
// allocations in the redo core. Every buffer the redo core produces or
// consumes is exactly one Postgres page, so unlike a general I/O buffer
// pool this needs only a single size class.
package pagepool

import "sync"

const pageSize = 8192

var pool = sync.Pool{
	New: func() any {
		b := make([]byte, pageSize)
		return &b
	},
}

// Get returns a pooled page-sized buffer. Its contents are not zeroed;
// callers that need a clean page must zero it themselves. Callers must call
// Put when done.
func Get() []byte {
	return *pool.Get().(*[]byte)
}

// Put returns a buffer obtained from Get back to the pool. Buffers not
// exactly pageSize bytes are discarded rather than pooled.
func Put(buf []byte) {
	if cap(buf) != pageSize {
		return
	}
	buf = buf[:pageSize]
	pool.Put(&buf)
}
