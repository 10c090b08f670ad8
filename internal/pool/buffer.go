package pool

import (
	"io"
	"sync"
)

const (
	// SmallBufferSize fits a content sniff (4KB)
	SmallBufferSize = 4 * 1024
	// CopyBufferSize is used when streaming object bodies (64KB)
	CopyBufferSize = 64 * 1024
)

// BufferPool manages reusable buffers of two size classes.
type BufferPool struct {
	small *sync.Pool
	copy  *sync.Pool
}

// NewBufferPool creates a new buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: &sync.Pool{
			New: func() any {
				buf := make([]byte, SmallBufferSize)
				return &buf
			},
		},
		copy: &sync.Pool{
			New: func() any {
				buf := make([]byte, CopyBufferSize)
				return &buf
			},
		},
	}
}

// Get returns a buffer of length size. Sizes above CopyBufferSize are
// allocated and never pooled. Return it with Put.
func (bp *BufferPool) Get(size int) []byte {
	switch {
	case size <= SmallBufferSize:
		return (*bp.small.Get().(*[]byte))[:size]
	case size <= CopyBufferSize:
		return (*bp.copy.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer obtained from Get. The buffer must not be used after.
func (bp *BufferPool) Put(buf []byte) {
	buf = buf[:cap(buf)]
	switch cap(buf) {
	case SmallBufferSize:
		bp.small.Put(&buf)
	case CopyBufferSize:
		bp.copy.Put(&buf)
	}
}

// Copy copies src to dst through a pooled buffer.
func (bp *BufferPool) Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := bp.Get(CopyBufferSize)
	defer bp.Put(buf)
	return io.CopyBuffer(dst, src, buf)
}

var globalBufferPool = NewBufferPool()

// Get returns a buffer of length size from the global pool.
func Get(size int) []byte {
	return globalBufferPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalBufferPool.Put(buf)
}

// Copy copies src to dst through a buffer from the global pool.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	return globalBufferPool.Copy(dst, src)
}
