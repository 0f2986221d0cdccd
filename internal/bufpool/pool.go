package bufpool

import (
	"sync"
)

// Pool hands out byte buffers of a fixed size and recycles them to keep
// allocation pressure down during copy loops.
type Pool struct {
	pool    sync.Pool
	bufSize int
}

// New creates a pool whose Get always returns buffers of exactly bufSize bytes.
func New(bufSize int) *Pool {
	if bufSize <= 0 {
		panic("bufSize must be positive")
	}
	return &Pool{
		bufSize: bufSize,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, bufSize)
			},
		},
	}
}

// Get returns a buffer from the pool, allocating a fresh one if the pool is empty.
func (p *Pool) Get() []byte {
	buf := p.pool.Get().([]byte)
	if cap(buf) < p.bufSize {
		return make([]byte, p.bufSize)
	}
	return buf[:p.bufSize]
}

// Put returns a buffer obtained from Get. Undersized buffers are discarded.
func (p *Pool) Put(buf []byte) {
	if cap(buf) < p.bufSize {
		return
	}
	buf = buf[:cap(buf)]
	p.pool.Put(buf)
}

// BufSize returns the size of buffers in this pool.
func (p *Pool) BufSize() int {
	return p.bufSize
}
