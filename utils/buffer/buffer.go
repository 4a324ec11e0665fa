package buffer

import (
	"sync"
)

// Heap buffers come from fixed size classes so a recycled buffer never grows
// and its memory never moves. Larger requests bypass the pools.
var classes = [...]int{
	4 * 1024,         // one page
	64 * 1024,        // one large page
	1024 * 1024,      // small frames
	4 * 1024 * 1024,  // 1080p NV12
	16 * 1024 * 1024, // 4K NV12
}

var pools [len(classes)]sync.Pool

func classOf(size int) int {
	for i, c := range classes {
		if size <= c {
			return i
		}
	}
	return -1
}

// Get returns zeroed heap memory of length size. Segment addresses taken from
// Data stay valid until Release.
func Get(size int) PooledBuffer {
	class := classOf(size)
	if class < 0 {
		return &heapBuffer{buf: make([]byte, size), class: class}
	}

	b, ok := pools[class].Get().(*heapBuffer)
	if !ok {
		b = &heapBuffer{buf: make([]byte, 0, classes[class]), class: class}
	}
	b.buf = b.buf[:size]
	clear(b.buf)
	return b
}

type heapBuffer struct {
	buf   []byte
	class int
}

func (b *heapBuffer) Data() []byte {
	return b.buf
}

func (b *heapBuffer) Len() int {
	return len(b.buf)
}

func (b *heapBuffer) Cap() int {
	return cap(b.buf)
}

func (b *heapBuffer) Release() {
	if b.buf == nil {
		return
	}
	if b.class < 0 {
		b.buf = nil
		return
	}
	b.buf = b.buf[:0]
	pools[b.class].Put(b)
}
