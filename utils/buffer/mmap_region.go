package buffer

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// MmapRegion is an anonymous shared memory mapping with a reference count.
// It is created once per buffer and shared between the views handed out to users.
type MmapRegion struct {
	data []byte
	refs atomic.Int32
}

// NewAnonRegion maps size bytes of anonymous shared read-write memory.
// The size is rounded up to the page size. Initial reference count is 1.
func NewAnonRegion(size int) (*MmapRegion, error) {
	pageSize := unix.Getpagesize()
	aligned := (size + pageSize - 1) &^ (pageSize - 1)

	data, err := unix.Mmap(-1, 0, aligned, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	r := &MmapRegion{data: data[:size]}
	r.refs.Store(1)
	return r, nil
}

// View returns a PooledBuffer over a subrange of the region.
// Each view holds a reference that is dropped on Release.
func (r *MmapRegion) View(offset, length int) PooledBuffer {
	if offset < 0 || length < 0 || offset+length > len(r.data) {
		panic("MmapRegion.View: out of bounds")
	}

	r.refs.Add(1)

	return &mmapViewBuffer{
		region: r,
		buf:    r.data[offset : offset+length : offset+length],
	}
}

// Release drops the owner reference; the memory is unmapped with the last one.
func (r *MmapRegion) Release() {
	if r.refs.Add(-1) == 0 {
		if r.data != nil {
			_ = unix.Munmap(r.data[:cap(r.data)])
			r.data = nil
		}
	}
}

type mmapViewBuffer struct {
	region *MmapRegion
	buf    []byte
}

func (b *mmapViewBuffer) Data() []byte {
	return b.buf
}

func (b *mmapViewBuffer) Len() int {
	return len(b.buf)
}

func (b *mmapViewBuffer) Cap() int {
	return cap(b.buf)
}

func (b *mmapViewBuffer) Release() {
	if b.region != nil {
		b.region.Release()
		b.region = nil
		b.buf = nil
	}
}
