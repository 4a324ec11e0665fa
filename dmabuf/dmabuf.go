// Package dmabuf exports shared buffers that several devices map for I/O.
//
// Each Buffer owns backing memory and the mapping shared state. Devices reach the
// buffer through an Attachment, whose Map and Unmap go through the mapping cache.
// Dropping the last reference tears down every cached translation before the
// backing memory is released.
package dmabuf

import (
	"fmt"
	"sync/atomic"

	"github.com/ugparu/iomap/mapping"
	"github.com/ugparu/iomap/scatterlist"
	"github.com/ugparu/iomap/utils/buffer"
	"github.com/ugparu/iomap/utils/logger"
)

const defaultSegmentSize = 4096

type options struct {
	name    string
	segSize int
	shared  bool
}

// Option configures a Buffer.
type Option func(*options)

// WithName sets the name used in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithSegmentSize sets the maximum length of one descriptor list entry.
func WithSegmentSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.segSize = size
		}
	}
}

// WithSharedMemory backs the buffer with an anonymous shared mapping instead of pooled heap memory.
func WithSharedMemory(shared bool) Option {
	return func(o *options) {
		o.shared = shared
	}
}

// Buffer is a reference-counted exported buffer.
type Buffer struct {
	name    string
	segSize int
	backing buffer.PooledBuffer
	shared  *mapping.Buffer
	refs    atomic.Int32
}

// New allocates a buffer of size bytes with one reference held by the caller.
func New(size int, opts ...Option) (*Buffer, error) {
	if size <= 0 {
		return nil, &InvalidSizeError{Size: size}
	}

	o := options{segSize: defaultSegmentSize}
	for _, opt := range opts {
		opt(&o)
	}

	var backing buffer.PooledBuffer
	if o.shared {
		region, err := buffer.NewAnonRegion(size)
		if err != nil {
			return nil, fmt.Errorf("allocate shared memory: %w", err)
		}
		backing = region.View(0, size)
		region.Release()
	} else {
		backing = buffer.Get(size)
	}

	b := &Buffer{
		name:    o.name,
		segSize: o.segSize,
		backing: backing,
		shared:  mapping.NewBuffer(),
	}
	if b.name == "" {
		b.name = b.shared.String()
	}
	b.refs.Store(1)
	logger.Tracef(b, "allocated %d bytes", size)
	return b, nil
}

func (b *Buffer) String() string {
	return fmt.Sprintf("dmabuf(%s)", b.name)
}

// Data returns the backing memory.
func (b *Buffer) Data() []byte {
	return b.backing.Data()
}

// Size returns the buffer length in bytes.
func (b *Buffer) Size() int {
	return b.backing.Len()
}

// Shared returns the mapping shared state of the buffer.
func (b *Buffer) Shared() *mapping.Buffer {
	return b.shared
}

// Table returns a fresh descriptor list covering the whole buffer.
func (b *Buffer) Table() scatterlist.List {
	return scatterlist.FromBytes(b.backing.Data(), b.segSize)
}

// Refs returns the current reference count.
func (b *Buffer) Refs() int32 {
	return b.refs.Load()
}

// Get takes a reference. A released buffer cannot be revived.
func (b *Buffer) Get() *Buffer {
	for {
		refs := b.refs.Load()
		if refs <= 0 {
			panic("dmabuf: Get on a released buffer")
		}
		if b.refs.CompareAndSwap(refs, refs+1) {
			return b
		}
	}
}

// Put drops a reference and reports whether it was the last one. The last Put
// tears down every translation of the buffer and releases its memory.
func (b *Buffer) Put() bool {
	refs := b.refs.Add(-1)
	if refs < 0 {
		b.refs.Add(1)
		panic("dmabuf: Put on a released buffer")
	}
	if refs > 0 {
		return false
	}

	sweeps := mapping.BufferFreed(b.shared)
	b.backing.Release()
	logger.Debugf(b, "released after %d teardown sweeps", sweeps)
	return true
}

// Attach connects dev to the buffer. The attachment holds a reference until Detach.
func (b *Buffer) Attach(dev *mapping.Device) *Attachment {
	b.Get()
	return &Attachment{
		buf: b,
		dev: dev,
	}
}
