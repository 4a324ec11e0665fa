package mapping

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Buffer is the shared state of one exported buffer: the index of every
// device that currently maps it.
type Buffer struct {
	id uint64

	mu       sync.Mutex
	maps     map[uint64]*record // keyed by device id
	released bool

	sweeps atomic.Uint64
}

// NewBuffer creates empty shared state for a buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		id:   nextID(),
		maps: make(map[uint64]*record),
	}
}

// ID returns the generated buffer identity.
func (b *Buffer) ID() uint64 {
	return b.id
}

func (b *Buffer) String() string {
	return fmt.Sprintf("buf#%d", b.id)
}

// Len returns the number of devices currently mapping the buffer.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.maps)
}

// Released reports whether BufferFreed has run on the buffer.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Sweeps returns the total number of index sweeps done by BufferFreed.
func (b *Buffer) Sweeps() uint64 {
	return b.sweeps.Load()
}

// Mappings returns a snapshot of the buffer index ordered by device id.
func (b *Buffer) Mappings() []MappingInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]MappingInfo, 0, len(b.maps))
	for _, r := range b.maps {
		infos = append(infos, r.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].DeviceID < infos[j].DeviceID })
	return infos
}
