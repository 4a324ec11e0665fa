package mapping

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ugparu/iomap"
)

// Device is a consumer endpoint owning the index of every buffer it has mapped.
type Device struct {
	id   uint64
	name string
	ops  iomap.Translator

	mu   sync.Mutex
	maps map[uint64]*record // keyed by buffer id

	stats deviceStats
}

// NewDevice creates a device whose translations are programmed through ops.
func NewDevice(name string, ops iomap.Translator) *Device {
	return &Device{
		id:   nextID(),
		name: name,
		ops:  ops,
		maps: make(map[uint64]*record),
	}
}

// ID returns the generated device identity.
func (d *Device) ID() uint64 {
	return d.id
}

// Name returns the name given at creation.
func (d *Device) Name() string {
	return d.name
}

// Translator returns the primitive used by the device.
func (d *Device) Translator() iomap.Translator {
	return d.ops
}

func (d *Device) String() string {
	return fmt.Sprintf("dev#%d(%s)", d.id, d.name)
}

// Len returns the number of buffers currently mapped by the device.
func (d *Device) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.maps)
}

// Mappings returns a snapshot of the device index ordered by buffer id.
func (d *Device) Mappings() []MappingInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]MappingInfo, 0, len(d.maps))
	for _, r := range d.maps {
		infos = append(infos, r.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].BufferID < infos[j].BufferID })
	return infos
}

// Stats returns the device counters.
func (d *Device) Stats() Stats {
	return d.stats.snapshot()
}

// Stats holds cumulative cache counters of one device.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Failures uint64 `json:"failures"`
	Unmaps   uint64 `json:"unmaps"`
	Frees    uint64 `json:"frees"`
	Syncs    uint64 `json:"syncs"`
	Barriers uint64 `json:"barriers"`
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Hits:     s.Hits + o.Hits,
		Misses:   s.Misses + o.Misses,
		Failures: s.Failures + o.Failures,
		Unmaps:   s.Unmaps + o.Unmaps,
		Frees:    s.Frees + o.Frees,
		Syncs:    s.Syncs + o.Syncs,
		Barriers: s.Barriers + o.Barriers,
	}
}

type deviceStats struct {
	hits, misses, failures atomic.Uint64
	unmaps, frees          atomic.Uint64
	syncs, barriers        atomic.Uint64
}

func (s *deviceStats) snapshot() Stats {
	return Stats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Failures: s.failures.Load(),
		Unmaps:   s.unmaps.Load(),
		Frees:    s.frees.Load(),
		Syncs:    s.syncs.Load(),
		Barriers: s.barriers.Load(),
	}
}
