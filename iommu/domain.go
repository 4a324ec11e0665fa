package iommu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/ugparu/iomap"
	"github.com/ugparu/iomap/scatterlist"
	"github.com/ugparu/iomap/utils/logger"
)

type pte struct {
	dma    uint64 // device address of the first byte
	phys   uint64 // CPU address of the first byte
	length uint32
	pages  uint64
	dir    iomap.Direction
}

// Domain is a software IOMMU translation domain. It implements iomap.Translator.
type Domain struct {
	name      string
	base      uint64
	limit     uint64
	pageSize  uint64
	coherent  bool
	merge     bool
	failEvery uint64

	mu    sync.Mutex
	next  uint64
	calls uint64
	free  map[uint64]*queue.Queue // page count -> recycled base addresses
	ptes  map[uint64]pte          // page-aligned base address -> entry

	maps, unmaps, failures    atomic.Uint64
	syncsToDevice, syncsToCPU atomic.Uint64
	barriers, faults          atomic.Uint64
}

var _ iomap.Translator = (*Domain)(nil)

// New creates a domain. By default it covers a 4GB aperture with 4KB pages.
func New(name string, opts ...Option) *Domain {
	d := &Domain{
		name:     name,
		base:     defaultBase,
		limit:    defaultBase + defaultSize,
		pageSize: defaultPageSize,
		free:     make(map[uint64]*queue.Queue),
		ptes:     make(map[uint64]pte),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.next = d.base
	return d
}

func (d *Domain) String() string {
	return fmt.Sprintf("iommu(%s)", d.name)
}

func (d *Domain) pageMask() uint64 {
	return d.pageSize - 1
}

func (d *Domain) pagesFor(offset uint64, length uint32) uint64 {
	return max(1, (offset+uint64(length)+d.pageMask())/d.pageSize)
}

// alloc returns a base address for pages pages. Caller holds d.mu.
func (d *Domain) alloc(pages uint64) (uint64, bool) {
	if q, ok := d.free[pages]; ok && q.Length() > 0 {
		return q.Remove().(uint64), true
	}
	size := pages * d.pageSize
	if d.next+size > d.limit || d.next+size < d.next {
		return 0, false
	}
	iova := d.next
	d.next += size
	return iova, true
}

// release recycles a range. Caller holds d.mu.
func (d *Domain) release(iova, pages uint64) {
	q, ok := d.free[pages]
	if !ok {
		q = queue.New()
		d.free[pages] = q
	}
	q.Add(iova)
}

type chunk struct {
	addr   uint64
	length uint32
}

func (d *Domain) chunks(list scatterlist.List) []chunk {
	out := make([]chunk, 0, len(list))
	for _, e := range list {
		if n := len(out); d.merge && n > 0 {
			last := &out[n-1]
			if last.addr+uint64(last.length) == e.Addr && uint64(last.length)+uint64(e.Length) <= uint64(^uint32(0)) {
				last.length += e.Length
				continue
			}
		}
		out = append(out, chunk{addr: e.Addr, length: e.Length})
	}
	return out
}

// MapSG assigns device addresses to the first nents entries of list and
// returns how many device ranges were produced.
func (d *Domain) MapSG(list scatterlist.List, nents int, dir iomap.Direction, attrs iomap.Attrs) (int, error) {
	nents = min(nents, len(list))
	if nents <= 0 {
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.failEvery > 0 && d.calls%d.failEvery == 0 {
		d.failures.Add(1)
		return 0, ErrInjectedFault
	}

	chunks := d.chunks(list[:nents])
	mapped := make([]uint64, 0, len(chunks))
	for i, c := range chunks {
		offset := c.addr & d.pageMask()
		pages := d.pagesFor(offset, c.length)
		iova, ok := d.alloc(pages)
		if !ok {
			for _, base := range mapped {
				p := d.ptes[base]
				delete(d.ptes, base)
				d.release(base, p.pages)
			}
			list[:nents].ResetDMA()
			d.failures.Add(1)
			logger.Warningf(d, "aperture exhausted mapping %d pages", pages)
			return 0, ErrApertureExhausted
		}
		d.ptes[iova] = pte{
			dma:    iova + offset,
			phys:   c.addr,
			length: c.length,
			pages:  pages,
			dir:    dir,
		}
		mapped = append(mapped, iova)
		list[i].DMAAddr = iova + offset
		list[i].DMALength = c.length
	}
	for i := len(chunks); i < nents; i++ {
		list[i].DMAAddr = 0
		list[i].DMALength = 0
	}

	if !attrs.Has(iomap.AttrSkipCPUSync) && !d.coherent {
		d.syncsToDevice.Add(1)
	}
	d.maps.Add(1)
	logger.Tracef(d, "mapped %d entries as %d ranges", nents, len(chunks))
	return len(chunks), nil
}

// UnmapSG releases the device ranges of the first nents entries of list.
// Ranges that are not mapped are counted as faults.
func (d *Domain) UnmapSG(list scatterlist.List, nents int, _ iomap.Direction, attrs iomap.Attrs) {
	nents = min(nents, len(list))

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range list[:max(nents, 0)] {
		base := e.DMAAddr &^ d.pageMask()
		p, ok := d.ptes[base]
		if !ok || p.dma != e.DMAAddr {
			d.faults.Add(1)
			logger.Errorf(d, "unmap of unmapped address %#x", e.DMAAddr)
			continue
		}
		delete(d.ptes, base)
		d.release(base, p.pages)
	}

	if !attrs.Has(iomap.AttrSkipCPUSync) && !d.coherent {
		d.syncsToCPU.Add(1)
	}
	d.unmaps.Add(1)
}

// check counts a fault for every entry that is not mapped. Caller holds d.mu.
func (d *Domain) check(list scatterlist.List, nents int) {
	for _, e := range list[:max(min(nents, len(list)), 0)] {
		if p, ok := d.ptes[e.DMAAddr&^d.pageMask()]; !ok || p.dma != e.DMAAddr {
			d.faults.Add(1)
			logger.Errorf(d, "sync of unmapped address %#x", e.DMAAddr)
		}
	}
}

// SyncForDevice implements iomap.Translator.
func (d *Domain) SyncForDevice(list scatterlist.List, nents int, _ iomap.Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.check(list, nents)
	d.syncsToDevice.Add(1)
}

// SyncForCPU implements iomap.Translator.
func (d *Domain) SyncForCPU(list scatterlist.List, nents int, _ iomap.Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.check(list, nents)
	d.syncsToCPU.Add(1)
}

// Coherent implements iomap.Translator.
func (d *Domain) Coherent() bool {
	return d.coherent
}

// Barrier implements iomap.Translator.
func (d *Domain) Barrier() {
	d.barriers.Add(1)
}

// Translate returns the CPU address behind a device address.
func (d *Domain) Translate(dma uint64) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.ptes {
		if dma >= p.dma && dma < p.dma+uint64(p.length) {
			return p.phys + (dma - p.dma), true
		}
	}
	return 0, false
}

// Mapped returns the number of live device ranges.
func (d *Domain) Mapped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ptes)
}

// Stats holds cumulative domain counters.
type Stats struct {
	Maps          uint64 `json:"maps"`
	Unmaps        uint64 `json:"unmaps"`
	Failures      uint64 `json:"failures"`
	SyncsToDevice uint64 `json:"syncs_to_device"`
	SyncsToCPU    uint64 `json:"syncs_to_cpu"`
	Barriers      uint64 `json:"barriers"`
	Faults        uint64 `json:"faults"`
	Mapped        int    `json:"mapped"`
}

// Stats returns the domain counters.
func (d *Domain) Stats() Stats {
	return Stats{
		Maps:          d.maps.Load(),
		Unmaps:        d.unmaps.Load(),
		Failures:      d.failures.Load(),
		SyncsToDevice: d.syncsToDevice.Load(),
		SyncsToCPU:    d.syncsToCPU.Load(),
		Barriers:      d.barriers.Load(),
		Faults:        d.faults.Load(),
		Mapped:        d.Mapped(),
	}
}
