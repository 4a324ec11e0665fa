package mapping

import (
	"fmt"
	"sync/atomic"

	"github.com/ugparu/iomap"
	"github.com/ugparu/iomap/scatterlist"
	"github.com/ugparu/iomap/utils/logger"
)

var lastID atomic.Uint64

func nextID() uint64 {
	return lastID.Add(1)
}

// record is one cached translation of buf for dev.
// Membership and refcount change only while both dev.mu and buf.mu are held.
type record struct {
	id       uint64
	dev      *Device
	buf      *Buffer
	sgl      scatterlist.List
	nents    int
	dir      iomap.Direction
	attrs    iomap.Attrs
	refcount int
}

// initialRefs returns the starting count of a new record. The extra reference
// lets the first unmap leave the translation cached.
func initialRefs(attrs iomap.Attrs) int {
	if attrs.Has(iomap.AttrNoDelayedUnmap) {
		return 1
	}
	return 2 //nolint:mnd
}

func newRecord(dev *Device, buf *Buffer, list scatterlist.List, nents int, dir iomap.Direction, attrs iomap.Attrs) *record {
	return &record{
		id:       nextID(),
		dev:      dev,
		buf:      buf,
		sgl:      list.Clone(nents),
		nents:    nents,
		dir:      dir,
		attrs:    attrs,
		refcount: initialRefs(attrs),
	}
}

// link inserts r into both indices. Caller holds dev.mu and buf.mu.
func (r *record) link() {
	r.buf.maps[r.dev.id] = r
	r.dev.maps[r.buf.id] = r
}

// free unlinks r and tears the translation down. Caller holds dev.mu and buf.mu.
func (r *record) free() {
	delete(r.buf.maps, r.dev.id)
	delete(r.dev.maps, r.buf.id)

	// cache maintenance already happened on the unmap path or was skipped by the caller
	r.attrs |= iomap.AttrSkipCPUSync
	r.dev.ops.UnmapSG(r.sgl, r.nents, r.dir, r.attrs)
	r.dev.stats.frees.Add(1)

	logger.Tracef(r.dev, "freed %s", r)
	r.sgl = nil
}

func (r *record) info() MappingInfo {
	return MappingInfo{
		ID:        r.id,
		Device:    r.dev.name,
		DeviceID:  r.dev.id,
		BufferID:  r.buf.id,
		Direction: r.dir,
		Attrs:     r.attrs,
		Entries:   r.nents,
		Refcount:  r.refcount,
		Size:      r.sgl.DMASize(r.nents),
	}
}

func (r *record) String() string {
	return fmt.Sprintf("map#%d{buf#%d nents=%d dir=%s refs=%d}", r.id, r.buf.id, r.nents, r.dir, r.refcount)
}

// MappingInfo is a point-in-time view of a cached translation.
type MappingInfo struct {
	ID        uint64          `json:"id"`
	Device    string          `json:"device"`
	DeviceID  uint64          `json:"device_id"`
	BufferID  uint64          `json:"buffer_id"`
	Direction iomap.Direction `json:"direction"`
	Attrs     iomap.Attrs     `json:"attrs"`
	Entries   int             `json:"entries"`
	Refcount  int             `json:"refcount"`
	Size      uint64          `json:"size"` // device-visible bytes
}
