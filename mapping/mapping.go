package mapping

import (
	"runtime"

	"github.com/ugparu/iomap"
	"github.com/ugparu/iomap/scatterlist"
	"github.com/ugparu/iomap/utils/logger"
)

// Map returns the translation of buf for dev, creating it on first use.
//
// On a hit the cached device addresses are copied into list and the cached entry
// count is returned. On a miss the translator maps the first nents entries of list.
// A zero return means nothing was mapped.
func Map(dev *Device, list scatterlist.List, nents int, dir iomap.Direction, buf *Buffer, attrs iomap.Attrs) (int, error) {
	if !dir.Valid() {
		return 0, &iomap.InvalidDirectionError{Direction: dir}
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	buf.mu.Lock()
	defer buf.mu.Unlock()

	if buf.released {
		return 0, &iomap.BufferReleasedError{}
	}

	if r, ok := buf.maps[dev.id]; ok {
		r.refcount++
		list.CopyDMA(r.sgl, r.nents)
		if !attrs.Has(iomap.AttrSkipCPUSync) {
			dev.ops.SyncForDevice(r.sgl, r.nents, r.dir)
			dev.stats.syncs.Add(1)
		}
		if dev.ops.Coherent() {
			dev.ops.Barrier()
			dev.stats.barriers.Add(1)
		}
		dev.stats.hits.Add(1)
		logger.Tracef(dev, "hit %s", r)
		return r.nents, nil
	}

	n, err := dev.ops.MapSG(list, nents, dir, attrs)
	if err != nil || n <= 0 {
		dev.stats.failures.Add(1)
		logger.Warningf(dev, "mapping %s failed: %v", buf, err)
		return 0, &iomap.TranslationError{Device: dev.name, Err: err}
	}

	r := newRecord(dev, buf, list, n, dir, attrs)
	r.link()
	dev.stats.misses.Add(1)
	logger.Debugf(dev, "mapped %s", r)
	return n, nil
}

// Unmap drops one reference to the translation of buf for dev.
// The translation is torn down when the count reaches zero.
// Unmapping a buffer that is not mapped is a no-op, and so is an unmap with a
// direction Map would refuse. The record is found by device and buffer
// identity; the list itself is not consulted.
func Unmap(dev *Device, _ scatterlist.List, _ int, dir iomap.Direction, buf *Buffer, attrs iomap.Attrs) {
	if !dir.Valid() {
		logger.Warningf(dev, "ignoring unmap of %s with direction %s", buf, dir)
		return
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	buf.mu.Lock()
	defer buf.mu.Unlock()

	r, ok := buf.maps[dev.id]
	if !ok {
		return
	}

	if !attrs.Has(iomap.AttrSkipCPUSync) {
		dev.ops.SyncForCPU(r.sgl, r.nents, dir)
		dev.stats.syncs.Add(1)
	}
	dev.stats.unmaps.Add(1)

	r.refcount--
	if r.refcount == 0 {
		r.free()
	}
}

// UnmapAllForDevice tears down every translation held by dev regardless of
// reference counts and returns how many were destroyed.
func UnmapAllForDevice(dev *Device) (freed int) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	for _, r := range dev.maps {
		buf := r.buf
		buf.mu.Lock()
		r.free()
		buf.mu.Unlock()
		freed++
	}

	if freed > 0 {
		logger.Debugf(dev, "unmapped all: %d translations", freed)
	}
	return
}

// BufferFreed tears down every translation of buf regardless of reference
// counts and marks it released so later Map calls fail. It returns the number
// of sweeps it needed.
//
// The buffer lock is taken before device locks here, the reverse of the usual
// order, so device locks are only try-locked. On contention the sweep is
// abandoned and restarted once the buffer lock has been dropped.
func BufferFreed(buf *Buffer) (sweeps int) {
	for {
		sweeps++
		buf.sweeps.Add(1)
		if sweepBuffer(buf) {
			break
		}
		runtime.Gosched()
	}

	if sweeps > 1 {
		logger.Debugf(buf, "freed after %d sweeps", sweeps)
	}
	return
}

// sweepBuffer reports whether every record of buf was destroyed.
func sweepBuffer(buf *Buffer) bool {
	buf.mu.Lock()
	defer buf.mu.Unlock()

	buf.released = true
	for _, r := range buf.maps {
		dev := r.dev
		if !dev.mu.TryLock() {
			return false
		}
		r.free()
		dev.mu.Unlock()
	}
	return true
}

// Refcount returns the reference count of the translation of buf for dev.
func Refcount(dev *Device, buf *Buffer) (int, bool) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	buf.mu.Lock()
	defer buf.mu.Unlock()

	r, ok := buf.maps[dev.id]
	if !ok {
		return 0, false
	}
	return r.refcount, true
}
