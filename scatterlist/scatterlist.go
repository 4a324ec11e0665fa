// Package scatterlist describes buffer regions as ordered (address, length) segments
// together with the device-visible addresses a translation assigns to them.
package scatterlist

import "unsafe"

// Entry is one segment of a descriptor list.
type Entry struct {
	Addr      uint64 // CPU-side address of the segment.
	Length    uint32 // Segment length in bytes.
	DMAAddr   uint64 // Device-visible address, set by a translation.
	DMALength uint32 // Device-visible length, zero terminates a mapped list.
}

// List is an ordered descriptor list.
type List []Entry

// Clone returns an independent copy of the first n entries.
// n is clamped to the list length.
func (l List) Clone(n int) List {
	if n > len(l) {
		n = len(l)
	}
	if n <= 0 {
		return nil
	}
	out := make(List, n)
	copy(out, l[:n])
	return out
}

// Size returns the total CPU-side length of the first n entries.
func (l List) Size(n int) (size uint64) {
	if n > len(l) {
		n = len(l)
	}
	for _, e := range l[:n] {
		size += uint64(e.Length)
	}
	return
}

// DMASize returns the total device-visible length of the first n entries.
// It differs from Size when a translation merged segments.
func (l List) DMASize(n int) (size uint64) {
	if n > len(l) {
		n = len(l)
	}
	for _, e := range l[:max(n, 0)] {
		size += uint64(e.DMALength)
	}
	return
}

// CopyDMA copies device addresses and lengths from src into l in index order.
// It stops after a zero-length source entry or when either list runs out,
// and returns the number of entries written.
func (l List) CopyDMA(src List, n int) (copied int) {
	if n > len(src) {
		n = len(src)
	}
	for _, s := range src[:n] {
		if copied >= len(l) {
			break
		}
		l[copied].DMAAddr = s.DMAAddr
		l[copied].DMALength = s.DMALength
		copied++
		if s.DMALength == 0 {
			break
		}
	}
	return
}

// ResetDMA clears every device-visible field.
func (l List) ResetDMA() {
	for i := range l {
		l[i].DMAAddr = 0
		l[i].DMALength = 0
	}
}

// FromBytes splits data into segments of at most segSize bytes.
// Segment addresses are the addresses of the backing memory.
func FromBytes(data []byte, segSize int) List {
	if len(data) == 0 || segSize <= 0 {
		return nil
	}
	base := uint64(uintptr(unsafe.Pointer(&data[0])))
	l := make(List, 0, (len(data)+segSize-1)/segSize)
	for off := 0; off < len(data); off += segSize {
		length := min(segSize, len(data)-off)
		l = append(l, Entry{
			Addr:   base + uint64(off),
			Length: uint32(length), //nolint:gosec
		})
	}
	return l
}
