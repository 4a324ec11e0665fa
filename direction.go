package iomap

import "strings"

// Direction represents the data-transfer direction of a mapping.
type Direction uint8

// Constants representing transfer directions.
const (
	Bidirectional = Direction(iota) // device may read and write
	ToDevice                        // CPU writes, device reads
	FromDevice                      // device writes, CPU reads
	None                            // no transfer, used for debugging
)

// String returns a human-readable representation of the direction.
func (d Direction) String() string {
	switch d {
	case Bidirectional:
		return "BIDIRECTIONAL"
	case ToDevice:
		return "TO_DEVICE"
	case FromDevice:
		return "FROM_DEVICE"
	case None:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Valid reports whether the direction may be used for a mapping.
func (d Direction) Valid() bool {
	return d <= FromDevice
}

// Attrs is a set of mapping attribute flags.
type Attrs uint32

// Bitwise mapping attributes.
const (
	// AttrSkipCPUSync skips cache maintenance on map and unmap.
	AttrSkipCPUSync Attrs = 1 << iota
	// AttrNoDelayedUnmap drops the lazy-unmap bonus reference on mapping creation.
	AttrNoDelayedUnmap
	// AttrWeakOrdering is passed through to the translator untouched.
	AttrWeakOrdering
)

// Has reports whether all flags in f are set.
func (a Attrs) Has(f Attrs) bool {
	return a&f == f
}

// String returns the set flags joined with '|'.
func (a Attrs) String() string {
	if a == 0 {
		return "0"
	}
	var names []string
	if a.Has(AttrSkipCPUSync) {
		names = append(names, "SKIP_CPU_SYNC")
	}
	if a.Has(AttrNoDelayedUnmap) {
		names = append(names, "NO_DELAYED_UNMAP")
	}
	if a.Has(AttrWeakOrdering) {
		names = append(names, "WEAK_ORDERING")
	}
	return strings.Join(names, "|")
}

// MarshalText encodes the flags by name.
func (a Attrs) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
