// Package mapping caches device translations of shared buffers.
//
// A translation of one buffer for one device is kept in a record that is reachable
// from two indices: the buffer's (keyed by device) and the device's (keyed by buffer).
// Records are reference counted; mapping an already mapped buffer returns the cached
// translation instead of programming a new one.
//
// Lock order is device before buffer. BufferFreed is the only path that starts from
// the buffer side; it try-locks devices and restarts its sweep on contention.
package mapping
