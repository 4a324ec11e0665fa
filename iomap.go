package iomap

import "github.com/ugparu/iomap/scatterlist"

// Translator defines the per-device translation primitive consumed by the mapping cache.
// Every method is called with the device and buffer locks held and must not call back into the cache.
type Translator interface {
	MapSG(list scatterlist.List, nents int, dir Direction, attrs Attrs) (int, error) // Programs a translation, fills DMA fields, returns mapped entry count.
	UnmapSG(list scatterlist.List, nents int, dir Direction, attrs Attrs)            // Tears down a translation created by MapSG.
	SyncForDevice(list scatterlist.List, nents int, dir Direction)                    // Hands the memory over to the device.
	SyncForCPU(list scatterlist.List, nents int, dir Direction)                       // Hands the memory back to the CPU.
	Coherent() bool                                                                   // Reports whether the device transport is cache-coherent.
	Barrier()                                                                         // Orders prior CPU writes before device access.
}
