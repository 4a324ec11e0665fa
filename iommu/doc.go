// Package iommu implements a software translation domain.
//
// A Domain hands out page-granular device addresses from a fixed aperture, keeps a
// table from device address to CPU address, and counts cache maintenance. Freed
// address ranges are recycled in FIFO order per page count. Accesses to device
// addresses that are not mapped are counted as faults.
package iommu
