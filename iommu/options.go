package iommu

const (
	defaultBase     = 0x1000_0000
	defaultSize     = 1 << 32
	defaultPageSize = 4096
)

// Option configures a Domain.
type Option func(*Domain)

// WithAperture sets the device address window [base, base+size).
func WithAperture(base, size uint64) Option {
	return func(d *Domain) {
		d.base = base
		d.limit = base + size
	}
}

// WithPageSize sets the translation granule. It must be a power of two.
func WithPageSize(size uint64) Option {
	return func(d *Domain) {
		if size != 0 && size&(size-1) == 0 {
			d.pageSize = size
		}
	}
}

// WithCoherent marks the device transport as cache-coherent.
func WithCoherent(coherent bool) Option {
	return func(d *Domain) {
		d.coherent = coherent
	}
}

// WithMerge makes MapSG coalesce physically contiguous entries into one
// device range, the way an IOMMU backed dma_map_sg does.
func WithMerge(merge bool) Option {
	return func(d *Domain) {
		d.merge = merge
	}
}

// WithFailEvery makes every n-th MapSG call fail with ErrInjectedFault.
func WithFailEvery(n uint64) Option {
	return func(d *Domain) {
		d.failEvery = n
	}
}
