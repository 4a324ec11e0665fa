package iommu

import "errors"

var (
	// ErrApertureExhausted is returned when no device address range is left.
	ErrApertureExhausted = errors.New("iommu aperture exhausted")
	// ErrInjectedFault is returned by MapSG calls selected by WithFailEvery.
	ErrInjectedFault = errors.New("iommu injected fault")
)
