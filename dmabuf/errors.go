package dmabuf

import "fmt"

// InvalidSizeError indicates a buffer allocation with a non-positive size.
type InvalidSizeError struct {
	Size int
}

// Error returns the error message for InvalidSizeError.
func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("invalid buffer size %d", e.Size)
}
