package iomap

import "fmt"

// TranslationError indicates that the translation primitive produced no entries.
type TranslationError struct {
	Device string
	Err    error
}

// Error returns the error message for TranslationError.
func (e *TranslationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("translation failed for %s", e.Device)
	}
	return fmt.Sprintf("translation failed for %s: %v", e.Device, e.Err)
}

// Unwrap returns the primitive error.
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// BufferReleasedError indicates that the buffer shared state has already been freed.
type BufferReleasedError struct {
}

// Error returns the error message for BufferReleasedError.
func (*BufferReleasedError) Error() string {
	return "buffer released"
}

// InvalidDirectionError indicates that a mapping was requested with an unusable direction.
type InvalidDirectionError struct {
	Direction Direction
}

// Error returns the error message for InvalidDirectionError.
func (e *InvalidDirectionError) Error() string {
	return fmt.Sprintf("invalid direction %s", e.Direction)
}
