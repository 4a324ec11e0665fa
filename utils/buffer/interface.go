package buffer

// PooledBuffer is fixed-size backing memory for a shared buffer.
type PooledBuffer interface {
	Data() []byte

	Len() int
	Cap() int

	// Release returns the memory to its pool or unmaps it. After calling
	// Release, the buffer must not be used.
	Release()
}
