package lifecycle

// Instance is an object whose resources are released by a Manager.
type Instance interface {
	Close_()
	String() string
}

// AsyncInstance is an Instance driven by a Step loop.
type AsyncInstance interface {
	Instance
	Step(stopChan <-chan struct{}) error
}

// Manager starts an instance once and closes it once.
type Manager[T Instance] interface {
	Start(func(T) error) error
	Close()
}

// AsyncManager runs Step in its own goroutine until Close or a BreakError.
type AsyncManager[T AsyncInstance] interface {
	Manager[T]
	Done() <-chan struct{}
	Steps() uint64  // Number of Step calls made so far.
	Faults() uint64 // Number of Step calls that failed or panicked.
}

// BreakError ends a Step loop without counting a fault.
type BreakError struct{}

func (*BreakError) Error() string {
	return "break"
}

// StartedAlreadyError is returned by a second Start.
type StartedAlreadyError struct{}

func (*StartedAlreadyError) Error() string {
	return "started already"
}

// StartedAfterCloseError is returned by Start after Close.
type StartedAfterCloseError struct{}

func (*StartedAfterCloseError) Error() string {
	return "start after close"
}
