package lifecycle

import (
	"sync"

	"github.com/ugparu/iomap/utils/logger"
)

type state uint8

const (
	stateIdle state = iota
	stateStarted
	stateClosed
)

type defaultLifecycleManager[T Instance] struct {
	instance T
	mu       sync.Mutex
	state    state
}

// NewDefaultManager runs startFunc once and calls Close_ once on Close.
// A failed start may not be retried.
func NewDefaultManager[T Instance](instance T) Manager[T] {
	return &defaultLifecycleManager[T]{
		instance: instance,
	}
}

func (ssc *defaultLifecycleManager[T]) Start(startFunc func(T) error) error {
	ssc.mu.Lock()
	defer ssc.mu.Unlock()

	switch ssc.state {
	case stateClosed:
		return &StartedAfterCloseError{}
	case stateStarted:
		return &StartedAlreadyError{}
	}

	logger.Debugf(ssc.instance, "Starting default")
	ssc.state = stateStarted
	return startFunc(ssc.instance)
}

func (ssc *defaultLifecycleManager[T]) Close() {
	ssc.mu.Lock()
	defer ssc.mu.Unlock()

	if ssc.state == stateClosed {
		return
	}
	ssc.state = stateClosed
	ssc.instance.Close_()
}
