package lifecycle

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/ugparu/iomap/utils/logger"
)

type asyncLifecycleManager[T AsyncInstance] struct {
	instance             T
	failsafe             bool
	stopChan, doneChan   chan struct{}
	startOnce, closeOnce *sync.Once
	steps, faults        atomic.Uint64
}

// NewAsyncManager runs Step in a loop until it returns an error or panics.
func NewAsyncManager[T AsyncInstance](instance T) AsyncManager[T] {
	return newAsyncManager(instance, false)
}

// NewFailSafeAsyncManager runs Step in a loop that survives errors and panics;
// only a BreakError or Close ends it.
func NewFailSafeAsyncManager[T AsyncInstance](instance T) AsyncManager[T] {
	return newAsyncManager(instance, true)
}

func newAsyncManager[T AsyncInstance](instance T, failsafe bool) *asyncLifecycleManager[T] {
	return &asyncLifecycleManager[T]{
		instance:  instance,
		failsafe:  failsafe,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		startOnce: &sync.Once{},
		closeOnce: &sync.Once{},
	}
}

func (ssc *asyncLifecycleManager[T]) Start(startFunc func(T) error) (err error) {
	select {
	case <-ssc.stopChan:
		if ssc.failsafe {
			return nil
		}
		return &StartedAfterCloseError{}
	default:
		if !ssc.failsafe {
			err = &StartedAlreadyError{}
		}
	}
	ssc.startOnce.Do(func() {
		logger.Debugf(ssc.instance, "Starting async, failsafe=%t", ssc.failsafe)
		if err = startFunc(ssc.instance); err != nil {
			if !ssc.failsafe {
				close(ssc.doneChan)
				return
			}
			logger.Warningf(ssc.instance, "Detected error on start: %s", err.Error())
			err = nil
		}
		go ssc.process()
	})
	return err
}

func (ssc *asyncLifecycleManager[T]) process() {
	logger.Debug(ssc.instance, "Entering main loop")

	defer close(ssc.doneChan)
	for ssc.step() {
	}
}

// step runs one Step and reports whether the loop should continue.
func (ssc *asyncLifecycleManager[T]) step() (running bool) {
	defer func() {
		if r := recover(); r != nil {
			ssc.faults.Add(1)
			logger.Errorf(ssc.instance, "Panic detected! Recovering from: %v", r)
			logger.Errorf(ssc.instance, "%s", debug.Stack())
			running = ssc.failsafe
		}
	}()

	ssc.steps.Add(1)
	err := ssc.instance.Step(ssc.stopChan)
	if err == nil {
		return true
	}
	var brk *BreakError
	if errors.As(err, &brk) {
		return false
	}
	ssc.faults.Add(1)
	logger.Warningf(ssc.instance, "Detected error: %s", err.Error())
	return ssc.failsafe
}

func (ssc *asyncLifecycleManager[T]) Close() {
	ssc.closeOnce.Do(func() {
		close(ssc.stopChan)
		ssc.startOnce.Do(func() {
			close(ssc.doneChan)
		})
		<-ssc.doneChan
		ssc.instance.Close_()
	})
}

func (ssc *asyncLifecycleManager[T]) Done() <-chan struct{} {
	return ssc.doneChan
}

func (ssc *asyncLifecycleManager[T]) Steps() uint64 {
	return ssc.steps.Load()
}

func (ssc *asyncLifecycleManager[T]) Faults() uint64 {
	return ssc.faults.Load()
}
