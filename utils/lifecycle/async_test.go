package lifecycle

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.FatalLevel)
	m.Run()
}

type Bar struct {
	closed atomic.Int32
}

func (b *Bar) Close_() { b.closed.Add(1) }

func (*Bar) String() string { return "bar" }

func (*Bar) Step(stopCh <-chan struct{}) error {
	select {
	case <-stopCh:
		return &BreakError{}
	default:
		return nil
	}
}

type ErrBar struct{ Bar }

func (*ErrBar) Step(stopCh <-chan struct{}) error {
	select {
	case <-stopCh:
		return &BreakError{}
	default:
		return errors.New("step failed")
	}
}

type PanicBar struct{ Bar }

func (*PanicBar) Step(stopCh <-chan struct{}) error {
	select {
	case <-stopCh:
		return &BreakError{}
	default:
		time.Sleep(time.Millisecond)
		panic("step panicked")
	}
}

func TestAsyncStart(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewAsyncManager[*Bar](inst)
	err := manager.Start(func(f *Bar) error { return nil })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return manager.Steps() > 0 }, time.Second, time.Millisecond)
	manager.Close()
	require.Equal(t, int32(1), inst.closed.Load())
}

func TestAsyncErrorStart(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewAsyncManager[*Bar](inst)
	err := manager.Start(func(f *Bar) error { return errors.New("") })
	require.Error(t, err)
	select {
	case <-manager.Done():
	default:
		t.FailNow()
	}
}

func TestAsyncStartAfterStart(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewAsyncManager[*Bar](inst)
	err := manager.Start(func(f *Bar) error { return nil })
	require.NoError(t, err)
	err = manager.Start(func(f *Bar) error { return nil })
	targetError := &StartedAlreadyError{}
	require.ErrorAs(t, err, &targetError)
	manager.Close()
}

func TestAsyncCloseBeforeStart(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewAsyncManager[*Bar](inst)
	manager.Close()
	manager.Close()
	require.Equal(t, int32(1), inst.closed.Load())
}

func TestAsyncStartAfterClose(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewAsyncManager[*Bar](inst)
	manager.Close()
	err := manager.Start(func(f *Bar) error { return nil })
	targetError := &StartedAfterCloseError{}
	require.ErrorAs(t, err, &targetError)
}

func TestAsyncStepErrorStops(t *testing.T) {
	t.Parallel()

	inst := &ErrBar{}
	manager := NewAsyncManager[*ErrBar](inst)
	err := manager.Start(func(f *ErrBar) error { return nil })
	require.NoError(t, err)
	select {
	case <-manager.Done():
	case <-time.After(time.Second):
		t.FailNow()
	}
	require.Equal(t, uint64(1), manager.Faults())
}

func TestAsyncPanicStops(t *testing.T) {
	t.Parallel()

	inst := &PanicBar{}
	manager := NewAsyncManager[*PanicBar](inst)
	require.NoError(t, manager.Start(func(f *PanicBar) error { return nil }))
	select {
	case <-manager.Done():
	case <-time.After(time.Second):
		t.FailNow()
	}
	require.Equal(t, uint64(1), manager.Faults())
}

func TestFailsafeAsyncErrorStart(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewFailSafeAsyncManager[*Bar](inst)
	err := manager.Start(func(f *Bar) error { return errors.New("") })
	require.NoError(t, err)
	select {
	case <-manager.Done():
		t.FailNow()
	default:
	}
	manager.Close()
}

func TestFailsafeAsyncStartAfterStart(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewFailSafeAsyncManager[*Bar](inst)
	require.NoError(t, manager.Start(func(f *Bar) error { return nil }))
	require.NoError(t, manager.Start(func(f *Bar) error { return nil }))
	manager.Close()
}

func TestFailsafeAsyncStartAfterClose(t *testing.T) {
	t.Parallel()

	inst := &Bar{}
	manager := NewFailSafeAsyncManager[*Bar](inst)
	manager.Close()
	require.NoError(t, manager.Start(func(f *Bar) error { return nil }))
}

func TestFailsafeAsyncSurvivesErrors(t *testing.T) {
	t.Parallel()

	inst := &ErrBar{}
	manager := NewFailSafeAsyncManager[*ErrBar](inst)
	require.NoError(t, manager.Start(func(f *ErrBar) error { return nil }))
	require.Eventually(t, func() bool { return manager.Faults() > 3 }, time.Second, time.Millisecond)
	select {
	case <-manager.Done():
		t.FailNow()
	default:
	}
	manager.Close()
	<-manager.Done()
}

func TestFailsafeAsyncSurvivesPanics(t *testing.T) {
	t.Parallel()

	inst := &PanicBar{}
	manager := NewFailSafeAsyncManager[*PanicBar](inst)
	require.NoError(t, manager.Start(func(f *PanicBar) error { return nil }))
	require.Eventually(t, func() bool { return manager.Faults() > 1 }, time.Second, time.Millisecond)
	manager.Close()
	require.Equal(t, int32(1), inst.closed.Load())
}
