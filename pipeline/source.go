package pipeline

import (
	"fmt"
	"time"

	"github.com/ugparu/iomap/dmabuf"
	"github.com/ugparu/iomap/utils/lifecycle"
	"github.com/ugparu/iomap/utils/logger"
)

// Source cycles a ring of frame buffers into a channel. Every emitted frame
// carries its own reference.
type Source struct {
	lifecycle.AsyncManager[*Source]
	ring     []*dmabuf.Buffer
	pos      int
	interval time.Duration
	out      chan *dmabuf.Buffer
}

func newSource(ring []*dmabuf.Buffer, interval time.Duration, out chan *dmabuf.Buffer) *Source {
	src := &Source{
		ring:     ring,
		interval: interval,
		out:      out,
	}
	src.AsyncManager = lifecycle.NewAsyncManager(src)
	return src
}

func (src *Source) String() string {
	return fmt.Sprintf("SOURCE ring=%d", len(src.ring))
}

// Step emits the next frame of the ring.
func (src *Source) Step(stopCh <-chan struct{}) error {
	frame := src.ring[src.pos%len(src.ring)].Get()
	src.pos++

	select {
	case src.out <- frame:
	case <-stopCh:
		frame.Put()
		return &lifecycle.BreakError{}
	}

	if src.interval > 0 {
		select {
		case <-time.After(src.interval):
		case <-stopCh:
			return &lifecycle.BreakError{}
		}
	}
	return nil
}

// Close_ is called by the lifecycle manager once the loop has stopped.
func (src *Source) Close_() { //nolint:revive
	logger.Debugf(src, "emitted %d frames", src.pos)
}
