package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/ugparu/iomap"
	"github.com/ugparu/iomap/dmabuf"
	"github.com/ugparu/iomap/mapping"
	"github.com/ugparu/iomap/scatterlist"
	"github.com/ugparu/iomap/utils/lifecycle"
	"github.com/ugparu/iomap/utils/logger"
)

// ProcessFunc consumes one mapped frame. table holds the device-visible ranges.
type ProcessFunc func(frame *dmabuf.Buffer, table scatterlist.List) error

// StageConfig describes one device stage.
type StageConfig struct {
	Device    *mapping.Device
	Direction iomap.Direction
	Attrs     iomap.Attrs
	Process   ProcessFunc
}

// StageStats holds per-stage frame counters.
type StageStats struct {
	Device string        `json:"device"`
	Frames uint64        `json:"frames"`
	Failed uint64        `json:"failed"`
	Cache  mapping.Stats `json:"cache"`
}

// Stage maps every frame it receives for its device, hands it to Process and
// unmaps it again. Frames go on to the next stage or are released.
type Stage struct {
	lifecycle.AsyncManager[*Stage]
	StageConfig
	in, out chan *dmabuf.Buffer

	frames, failed atomic.Uint64
}

func newStage(cfg StageConfig, in, out chan *dmabuf.Buffer) *Stage {
	s := &Stage{
		StageConfig: cfg,
		in:          in,
		out:         out,
	}
	s.AsyncManager = lifecycle.NewFailSafeAsyncManager(s)
	return s
}

func (s *Stage) String() string {
	return fmt.Sprintf("STAGE %s", s.Device.Name())
}

// Step processes one frame.
func (s *Stage) Step(stopCh <-chan struct{}) error {
	var frame *dmabuf.Buffer
	select {
	case frame = <-s.in:
	case <-stopCh:
		return &lifecycle.BreakError{}
	}

	err := s.process(frame)

	if s.out == nil {
		frame.Put()
		return err
	}
	select {
	case s.out <- frame:
	case <-stopCh:
		frame.Put()
		return &lifecycle.BreakError{}
	}
	return err
}

func (s *Stage) process(frame *dmabuf.Buffer) error {
	att := frame.Attach(s.Device)
	defer att.Detach()

	table, err := att.Map(s.Direction, s.Attrs)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("map %s: %w", frame, err)
	}
	defer att.Unmap(table, s.Direction, s.Attrs)

	if s.Process != nil {
		if err = s.Process(frame, table); err != nil {
			s.failed.Add(1)
			return err
		}
	}
	s.frames.Add(1)
	return nil
}

// Stats returns the stage counters.
func (s *Stage) Stats() StageStats {
	return StageStats{
		Device: s.Device.Name(),
		Frames: s.frames.Load(),
		Failed: s.failed.Load(),
		Cache:  s.Device.Stats(),
	}
}

// Close_ tears down every translation the device still holds.
func (s *Stage) Close_() { //nolint:revive
	freed := mapping.UnmapAllForDevice(s.Device)
	logger.Debugf(s, "processed %d frames, %d failed, %d translations torn down", s.frames.Load(), s.failed.Load(), freed)
}
