// Package pipeline drives shared frame buffers through a chain of device stages,
// each mapping every frame it handles. Frames are recycled from a fixed ring, so
// after the first lap every map is served from the translation cache.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/ugparu/iomap/dmabuf"
	"github.com/ugparu/iomap/utils/lifecycle"
	"github.com/ugparu/iomap/utils/logger"
)

// Pipeline owns a frame ring, a source and a chain of stages.
type Pipeline struct {
	lifecycle.Manager[*Pipeline]
	ring   []*dmabuf.Buffer
	source *Source
	stages []*Stage
	chans  []chan *dmabuf.Buffer
}

// New builds a pipeline over ring. The pipeline takes over the caller's
// references to the ring buffers and drops them on Close.
func New(ring []*dmabuf.Buffer, interval time.Duration, chanSize int, stages ...StageConfig) (*Pipeline, error) {
	if len(ring) == 0 {
		return nil, errors.New("pipeline: empty frame ring")
	}
	if len(stages) == 0 {
		return nil, errors.New("pipeline: no stages")
	}
	for i, cfg := range stages {
		if cfg.Device == nil {
			return nil, fmt.Errorf("pipeline: stage %d has no device", i)
		}
	}

	p := &Pipeline{
		ring:  ring,
		chans: make([]chan *dmabuf.Buffer, len(stages)),
	}
	for i := range p.chans {
		p.chans[i] = make(chan *dmabuf.Buffer, chanSize)
	}
	p.source = newSource(ring, interval, p.chans[0])
	for i, cfg := range stages {
		var out chan *dmabuf.Buffer
		if i+1 < len(stages) {
			out = p.chans[i+1]
		}
		p.stages = append(p.stages, newStage(cfg, p.chans[i], out))
	}
	p.Manager = lifecycle.NewDefaultManager(p)
	return p, nil
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("PIPELINE stages=%d", len(p.stages))
}

// Run starts the stages and then the source.
func (p *Pipeline) Run() error {
	return p.Start(func(p *Pipeline) error {
		for _, s := range p.stages {
			if err := s.Start(func(*Stage) error { return nil }); err != nil {
				return err
			}
		}
		return p.source.Start(func(*Source) error { return nil })
	})
}

// Stages returns the stages in order.
func (p *Pipeline) Stages() []*Stage {
	return p.stages
}

// Emitted returns the number of source steps so far.
func (p *Pipeline) Emitted() uint64 {
	return p.source.Steps()
}

// Stats returns the counters of every stage.
func (p *Pipeline) Stats() []StageStats {
	stats := make([]StageStats, 0, len(p.stages))
	for _, s := range p.stages {
		stats = append(stats, s.Stats())
	}
	return stats
}

// Close_ stops the source and the stages in order, releases frames still in
// flight and drops the ring references.
func (p *Pipeline) Close_() { //nolint:revive
	p.source.Close()
	for _, s := range p.stages {
		s.Close()
	}
	for _, ch := range p.chans {
		for drained := false; !drained; {
			select {
			case frame := <-ch:
				frame.Put()
			default:
				drained = true
			}
		}
	}
	for _, frame := range p.ring {
		frame.Put()
	}
	logger.Infof(p, "closed after %d frames", p.source.Steps())
}
