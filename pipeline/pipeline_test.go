package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/iomap"
	"github.com/ugparu/iomap/dmabuf"
	"github.com/ugparu/iomap/iommu"
	"github.com/ugparu/iomap/mapping"
	"github.com/ugparu/iomap/scatterlist"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.FatalLevel)
	m.Run()
}

func newRing(t *testing.T, n, size int) []*dmabuf.Buffer {
	t.Helper()
	ring := make([]*dmabuf.Buffer, n)
	for i := range ring {
		b, err := dmabuf.New(size, dmabuf.WithSharedMemory(true))
		require.NoError(t, err)
		ring[i] = b
	}
	return ring
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, 0, 1, StageConfig{Device: mapping.NewDevice("d", iommu.New("d"))})
	require.Error(t, err)

	ring := newRing(t, 1, 4096)
	defer ring[0].Put()
	_, err = New(ring, 0, 1)
	require.Error(t, err)
	_, err = New(ring, 0, 1, StageConfig{})
	require.Error(t, err)
}

func TestFramesHitTheCache(t *testing.T) {
	t.Parallel()

	const ringSize = 4
	ring := newRing(t, ringSize, 3*4096)

	isp, enc := iommu.New("isp"), iommu.New("venc", iommu.WithCoherent(true), iommu.WithMerge(true))
	ispDev, encDev := mapping.NewDevice("isp", isp), mapping.NewDevice("venc", enc)

	var lastTable scatterlist.List
	p, err := New(ring, 0, 2,
		StageConfig{Device: ispDev, Direction: iomap.FromDevice},
		StageConfig{
			Device:    encDev,
			Direction: iomap.ToDevice,
			Process: func(frame *dmabuf.Buffer, table scatterlist.List) error {
				lastTable = table
				return nil
			},
		},
	)
	require.NoError(t, err)
	require.NoError(t, p.Run())

	require.Eventually(t, func() bool { return p.Stages()[1].Stats().Frames >= 40 }, 10*time.Second, time.Millisecond)
	p.Close()

	require.Len(t, lastTable, 1, "contiguous shared memory merges into one range")

	for _, st := range p.Stats() {
		require.Equal(t, uint64(ringSize), st.Cache.Misses)
		require.Positive(t, st.Cache.Hits)
		require.Zero(t, st.Failed)
	}
	require.Positive(t, p.Stats()[1].Cache.Barriers)

	for _, d := range []*iommu.Domain{isp, enc} {
		require.Zero(t, d.Mapped())
		require.Zero(t, d.Stats().Faults)
	}
	for _, frame := range ring {
		require.Zero(t, frame.Refs())
		require.True(t, frame.Shared().Released())
	}
	require.Zero(t, ispDev.Len())
	require.Zero(t, encDev.Len())
}

func TestStageSurvivesFailures(t *testing.T) {
	t.Parallel()

	ring := newRing(t, 2, 4096)
	flaky := iommu.New("flaky", iommu.WithFailEvery(2))
	errReject := errors.New("rejected")

	p, err := New(ring, time.Millisecond, 1,
		StageConfig{Device: mapping.NewDevice("flaky", flaky), Direction: iomap.ToDevice, Attrs: iomap.AttrNoDelayedUnmap},
		StageConfig{
			Device:    mapping.NewDevice("picky", iommu.New("picky")),
			Direction: iomap.ToDevice,
			Process: func(*dmabuf.Buffer, scatterlist.List) error {
				return errReject
			},
		},
	)
	require.NoError(t, err)
	require.NoError(t, p.Run())

	require.Eventually(t, func() bool {
		st := p.Stats()
		return st[0].Failed > 2 && st[0].Frames > 2 && st[1].Failed > 2
	}, 10*time.Second, time.Millisecond)
	p.Close()
	p.Close()

	require.Zero(t, p.Stats()[1].Frames)
	require.Zero(t, flaky.Mapped())
	require.Zero(t, flaky.Stats().Faults)
	for _, frame := range ring {
		require.Zero(t, frame.Refs())
	}
}

func TestCloseBeforeRun(t *testing.T) {
	t.Parallel()

	ring := newRing(t, 2, 4096)
	p, err := New(ring, 0, 1, StageConfig{Device: mapping.NewDevice("idle", iommu.New("idle"))})
	require.NoError(t, err)
	p.Close()

	require.Error(t, p.Run())
	for _, frame := range ring {
		require.Zero(t, frame.Refs())
	}
}
