package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSizeClasses(t *testing.T) {
	t.Parallel()

	small := Get(100)
	require.Equal(t, 100, small.Len())
	require.Equal(t, classes[0], small.Cap())
	small.Release()

	frame := Get(classes[1] + 1)
	require.Equal(t, classes[1]+1, frame.Len())
	require.Equal(t, classes[2], frame.Cap())
	frame.Release()

	huge := Get(classes[len(classes)-1] + 1)
	require.Equal(t, classes[len(classes)-1]+1, huge.Cap())
	huge.Release()
	huge.Release()
}

func TestGetIsZeroed(t *testing.T) {
	t.Parallel()

	for range 4 {
		b := Get(512)
		for _, c := range b.Data() {
			require.Zero(t, c)
		}
		copy(b.Data(), "frame")
		b.Release()
	}
}

func TestAnonRegionViews(t *testing.T) {
	t.Parallel()

	r, err := NewAnonRegion(10000)
	require.NoError(t, err)

	v := r.View(0, 10000)
	require.Equal(t, 10000, v.Len())
	v.Data()[9999] = 0x7f

	sub := r.View(9990, 10)
	require.Equal(t, byte(0x7f), sub.Data()[9])
	require.Panics(t, func() { r.View(9999, 2) })

	r.Release()
	sub.Release()
	require.Equal(t, int32(1), r.refs.Load())
	v.Release()
	require.Equal(t, int32(0), r.refs.Load())
	require.Nil(t, r.data)
}
