package tremor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagnitudeRingWindowOrder(t *testing.T) {
	r := NewMagnitudeRing(8)
	for i := 1; i <= 5; i++ {
		r.Push(float64(i))
	}

	w := make([]float64, 4)
	require.NoError(t, r.Window(w))
	assert.Equal(t, []float64{2, 3, 4, 5}, w)
	assert.Equal(t, 5, r.Len())
	assert.False(t, r.Full())
}

func TestMagnitudeRingOverflow(t *testing.T) {
	r := NewMagnitudeRing(4)
	for i := 1; i <= 10; i++ {
		r.Push(float64(i))
	}

	assert.True(t, r.Full())
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, uint64(10), r.Total())
	// 最旧的值被覆盖，顺序仍然是旧 -> 新
	assert.Equal(t, []float64{7, 8, 9, 10}, r.Slice())

	w := make([]float64, 3)
	require.NoError(t, r.Window(w))
	assert.Equal(t, []float64{8, 9, 10}, w)
}

func TestMagnitudeRingWindowAcrossWrap(t *testing.T) {
	// C=312, L=256：写指针绕回后窗口要跨过数组末尾
	r := NewMagnitudeRing(312)
	for i := 0; i < 400; i++ {
		r.Push(float64(i))
	}

	w := make([]float64, 256)
	require.NoError(t, r.Window(w))
	for i, v := range w {
		assert.Equal(t, float64(400-256+i), v)
	}
}

func TestMagnitudeRingColdStartZeroFill(t *testing.T) {
	r := NewMagnitudeRing(8)
	r.Push(1.5)
	r.Push(2.5)

	w := []float64{9, 9, 9, 9, 9}
	require.NoError(t, r.Window(w))
	assert.Equal(t, []float64{0, 0, 0, 1.5, 2.5}, w)
	assert.False(t, r.Ready(5))
	assert.True(t, r.Ready(2))
}

func TestMagnitudeRingWindowBounds(t *testing.T) {
	r := NewMagnitudeRing(4)
	err := r.Window(make([]float64, 5))
	assert.ErrorIs(t, err, ErrWindowBounds)
}

func TestMagnitudeRingWindowEqualsCapacity(t *testing.T) {
	r := NewMagnitudeRing(3)
	for _, v := range []float64{1, 2, 3, 4} {
		r.Push(v)
	}
	w := make([]float64, 3)
	require.NoError(t, r.Window(w))
	assert.Equal(t, []float64{2, 3, 4}, w)
}

func TestMagnitudeRingInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { NewMagnitudeRing(0) })
}
