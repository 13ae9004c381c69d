package tremor

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRecording 把样本写成 WAV，返回文件路径
func writeRecording(t *testing.T, samples []Sample, rate int) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "motion.wav")
	w, err := NewWavWriter(name, rate, 2.0)
	require.NoError(t, err)
	for _, s := range samples {
		require.NoError(t, w.WriteSample(s))
	}
	require.NoError(t, w.Close())
	return name
}

func TestWavRecordingReplay(t *testing.T) {
	in := []Sample{
		{X: 0.1, Y: -0.2, Z: 1.0},
		{X: -1.5, Y: 0.0, Z: 0.98},
		{X: 3.0, Y: -3.0, Z: 1.02}, // 超出量程，应被削顶
	}
	name := writeRecording(t, in, 104)

	r, err := NewWavReader(name, 2.0)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 104, r.SampleRate)
	assert.Equal(t, 3, r.Channels)
	assert.Equal(t, len(in)*3*2, r.DataSize)

	const lsb = 2.0 / 32767
	for i, want := range in[:2] {
		ready, err := r.PollReady()
		require.NoError(t, err)
		require.True(t, ready)

		got, err := r.ReadSample()
		require.NoError(t, err, "sample %d", i)
		assert.InDelta(t, want.X, got.X, lsb)
		assert.InDelta(t, want.Y, got.Y, lsb)
		assert.InDelta(t, want.Z, got.Z, lsb)
	}

	clipped, err := r.ReadSample()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, clipped.X, lsb)
	assert.InDelta(t, -2.0, clipped.Y, lsb)

	_, err = r.PollReady()
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.ReadSample()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWavReaderRejectsGarbage(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(name, []byte("definitely not a riff file"), 0o644))

	_, err := NewWavReader(name, 2.0)
	assert.Error(t, err)
}
