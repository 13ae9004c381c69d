package tremor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 104.0
	testFFTSize    = 256
)

// 生成正弦波辅助函数
func generateSineWave(freq, amplitude, offset float64, n int, sampleRate float64) []float64 {
	data := make([]float64, n)
	for i := range data {
		t := float64(i) / sampleRate
		data[i] = offset + amplitude*math.Sin(2*math.Pi*freq*t)
	}
	return data
}

func TestSpectrumAnalyzerResolution(t *testing.T) {
	sa := NewSpectrumAnalyzer(testSampleRate, testFFTSize, nil, "none")
	assert.Equal(t, 0.40625, sa.Resolution())
}

func TestSpectrumAnalyzerBinAmplitude(t *testing.T) {
	sa := NewSpectrumAnalyzer(testSampleRate, testFFTSize, nil, "none")

	// 精准落在 bin 10 上 (4.0625Hz)，幅度 1 的正弦对应 L/2
	freq := 10 * sa.Resolution()
	bins, err := sa.Analyze(generateSineWave(freq, 1.0, 1.0, testFFTSize, testSampleRate))
	require.NoError(t, err)
	require.Len(t, bins, testFFTSize/2)

	assert.InDelta(t, 128.0, bins[10].Amplitude, 1e-6)
	assert.InDelta(t, 256.0, bins[0].Amplitude, 1e-6, "DC of a 1g offset")
	assert.InDelta(t, 0.0, bins[20].Amplitude, 1e-6)
	assert.Equal(t, 10, bins[10].Index)
	assert.InDelta(t, 4.0625, bins[10].Frequency, 1e-12)
}

func TestSpectrumAnalyzerTaper(t *testing.T) {
	sa := NewSpectrumAnalyzer(testSampleRate, testFFTSize, nil, "hann")
	require.Len(t, sa.Window, testFFTSize)

	bins, err := sa.Analyze(generateSineWave(10*sa.Resolution(), 1.0, 0, testFFTSize, testSampleRate))
	require.NoError(t, err)
	// Hann 窗的相干增益约为 0.5
	assert.InDelta(t, 64.0, bins[10].Amplitude, 1.0)
}

func TestSpectrumAnalyzerLengthMismatch(t *testing.T) {
	sa := NewSpectrumAnalyzer(testSampleRate, testFFTSize, nil, "none")
	_, err := sa.Analyze(make([]float64, 100))
	assert.Error(t, err)
}

// flakyTransform 前 failures 次初始化失败
type flakyTransform struct {
	failures int
	inits    int
}

func (f *flakyTransform) Init(length int) (TransformPlan, error) {
	f.inits++
	if f.inits <= f.failures {
		return nil, errors.New("no memory for plan")
	}
	return FFTTransform{}.Init(length)
}

func TestSpectrumAnalyzerRetriesInit(t *testing.T) {
	tr := &flakyTransform{failures: 2}
	sa := NewSpectrumAnalyzer(testSampleRate, testFFTSize, tr, "none")
	in := make([]float64, testFFTSize)

	for i := 0; i < 2; i++ {
		_, err := sa.Analyze(in)
		assert.ErrorIs(t, err, ErrTransformInit)
	}
	_, err := sa.Analyze(in)
	require.NoError(t, err)

	// 初始化成功后不再重复
	_, err = sa.Analyze(in)
	require.NoError(t, err)
	assert.Equal(t, 3, tr.inits)
}

func TestFFTTransformRejectsNonPowerOfTwo(t *testing.T) {
	_, err := FFTTransform{}.Init(300)
	assert.Error(t, err)
	_, err = FFTTransform{}.Init(256)
	assert.NoError(t, err)
}

func TestPeakFrequencyInterpolation(t *testing.T) {
	sa := NewSpectrumAnalyzer(testSampleRate, testFFTSize, nil, "hann")

	// 4.3Hz 落在 bin 10 和 bin 11 之间
	target := 4.3
	bins, err := sa.Analyze(generateSineWave(target, 0.2, 0, testFFTSize, testSampleRate))
	require.NoError(t, err)

	freq, amp := PeakFrequency(bins, 3, 5)
	assert.InDelta(t, target, freq, sa.Resolution()/2)
	assert.Greater(t, amp, 0.0)

	// 超出奈奎斯特频率，范围内没有 bin
	freq, amp = PeakFrequency(bins, 60, 70)
	assert.Zero(t, freq)
	assert.Zero(t, amp)
}

func TestPeakFrequencySkipsDCByPosition(t *testing.T) {
	// 手工构造的 bin 没有填 Index
	bins := []Bin{
		{Frequency: 0, Amplitude: 500},
		{Frequency: 1, Amplitude: 2},
		{Frequency: 2, Amplitude: 9},
		{Frequency: 3, Amplitude: 4},
	}
	freq, amp := PeakFrequency(bins, 0, 3)
	assert.InDelta(t, 2.0, freq, 0.5)
	assert.Equal(t, 9.0, amp)

	// 只剩直流时没有峰
	freq, amp = PeakFrequency(bins[:1], 0, 3)
	assert.Zero(t, freq)
	assert.Zero(t, amp)
}
