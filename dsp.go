package tremor

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// ErrTransformInit 变换初始化失败，本次跳过，下一帧重试
var ErrTransformInit = errors.New("spectral transform init failed")

// SpectralTransform 外部 FFT 实现
type SpectralTransform interface {
	Init(length int) (TransformPlan, error)
}

// TransformPlan 已初始化的变换，输出 length 个复数 (实部/虚部)
type TransformPlan interface {
	Forward(in []float64) ([]complex128, error)
}

// FFTTransform 基于 go-dsp 的默认实现
type FFTTransform struct{}

// Init 只接受 2 的幂长度
func (FFTTransform) Init(length int) (TransformPlan, error) {
	if length <= 0 || length&(length-1) != 0 {
		return nil, fmt.Errorf("fft length %d is not a power of two", length)
	}
	return &fftPlan{size: length}, nil
}

type fftPlan struct {
	size int
}

func (p *fftPlan) Forward(in []float64) ([]complex128, error) {
	if len(in) != p.size {
		return nil, fmt.Errorf("fft input length %d, plan length %d", len(in), p.size)
	}
	return fft.FFTReal(in), nil
}

// Bin 单个频点
type Bin struct {
	Index     int
	Frequency float64
	Amplitude float64
}

// SpectrumAnalyzer 用于频谱分析: 调用变换并换算每个 bin 的频率和幅度
type SpectrumAnalyzer struct {
	SampleRate float64
	FFTSize    int
	Window     []float64 // 窗函数系数，nil 表示不加窗

	transform SpectralTransform
	plan      TransformPlan
	input     []float64 // 加窗后的输入，每帧复用
	bins      []Bin     // 输出，每帧复用
}

// NewSpectrumAnalyzer 创建新的频谱分析器
// taper: none / hann / blackman
func NewSpectrumAnalyzer(sampleRate float64, fftSize int, transform SpectralTransform, taper string) *SpectrumAnalyzer {
	if transform == nil {
		transform = FFTTransform{}
	}

	var w []float64
	switch taper {
	case "hann":
		w = window.Hann(fftSize)
	case "blackman":
		w = window.Blackman(fftSize)
	}

	return &SpectrumAnalyzer{
		SampleRate: sampleRate,
		FFTSize:    fftSize,
		Window:     w,
		transform:  transform,
		input:      make([]float64, fftSize),
		bins:       make([]Bin, fftSize/2),
	}
}

// Resolution 频率分辨率 R / L
func (sa *SpectrumAnalyzer) Resolution() float64 {
	return sa.SampleRate / float64(sa.FFTSize)
}

// Analyze 对一个窗口做变换，返回前 L/2 个 bin (后一半是镜像，丢弃)
// 返回的切片在下一次调用时会被覆盖
func (sa *SpectrumAnalyzer) Analyze(samples []float64) ([]Bin, error) {
	if len(samples) != sa.FFTSize {
		return nil, fmt.Errorf("window length %d, analyzer size %d", len(samples), sa.FFTSize)
	}

	// 变换未就绪时每次都重新尝试初始化
	if sa.plan == nil {
		plan, err := sa.transform.Init(sa.FFTSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransformInit, err)
		}
		sa.plan = plan
	}

	// 1. 应用窗函数
	for i, v := range samples {
		if sa.Window != nil {
			v *= sa.Window[i]
		}
		sa.input[i] = v
	}

	// 2. 执行 FFT
	spectrum, err := sa.plan.Forward(sa.input)
	if err != nil {
		sa.plan = nil
		return nil, fmt.Errorf("%w: %v", ErrTransformInit, err)
	}
	if len(spectrum) < sa.FFTSize/2 {
		return nil, fmt.Errorf("transform returned %d points, want %d", len(spectrum), sa.FFTSize)
	}

	// 3. 幅度谱
	res := sa.Resolution()
	for i := range sa.bins {
		sa.bins[i] = Bin{
			Index:     i,
			Frequency: float64(i) * res,
			Amplitude: cmplx.Abs(spectrum[i]),
		}
	}
	return sa.bins, nil
}

// PeakFrequency 在 [minFreq, maxFreq] 内寻找最强 bin，并用抛物线插值细化频率
// 返回频率和幅度；范围内没有 bin 时返回 0, 0
func PeakFrequency(bins []Bin, minFreq, maxFreq float64) (float64, float64) {
	maxIndex := -1
	maxMag := 0.0
	for i, b := range bins {
		// 第一个 bin 是直流分量
		if i == 0 || b.Frequency < minFreq || b.Frequency > maxFreq {
			continue
		}
		if maxIndex == -1 || b.Amplitude > maxMag {
			maxMag = b.Amplitude
			maxIndex = i
		}
	}
	if maxIndex == -1 || maxMag == 0 {
		return 0, 0
	}

	freq := bins[maxIndex].Frequency
	if maxIndex <= 0 || maxIndex >= len(bins)-1 {
		return freq, maxMag
	}

	// p = 0.5 * (alpha - gamma) / (alpha - 2*beta + gamma)
	alpha := bins[maxIndex-1].Amplitude
	beta := maxMag
	gamma := bins[maxIndex+1].Amplitude
	denom := alpha - 2*beta + gamma
	if denom == 0 {
		return freq, maxMag
	}
	p := 0.5 * (alpha - gamma) / denom
	if math.Abs(p) > 1 {
		return freq, maxMag
	}
	binWidth := bins[1].Frequency - bins[0].Frequency
	return freq + p*binWidth, maxMag
}
