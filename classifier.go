package tremor

import "math"

// Classification 运动分类
type Classification int

const (
	ClassNone Classification = iota
	ClassTremor
	ClassDyskinesia
)

func (c Classification) String() string {
	switch c {
	case ClassTremor:
		return "tremor"
	case ClassDyskinesia:
		return "dyskinesia"
	default:
		return "none"
	}
}

// Result 一帧的分类结果
// Tremor / Dyskinesia 由各自频带的计数独立决定，不受 Class 优先级影响，
// 所以判为震颤时异动指示灯也可能同时亮
type Result struct {
	Class        Classification
	Tremor       bool
	Dyskinesia   bool
	StrongSignal bool

	TremorCount     int
	DyskinesiaCount int
	TremorPeak      float64
	DyskinesiaPeak  float64

	// 诊断用，不参与判决
	TremorPeakFreq     float64
	DyskinesiaPeakFreq float64
}

// BandClassifier 按频带能量做判决，本身无状态
type BandClassifier struct {
	tremorMin, tremorMax float64
	tremorThreshold      float64
	tremorMinBins        int
	dyskMin, dyskMax     float64
	dyskThreshold        float64
	dyskMinBins          int
	strongSignal         float64
}

// NewBandClassifier 从配置中读取频带参数
func NewBandClassifier(cfg *Config) *BandClassifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := cfg.Bands
	return &BandClassifier{
		tremorMin:       b.TremorMin,
		tremorMax:       b.TremorMax,
		tremorThreshold: b.TremorThreshold,
		tremorMinBins:   b.TremorMinBins,
		dyskMin:         b.DyskinesiaMin,
		dyskMax:         b.DyskinesiaMax,
		dyskThreshold:   b.DyskinesiaThreshold,
		dyskMinBins:     b.DyskinesiaMinBins,
		strongSignal:    b.StrongSignal,
	}
}

// InTremorBand 震颤频带 [min, max]
func (bc *BandClassifier) InTremorBand(freq float64) bool {
	return freq >= bc.tremorMin && freq <= bc.tremorMax
}

// InDyskinesiaBand 异动频带 (min, max]
func (bc *BandClassifier) InDyskinesiaBand(freq float64) bool {
	return freq > bc.dyskMin && freq <= bc.dyskMax
}

// Classify 扫描 bin 1 .. L/2-1，bin 0 是直流分量，不参与
func (bc *BandClassifier) Classify(bins []Bin) Result {
	var r Result

	for i := 1; i < len(bins); i++ {
		freq := bins[i].Frequency
		amp := bins[i].Amplitude

		if bc.InTremorBand(freq) {
			if amp > r.TremorPeak {
				r.TremorPeak = amp
			}
			if amp >= bc.tremorThreshold {
				r.TremorCount++
			}
		} else if bc.InDyskinesiaBand(freq) {
			if amp > r.DyskinesiaPeak {
				r.DyskinesiaPeak = amp
			}
			if amp >= bc.dyskThreshold {
				r.DyskinesiaCount++
			}
		}
	}

	r.Tremor = r.TremorCount >= bc.tremorMinBins
	r.Dyskinesia = r.DyskinesiaCount >= bc.dyskMinBins

	// 震颤优先
	switch {
	case r.Tremor:
		r.Class = ClassTremor
	case r.Dyskinesia:
		r.Class = ClassDyskinesia
	default:
		r.Class = ClassNone
	}

	r.StrongSignal = r.TremorPeak >= bc.strongSignal || r.DyskinesiaPeak >= bc.strongSignal

	if r.TremorPeak > 0 {
		r.TremorPeakFreq, _ = PeakFrequency(bins, bc.tremorMin, bc.tremorMax)
	}
	if r.DyskinesiaPeak > 0 {
		r.DyskinesiaPeakFreq, _ = PeakFrequency(bins, math.Nextafter(bc.dyskMin, math.Inf(1)), bc.dyskMax)
	}
	return r
}
