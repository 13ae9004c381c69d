package tremor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// makeBins 按默认配置 (104Hz, L=256) 生成 L/2 个 bin，amps 指定非零幅度
func makeBins(amps map[int]float64) []Bin {
	cfg := DefaultConfig()
	res := cfg.Sensor.SampleRate / float64(cfg.Analysis.WindowLength)
	bins := make([]Bin, cfg.Analysis.WindowLength/2)
	for i := range bins {
		bins[i] = Bin{Index: i, Frequency: float64(i) * res, Amplitude: amps[i]}
	}
	return bins
}

func TestClassifyScenarios(t *testing.T) {
	bc := NewBandClassifier(DefaultConfig())

	tests := []struct {
		name       string
		amps       map[int]float64
		class      Classification
		tremor     bool
		dyskinesia bool
		strong     bool
	}{
		{
			name:   "two tremor bins above threshold",
			amps:   map[int]float64{10: 20, 11: 20}, // 4.06Hz, 4.47Hz
			class:  ClassTremor,
			tremor: true,
		},
		{
			name:   "single strong tremor bin",
			amps:   map[int]float64{10: 85},
			class:  ClassNone,
			strong: true,
		},
		{
			name:       "three dyskinesia bins",
			amps:       map[int]float64{13: 21, 14: 21, 15: 21}, // 5.28 .. 6.09Hz
			class:      ClassDyskinesia,
			dyskinesia: true,
		},
		{
			name:  "empty spectrum",
			amps:  nil,
			class: ClassNone,
		},
		{
			name:  "two dyskinesia bins are not enough",
			amps:  map[int]float64{13: 50, 14: 50},
			class: ClassNone,
		},
		{
			name:  "below tremor threshold",
			amps:  map[int]float64{9: 13.9, 10: 13.9, 11: 13.9},
			class: ClassNone,
		},
		{
			name:   "two tremor bins exactly at threshold",
			amps:   map[int]float64{10: 14.0, 11: 14.0},
			class:  ClassTremor,
			tremor: true,
		},
		{
			name:       "three dyskinesia bins exactly at threshold",
			amps:       map[int]float64{13: 20.0, 14: 20.0, 15: 20.0},
			class:      ClassDyskinesia,
			dyskinesia: true,
		},
		{
			name:  "dyskinesia bins just below threshold",
			amps:  map[int]float64{13: 19.99, 14: 19.99, 15: 19.99},
			class: ClassNone,
		},
		{
			name:  "peak just below strong signal",
			amps:  map[int]float64{10: 79.99},
			class: ClassNone,
		},
		{
			name:   "peak exactly at strong signal",
			amps:   map[int]float64{10: 80.0},
			class:  ClassNone,
			strong: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bc.Classify(makeBins(tt.amps))
			assert.Equal(t, tt.class, r.Class)
			assert.Equal(t, tt.tremor, r.Tremor)
			assert.Equal(t, tt.dyskinesia, r.Dyskinesia)
			assert.Equal(t, tt.strong, r.StrongSignal)
		})
	}
}

func TestClassifyTremorPriority(t *testing.T) {
	bc := NewBandClassifier(DefaultConfig())
	r := bc.Classify(makeBins(map[int]float64{
		10: 20, 11: 20,
		13: 30, 14: 30, 15: 30,
	}))

	assert.Equal(t, ClassTremor, r.Class)
	// 两个频带的指示独立于优先级
	assert.True(t, r.Tremor)
	assert.True(t, r.Dyskinesia)
	assert.Equal(t, 2, r.TremorCount)
	assert.Equal(t, 3, r.DyskinesiaCount)
}

func TestClassifyIgnoresDC(t *testing.T) {
	bc := NewBandClassifier(DefaultConfig())
	r := bc.Classify(makeBins(map[int]float64{0: 500}))

	assert.Equal(t, ClassNone, r.Class)
	assert.False(t, r.StrongSignal)
	assert.Zero(t, r.TremorPeak)
}

func TestClassifyBandEdges(t *testing.T) {
	cfg := DefaultConfig()
	bc := NewBandClassifier(cfg)

	assert.True(t, bc.InTremorBand(3.0))
	assert.True(t, bc.InTremorBand(5.0))
	assert.False(t, bc.InTremorBand(5.01))
	assert.False(t, bc.InDyskinesiaBand(5.0))
	assert.True(t, bc.InDyskinesiaBand(7.0))
	assert.False(t, bc.InDyskinesiaBand(7.01))

	// 5.0Hz 正好落在 bin 上时只算震颤
	bins := []Bin{{0, 0, 0}, {1, 5.0, 30}, {2, 5.0, 30}, {3, 5.0, 30}}
	r := bc.Classify(bins)
	assert.Equal(t, 3, r.TremorCount)
	assert.Zero(t, r.DyskinesiaCount)
}

func TestClassifyStrongSignalFromDyskinesiaBand(t *testing.T) {
	bc := NewBandClassifier(DefaultConfig())
	r := bc.Classify(makeBins(map[int]float64{16: 80}))

	assert.True(t, r.StrongSignal)
	assert.Equal(t, ClassNone, r.Class)
	assert.Equal(t, 80.0, r.DyskinesiaPeak)
}

func TestClassifyIsPure(t *testing.T) {
	bc := NewBandClassifier(DefaultConfig())
	bins := makeBins(map[int]float64{10: 20, 11: 20, 12: 5})
	before := append([]Bin(nil), bins...)

	first := bc.Classify(bins)
	second := bc.Classify(bins)
	assert.Equal(t, first, second)
	assert.Equal(t, before, bins)
}

func TestClassifyPeakFrequency(t *testing.T) {
	bc := NewBandClassifier(DefaultConfig())
	r := bc.Classify(makeBins(map[int]float64{9: 10, 10: 40, 11: 10}))

	// 左右对称，插值结果就是 bin 10
	assert.InDelta(t, 10*0.40625, r.TremorPeakFreq, 1e-9)
	assert.Equal(t, 40.0, r.TremorPeak)
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "none", ClassNone.String())
	assert.Equal(t, "tremor", ClassTremor.String())
	assert.Equal(t, "dyskinesia", ClassDyskinesia.String())
}
