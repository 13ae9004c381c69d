package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tremor"
)

// ============================================================================
// 1. 合成运动信号 (Motion Synthesizer)
// ============================================================================

type MotionConfig struct {
	SampleRate  float64   // 104Hz
	Frequencies []float64 // 摆动频率 (Hz)，空表示静止
	Amplitude   float64   // 每个频率分量的幅度 (g)
	NoiseG      float64   // 白噪声标准差 (g)
	Seconds     float64
}

// GenerateMotion 重力在 Z 轴，摆动也沿 Z 轴叠加
// 这样模值 |a| = 1 + z 对摆动是线性的，不会产生倍频
func GenerateMotion(cfg MotionConfig, rng *rand.Rand) []tremor.Sample {
	n := int(cfg.Seconds * cfg.SampleRate)
	out := make([]tremor.Sample, n)
	for i := range out {
		t := float64(i) / cfg.SampleRate
		z := 0.0
		for _, f := range cfg.Frequencies {
			z += cfg.Amplitude * math.Sin(2*math.Pi*f*t)
		}
		out[i] = tremor.Sample{
			X: rng.NormFloat64() * cfg.NoiseG,
			Y: rng.NormFloat64() * cfg.NoiseG,
			Z: 1.0 + z + rng.NormFloat64()*cfg.NoiseG,
		}
	}
	return out
}

func (m MotionConfig) describe() string {
	if len(m.Frequencies) == 0 {
		return "-"
	}
	parts := make([]string, len(m.Frequencies))
	for i, f := range m.Frequencies {
		parts[i] = fmt.Sprintf("%.2f", f)
	}
	return strings.Join(parts, "+")
}

// sliceSource 按顺序吐出预先生成的样本
type sliceSource struct {
	samples []tremor.Sample
	pos     int
}

func (s *sliceSource) PollReady() (bool, error) {
	if s.pos >= len(s.samples) {
		return false, io.EOF
	}
	return true, nil
}

func (s *sliceSource) ReadSample() (tremor.Sample, error) {
	if s.pos >= len(s.samples) {
		return tremor.Sample{}, io.EOF
	}
	v := s.samples[s.pos]
	s.pos++
	return v, nil
}

type nullSink struct{}

func (nullSink) SetIndicator(tremor.Indicator, bool) error { return nil }

// ============================================================================
// 2. 基准测试套件 (Benchmark Harness)
// ============================================================================

type TestCase struct {
	Name   string
	Motion MotionConfig
	Expect tremor.Classification
}

// evaluate 把一段合成运动喂给检测器，统计判对和强信号的窗口数
func evaluate(cfg *tremor.Config, tc TestCase, rng *rand.Rand, log *slog.Logger) (analyzed, hits, strong int, err error) {
	src := &sliceSource{samples: GenerateMotion(tc.Motion, rng)}
	det, err := tremor.NewDetector(cfg, src, nullSink{}, tremor.WithLogger(log))
	if err != nil {
		return 0, 0, 0, err
	}
	for {
		rep, err := det.Tick()
		if err != nil {
			break
		}
		if !rep.Analyzed {
			continue
		}
		analyzed++
		if rep.Result.Class == tc.Expect {
			hits++
		}
		if rep.Result.StrongSignal {
			strong++
		}
	}
	return analyzed, hits, strong, nil
}

func testCases(rate float64) []TestCase {
	// 未加窗时，正好落在 bin 上的 A g 正弦对应幅度 A*L/2 (L=256 时约 128A)
	// 落在两个 bin 之间的频率会泄漏到相邻 bin，震颤需要两个 bin 同时过 14
	return []TestCase{
		{"Rest", MotionConfig{SampleRate: rate, NoiseG: 0.005, Seconds: 20}, tremor.ClassNone},
		{"Tremor 4.3Hz", MotionConfig{SampleRate: rate, Frequencies: []float64{4.3}, Amplitude: 0.3, NoiseG: 0.01, Seconds: 20}, tremor.ClassTremor},
		{"Tremor 3.45Hz weak", MotionConfig{SampleRate: rate, Frequencies: []float64{3.45}, Amplitude: 0.2, NoiseG: 0.01, Seconds: 20}, tremor.ClassTremor},
		// 异动需要三个 bin 过 20，用 bin 14/15/16 上的三个分量
		{"Dyskinesia 5.7-6.5Hz", MotionConfig{SampleRate: rate, Frequencies: []float64{5.6875, 6.09375, 6.5}, Amplitude: 0.3, NoiseG: 0.01, Seconds: 20}, tremor.ClassDyskinesia},
		{"Walking 1.8Hz", MotionConfig{SampleRate: rate, Frequencies: []float64{1.8}, Amplitude: 0.5, NoiseG: 0.02, Seconds: 20}, tremor.ClassNone},
		{"Noisy tremor 3.9Hz", MotionConfig{SampleRate: rate, Frequencies: []float64{3.9}, Amplitude: 0.3, NoiseG: 0.05, Seconds: 20}, tremor.ClassTremor},
	}
}

func RunBenchmark() {
	cfg := tremor.DefaultConfig()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tFREQ(Hz)\tAMP(g)\tNOISE(g)\tEXPECT\tHIT(%)\tSTRONG(%)\tTIME(ms)\tSTATUS")
	fmt.Fprintln(w, "----\t--------\t------\t--------\t------\t------\t---------\t--------\t------")

	for _, tc := range testCases(cfg.Sensor.SampleRate) {
		start := time.Now()
		analyzed, hits, strong, err := evaluate(cfg, tc, rng, quiet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", tc.Name, err)
			continue
		}
		elapsed := time.Since(start)

		hitPct, strongPct := 0.0, 0.0
		if analyzed > 0 {
			hitPct = float64(hits) / float64(analyzed) * 100
			strongPct = float64(strong) / float64(analyzed) * 100
		}
		status := "PASS"
		if hitPct < 90 {
			status = "FAIL"
		} // 90% 的窗口判对算通过

		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.3f\t%s\t%.1f\t%.1f\t%d\t%s\n",
			tc.Name, tc.Motion.describe(), tc.Motion.Amplitude, tc.Motion.NoiseG,
			tc.Expect, hitPct, strongPct, elapsed.Milliseconds(), status)
	}
	w.Flush()
}

// ============================================================================
// Main Entry
// ============================================================================

func main() {
	fmt.Println("Starting Motion Classifier Benchmark Suite...")
	fmt.Println("==============================================")
	RunBenchmark()
}
