package main

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tremor"
)

func TestGenerateMotionOscillatesAlongGravity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := GenerateMotion(MotionConfig{SampleRate: 104, Frequencies: []float64{4.3}, Amplitude: 0.3, Seconds: 1}, rng)
	require.Len(t, samples, 104)

	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		assert.Zero(t, s.X)
		assert.Zero(t, s.Y)
		minZ = math.Min(minZ, s.Z)
		maxZ = math.Max(maxZ, s.Z)
		// 模值对摆动是线性的
		assert.InDelta(t, s.Z, s.Magnitude(), 1e-12)
	}
	assert.InDelta(t, 1.3, maxZ, 0.01)
	assert.InDelta(t, 0.7, minZ, 0.01)
}

func TestBenchmarkCasesClassify(t *testing.T) {
	cfg := tremor.DefaultConfig()
	rng := rand.New(rand.NewSource(42))
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tc := range testCases(cfg.Sensor.SampleRate) {
		t.Run(tc.Name, func(t *testing.T) {
			analyzed, hits, strong, err := evaluate(cfg, tc, rng, quiet)
			require.NoError(t, err)
			require.Positive(t, analyzed)
			assert.GreaterOrEqual(t, float64(hits)/float64(analyzed), 0.9)
			assert.Zero(t, strong)
		})
	}
}
