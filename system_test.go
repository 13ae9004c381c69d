package tremor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers/lsm6ds3tr"

	"tremor/Sensor"
)

// latchSink 记住每个指示器是否亮过
type latchSink struct {
	everOn map[Indicator]bool
	state  map[Indicator]bool
}

func newLatchSink() *latchSink {
	return &latchSink{everOn: make(map[Indicator]bool), state: make(map[Indicator]bool)}
}

func (l *latchSink) SetIndicator(ind Indicator, on bool) error {
	l.state[ind] = on
	if on {
		l.everOn[ind] = true
	}
	return nil
}

func TestTremorSystemReplay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loop.ReportInterval = 0
	cfg.Capture.TraceFile = filepath.Join(t.TempDir(), "trace.csv")

	recording := writeRecording(t, tremorSamples(400, cfg.Sensor.SampleRate), 104)

	sink := newLatchSink()
	sys := NewTremorSystem(cfg, quietLogger())
	sys.Sinks = []ActuationSink{sink}
	sys.SetReplayFile(recording, true)

	require.NoError(t, sys.Start())
	require.NoError(t, sys.Run(context.Background()))
	summary := sys.Stop()

	assert.NotEmpty(t, sys.SessionID)
	assert.True(t, sink.everOn[IndicatorCollecting])
	assert.True(t, sink.everOn[IndicatorTremor])
	assert.False(t, sink.everOn[IndicatorDyskinesia])
	for _, ind := range AllIndicators {
		assert.False(t, sink.state[ind], "%s left on", ind)
	}
	// 回放时每一拍都计入统计
	assert.Equal(t, 400, summary.Ticks)
	assert.Equal(t, 400-cfg.Analysis.WindowLength+1, summary.Analyzed)

	trace, err := os.ReadFile(cfg.Capture.TraceFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(trace)), "\n")
	require.Len(t, lines, 401)
	assert.True(t, strings.HasPrefix(lines[0], "Seq,Magnitude"))
	assert.Contains(t, lines[len(lines)-1], ",tremor,")
}

func TestTremorSystemRunBeforeStart(t *testing.T) {
	sys := NewTremorSystem(nil, quietLogger())
	assert.Error(t, sys.Run(context.Background()))
}

func TestTremorSystemInjectedSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loop.ReportInterval = 0
	cfg.Loop.TickInterval = 1

	sys := NewTremorSystem(cfg, quietLogger())
	sys.Source = &fakeSource{samples: restSamples(50)}
	require.NoError(t, sys.Start())
	require.NoError(t, sys.Run(context.Background()))
	summary := sys.Stop()
	assert.Zero(t, summary.Analyzed)
}

func TestSnapshotRecording(t *testing.T) {
	cfg := DefaultConfig()
	recording := writeRecording(t, tremorSamples(300, cfg.Sensor.SampleRate), 104)

	bins, r, err := SnapshotRecording(recording, cfg)
	require.NoError(t, err)
	assert.Len(t, bins, cfg.Analysis.WindowLength/2)
	assert.Equal(t, ClassTremor, r.Class)

	short := writeRecording(t, restSamples(10), 104)
	_, _, err = SnapshotRecording(short, cfg)
	assert.Error(t, err)
}

// sensorBus 模拟挂在 I2C 上的 LSM6DSL: 复位立即完成，数据一直就绪，Z 轴 1g
type sensorBus struct {
	regs map[byte]byte
}

func newSensorBus(whoAmI byte) *sensorBus {
	return &sensorBus{regs: map[byte]byte{
		lsm6ds3tr.WHO_AM_I:      whoAmI,
		lsm6ds3tr.STATUS:        0x01,
		lsm6ds3tr.OUTZ_L_XL:     0x09, // 16393 LSB
		lsm6ds3tr.OUTZ_L_XL + 1: 0x40,
	}}
}

func (b *sensorBus) Tx(addr uint16, w, r []byte) error {
	reg := w[0]
	if len(r) == 0 {
		for i, v := range w[1:] {
			b.regs[reg+byte(i)] = v
		}
		b.regs[lsm6ds3tr.CTRL3_C] &^= 0x01 // SW_RESET 自动清零
		return nil
	}
	for i := range r {
		r[i] = b.regs[reg+byte(i)]
	}
	return nil
}

func TestTremorSystemIdentityMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensor.SettleDelay = 0

	sys := NewTremorSystem(cfg, quietLogger())
	bus := newSensorBus(0x69)
	sys.Bus = bus

	err := sys.Start()
	require.ErrorIs(t, err, Sensor.ErrIdentityMismatch)
	// 主循环没有启动
	assert.ErrorContains(t, sys.Run(context.Background()), "not started")
	assert.Zero(t, bus.regs[lsm6ds3tr.CTRL1_XL], "sensor must stay unconfigured")
}

func TestTremorSystemInjectedBus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensor.SettleDelay = 0
	cfg.Loop.ReportInterval = 0
	cfg.Loop.TickInterval = time.Millisecond

	sys := NewTremorSystem(cfg, quietLogger())
	bus := newSensorBus(0x6A)
	sys.Bus = bus
	require.NoError(t, sys.Start())
	// 104Hz, ±2g
	assert.Equal(t, byte(0x40), bus.regs[lsm6ds3tr.CTRL1_XL])

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, sys.Run(ctx))
	summary := sys.Stop()
	assert.Greater(t, summary.Ticks, 0)
	assert.Zero(t, summary.Tremor)
}

func TestTremorSystemRejectsUnsupportedRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensor.SettleDelay = 0
	cfg.Sensor.SampleRate = 100

	sys := NewTremorSystem(cfg, quietLogger())
	sys.Bus = newSensorBus(0x6A)
	assert.ErrorIs(t, sys.Start(), Sensor.ErrSampleRate)
}
