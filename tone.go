package tremor

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// 各状态对应的提示音频率 (Hz)
var toneFrequencies = map[Indicator]float64{
	IndicatorTremor:       440,
	IndicatorDyskinesia:   660,
	IndicatorStrongSignal: 880,
}

// ToneSink 用扬声器提示音代替 LED
// SetIndicator 在主循环里调用，音频回调在 malgo 的线程里读取状态
// sampleRate 和 level 只在创建时设置，之后只读
type ToneSink struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	level      float64

	active [4]atomic.Bool
	phase  float64 // 只在音频回调里访问
}

// NewToneSink 创建播放设备，Start 之后才出声
func NewToneSink(sampleRate int, level float64) (*ToneSink, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %w", err)
	}

	ts := &ToneSink{
		ctx:        ctx,
		sampleRate: sampleRate,
		level:      level,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSendFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if len(pOutputSample) == 0 {
			return
		}
		out := unsafe.Slice((*float32)(unsafe.Pointer(&pOutputSample[0])), int(framecount))
		ts.fill(out)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSendFrames,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to init playback device: %w", err)
	}
	ts.device = device
	return ts, nil
}

// SetIndicator 实现 ActuationSink
func (ts *ToneSink) SetIndicator(ind Indicator, on bool) error {
	if int(ind) < 0 || int(ind) >= len(ts.active) {
		return fmt.Errorf("unknown indicator %v", ind)
	}
	ts.active[ind].Store(on)
	return nil
}

// frequency 强信号 > 异动 > 震颤，全灭时返回 0 (静音)
func (ts *ToneSink) frequency() float64 {
	for _, ind := range []Indicator{IndicatorStrongSignal, IndicatorDyskinesia, IndicatorTremor} {
		if ts.active[ind].Load() {
			return toneFrequencies[ind]
		}
	}
	return 0
}

// fill 生成一段正弦波
func (ts *ToneSink) fill(out []float32) {
	freq := ts.frequency()
	if freq == 0 || ts.sampleRate <= 0 {
		for i := range out {
			out[i] = 0
		}
		ts.phase = 0
		return
	}

	inc := 2 * math.Pi * freq / float64(ts.sampleRate)
	for i := range out {
		out[i] = float32(ts.level * math.Sin(ts.phase))
		ts.phase += inc
		if ts.phase > 2*math.Pi {
			ts.phase -= 2 * math.Pi
		}
	}
}

// Start 启动播放
func (ts *ToneSink) Start() error {
	if ts.device == nil {
		return fmt.Errorf("device not initialized")
	}
	return ts.device.Start()
}

// Stop 停止播放并释放资源
func (ts *ToneSink) Stop() {
	if ts.device != nil {
		ts.device.Uninit()
		ts.device = nil
	}
	if ts.ctx != nil {
		_ = ts.ctx.Uninit()
		ts.ctx.Free()
		ts.ctx = nil
	}
}
