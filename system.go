package tremor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"tinygo.org/x/drivers"

	"tremor/Sensor"
)

// TremorSystem 管理整个检测系统的生命周期
type TremorSystem struct {
	// 配置
	cfg       *Config
	log       *slog.Logger
	SessionID string

	// 外部注入；为空时按配置打开硬件
	Source SampleSource
	Sinks  []ActuationSink
	Bus    drivers.I2C // 传感器所在的 I2C 总线，为空时打开串口桥

	// 组件
	bridge    *Sensor.Bridge
	sensor    *Sensor.LSM6DSL
	wavReader *WavReader
	wavWriter *WavWriter
	trace     TraceRecorder
	tone      *ToneSink
	monitor   *SessionMonitor
	detector  *Detector
	ticks     TickSource

	// 状态
	replayFile string
	fastReplay bool
}

// NewTremorSystem 创建系统实例
func NewTremorSystem(cfg *Config, log *slog.Logger) *TremorSystem {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &TremorSystem{
		cfg:       cfg,
		log:       log.With("session", id),
		SessionID: id,
	}
}

// SetReplayFile 设置回放文件 (设置后进入回放模式)
// fast 为 true 时不按采样率节拍，尽快跑完
func (s *TremorSystem) SetReplayFile(filename string, fast bool) {
	s.replayFile = filename
	s.fastReplay = fast
}

// Start 初始化所有组件。传感器身份不符时返回错误，不进入主循环
func (s *TremorSystem) Start() error {
	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 1. 数据源
	if err := s.openSource(); err != nil {
		s.Stop()
		return err
	}

	// 2. 录音 (仅实时模式)
	if cfg.Capture.RecordFile != "" && s.replayFile == "" {
		w, err := NewWavWriter(cfg.Capture.RecordFile, int(cfg.Sensor.SampleRate), cfg.Capture.FullScale)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to create wav file: %w", err)
		}
		s.wavWriter = w
		s.Source = NewRecordingSource(s.Source, w)
		s.log.Info("Recording accelerometer data", "file", cfg.Capture.RecordFile)
	}

	// 3. 指示器
	sink, err := s.openSinks()
	if err != nil {
		s.Stop()
		return err
	}

	// 4. 调试输出
	s.trace = &NoOpDebugger{}
	if cfg.Capture.TraceFile != "" {
		t, err := NewCsvFileDebugger(cfg.Capture.TraceFile)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		s.trace = t
	}

	// 5. 检测器
	s.monitor = NewSessionMonitor(cfg, s.log, nil)
	results := WithResults(s.monitor.Results())
	if s.replayFile != "" {
		// 回放不赶时间，每拍都要计入统计
		results = WithBlockingResults(s.monitor.Results())
	}
	s.detector, err = NewDetector(cfg, s.Source, sink,
		WithLogger(s.log),
		WithTrace(s.trace),
		results,
	)
	if err != nil {
		s.Stop()
		return err
	}
	s.monitor.Start()

	// 6. 节拍
	switch {
	case s.replayFile != "" && s.fastReplay:
		s.ticks = immediateTicks{}
	case s.replayFile != "":
		s.ticks = NewTimerTicks(time.Duration(float64(time.Second) / cfg.Sensor.SampleRate))
	default:
		s.ticks = NewTimerTicks(cfg.Loop.TickInterval)
	}
	return nil
}

// Run 阻塞运行主循环，直到 ctx 取消、回放结束或出现致命错误
func (s *TremorSystem) Run(ctx context.Context) error {
	if s.detector == nil {
		return errors.New("system not started")
	}
	s.log.Info("Detection loop started",
		"rate", s.cfg.Sensor.SampleRate,
		"window", s.cfg.Analysis.WindowLength,
		"coldStart", s.cfg.Analysis.ColdStart,
	)
	return s.detector.Run(ctx, s.ticks)
}

// Stop 停止系统并释放资源，返回本次会话的统计
func (s *TremorSystem) Stop() SessionSummary {
	var summary SessionSummary
	if s.detector != nil && s.detector.Dropped() > 0 {
		s.log.Warn("[MONITOR] reports dropped, summary is incomplete", "dropped", s.detector.Dropped())
	}
	if s.monitor != nil {
		summary = s.monitor.Stop()
		s.monitor = nil
	}
	if s.trace != nil {
		s.trace.Close()
		s.trace = nil
	}
	if s.wavWriter != nil {
		if err := s.wavWriter.Close(); err != nil {
			s.log.Warn("Failed to finalize recording", "err", err)
		}
		s.wavWriter = nil
	}
	if s.wavReader != nil {
		s.wavReader.Close()
		s.wavReader = nil
	}
	if s.tone != nil {
		s.tone.Stop()
		s.tone = nil
	}
	if s.bridge != nil {
		s.bridge.Close()
		s.bridge = nil
	}
	return summary
}

// openSource 回放文件 / 外部注入 / 串口桥接的传感器
func (s *TremorSystem) openSource() error {
	cfg := s.cfg
	if s.replayFile != "" {
		r, err := NewWavReader(s.replayFile, cfg.Capture.FullScale)
		if err != nil {
			return fmt.Errorf("failed to open replay file: %w", err)
		}
		s.wavReader = r
		s.Source = r
		if r.SampleRate > 0 {
			cfg.Sensor.SampleRate = float64(r.SampleRate)
		}
		s.log.Info("Mode: REPLAY", "file", s.replayFile, "rate", r.SampleRate)
		return nil
	}
	if s.Source != nil {
		return nil
	}

	// 实时模式
	odr, err := Sensor.SampleRateFor(cfg.Sensor.SampleRate)
	if err != nil {
		return err
	}
	raw := s.Bus
	if raw == nil {
		s.bridge = Sensor.NewBridge(cfg.Sensor.Port, cfg.Sensor.BaudRate)
		s.log.Info("Connecting to sensor bridge", "port", cfg.Sensor.Port)
		if err := s.bridge.Open(); err != nil {
			s.bridge = nil
			return fmt.Errorf("failed to open serial port: %w", err)
		}
		raw = s.bridge
	}

	bus := &Sensor.RetryBus{
		Bus: raw,
		Policy: &Sensor.Backoff{
			Attempts:    cfg.Sensor.Retries,
			MinInterval: cfg.Sensor.RetryMin,
			MaxInterval: cfg.Sensor.RetryMax,
			Logger:      s.log,
		},
	}
	opts := Sensor.DefaultOptions()
	opts.Address = uint16(cfg.Sensor.Address)
	opts.SampleRate = odr
	opts.SettleDelay = cfg.Sensor.SettleDelay
	opts.Logger = s.log
	s.sensor = Sensor.NewLSM6DSL(bus, opts)
	if err := s.sensor.Init(); err != nil {
		return fmt.Errorf("sensor init failed: %w", err)
	}
	s.Source = NewSensorSource(s.sensor)
	return nil
}

func (s *TremorSystem) openSinks() (ActuationSink, error) {
	cfg := s.cfg
	sinks := MultiSink{NewLogSink(s.log)}
	sinks = append(sinks, s.Sinks...)

	if cfg.Indicators.LEDs {
		leds, err := NewLEDSink(cfg.Indicators.LEDNames)
		if err != nil {
			return nil, fmt.Errorf("failed to open LEDs: %w", err)
		}
		sinks = append(sinks, leds)
	}
	if cfg.Indicators.Tone {
		tone, err := NewToneSink(48000, cfg.Indicators.ToneLevel)
		if err != nil {
			// 没有声卡不影响检测
			s.log.Warn("Tone output unavailable", "err", err)
		} else if err := tone.Start(); err != nil {
			tone.Stop()
			s.log.Warn("Tone output unavailable", "err", err)
		} else {
			s.tone = tone
			sinks = append(sinks, tone)
		}
	}
	return sinks, nil
}

// immediateTicks 已关闭的通道，每次读取立即返回，用于快速回放
type immediateTicks struct{}

var closedTicks = func() chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()

func (immediateTicks) C() <-chan time.Time { return closedTicks }
func (immediateTicks) Stop()               {}

// SnapshotRecording 把整段录音推进缓冲区，对最后一个窗口做一次分析
func SnapshotRecording(filename string, cfg *Config) ([]Bin, Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r, err := NewWavReader(filename, cfg.Capture.FullScale)
	if err != nil {
		return nil, Result{}, err
	}
	defer r.Close()

	rate := cfg.Sensor.SampleRate
	if r.SampleRate > 0 {
		rate = float64(r.SampleRate)
	}
	ring := NewMagnitudeRing(cfg.Analysis.BufferCapacity)
	for {
		sample, err := r.ReadSample()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Result{}, err
		}
		ring.Push(sample.Magnitude())
	}
	if !ring.Ready(cfg.Analysis.WindowLength) {
		return nil, Result{}, fmt.Errorf("recording holds %d samples, need %d", ring.Total(), cfg.Analysis.WindowLength)
	}

	window := make([]float64, cfg.Analysis.WindowLength)
	if err := ring.Window(window); err != nil {
		return nil, Result{}, err
	}
	analyzer := NewSpectrumAnalyzer(rate, cfg.Analysis.WindowLength, nil, cfg.Analysis.Taper)
	bins, err := analyzer.Analyze(window)
	if err != nil {
		return nil, Result{}, err
	}
	return bins, NewBandClassifier(cfg).Classify(bins), nil
}
