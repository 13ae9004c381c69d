package tremor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// TickReport 一次节拍的处理结果
type TickReport struct {
	Seq       uint64
	Ready     bool    // 本拍是否读到了样本
	Warm      bool    // 缓冲区是否已经攒够一个窗口
	Analyzed  bool    // 是否完成了频谱分析和分类
	Magnitude float64 // 本拍样本的模值
	Result    Result
}

// DetectorOption 可选项
type DetectorOption func(*Detector)

// WithLogger 指定日志，nil 保留默认
func WithLogger(log *slog.Logger) DetectorOption {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

// WithTrace 逐帧写调试数据
func WithTrace(t TraceRecorder) DetectorOption {
	return func(d *Detector) { d.trace = t }
}

// WithResults 把每拍结果推给后台消费者 (满了就丢，不阻塞主循环)
func WithResults(ch chan<- TickReport) DetectorOption {
	return func(d *Detector) {
		d.results = ch
		d.blocking = false
	}
}

// WithBlockingResults 同上，但等消费者取走，回放时用，保证一拍不丢
func WithBlockingResults(ch chan<- TickReport) DetectorOption {
	return func(d *Detector) {
		d.results = ch
		d.blocking = true
	}
}

// WithTransform 替换 FFT 实现
func WithTransform(t SpectralTransform) DetectorOption {
	return func(d *Detector) { d.transform = t }
}

// Detector 拥有环形缓冲区和变换工作区，只能在一个 goroutine 里使用
type Detector struct {
	cfg        *Config
	source     SampleSource
	sink       ActuationSink
	log        *slog.Logger
	trace      TraceRecorder
	results    chan<- TickReport
	blocking   bool
	dropped    uint64
	transform  SpectralTransform
	ring       *MagnitudeRing
	window     []float64
	analyzer   *SpectrumAnalyzer
	classifier *BandClassifier

	seq       uint64
	lastClass Classification
	prevMag   float64
}

// NewDetector 创建检测器
func NewDetector(cfg *Config, source SampleSource, sink ActuationSink, opts ...DetectorOption) (*Detector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || sink == nil {
		return nil, errors.New("detector needs a sample source and an actuation sink")
	}

	d := &Detector{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		log:     slog.Default(),
		trace:   &NoOpDebugger{},
		prevMag: 1.0, // 静止时约 1g
	}
	for _, opt := range opts {
		opt(d)
	}

	d.ring = NewMagnitudeRing(cfg.Analysis.BufferCapacity)
	d.window = make([]float64, cfg.Analysis.WindowLength)
	d.analyzer = NewSpectrumAnalyzer(cfg.Sensor.SampleRate, cfg.Analysis.WindowLength, d.transform, cfg.Analysis.Taper)
	d.classifier = NewBandClassifier(cfg)
	return d, nil
}

// Ring 只读访问，供测试和绘图使用
func (d *Detector) Ring() *MagnitudeRing {
	return d.ring
}

// Tick 处理一拍: 读样本 -> 入缓冲 -> 取窗口 -> 频谱 -> 分类 -> 指示器
// 只有破坏不变量的错误和数据源结束 (io.EOF) 会返回 error
func (d *Detector) Tick() (TickReport, error) {
	d.seq++
	rep := TickReport{Seq: d.seq}

	ready, err := d.source.PollReady()
	if err != nil {
		return d.sourceError(rep, "poll", err)
	}
	if !ready {
		return rep, nil
	}
	s, err := d.source.ReadSample()
	if err != nil {
		return d.sourceError(rep, "read", err)
	}

	rep.Ready = true
	rep.Magnitude = s.Magnitude()
	d.ring.Push(rep.Magnitude)

	if math.Abs(rep.Magnitude-d.prevMag) > 0.05 {
		d.log.Debug("[DETECT] magnitude changed", "g", fmt.Sprintf("%.2f", rep.Magnitude))
		d.prevMag = rep.Magnitude
	}

	rep.Warm = d.ring.Ready(len(d.window))
	d.setIndicator(IndicatorCollecting, !rep.Warm)

	if !rep.Warm && d.cfg.Analysis.ColdStart == ColdStartGate {
		d.publish(rep)
		return rep, nil
	}

	if err := d.ring.Window(d.window); err != nil {
		return rep, err
	}

	bins, err := d.analyzer.Analyze(d.window)
	if err != nil {
		if errors.Is(err, ErrTransformInit) {
			// 下一拍重试
			d.log.Warn("[DETECT] spectral transform unavailable, skipping tick", "seq", rep.Seq, "err", err)
			d.publish(rep)
			return rep, nil
		}
		return rep, err
	}

	rep.Result = d.classifier.Classify(bins)
	rep.Analyzed = true

	if err := ApplyResult(d.sink, rep.Result); err != nil {
		d.log.Warn("[DETECT] indicator update failed", "err", err)
	}
	if rep.Result.Class != d.lastClass {
		d.log.Info("[DETECT] classification changed",
			"from", d.lastClass.String(),
			"to", rep.Result.Class.String(),
			"tremorBins", rep.Result.TremorCount,
			"dyskinesiaBins", rep.Result.DyskinesiaCount,
			"strong", rep.Result.StrongSignal,
		)
		d.lastClass = rep.Result.Class
	}

	d.publish(rep)
	return rep, nil
}

// Run 每收到一个节拍执行一次 Tick，直到 ctx 取消或出现致命错误
// 退出时关闭全部指示器
func (d *Detector) Run(ctx context.Context, ticks TickSource) error {
	defer ticks.Stop()
	defer func() {
		if err := AllOff(d.sink); err != nil {
			d.log.Warn("[DETECT] failed to clear indicators", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks.C():
			if _, err := d.Tick(); err != nil {
				if errors.Is(err, io.EOF) {
					d.log.Info("[DETECT] sample source exhausted", "ticks", d.seq)
					return nil
				}
				return err
			}
		}
	}
}

// sourceError 总线瞬时故障只跳过本拍，数据源结束则上报
func (d *Detector) sourceError(rep TickReport, op string, err error) (TickReport, error) {
	if errors.Is(err, io.EOF) {
		return rep, err
	}
	d.log.Warn("[DETECT] sample "+op+" failed, skipping tick", "seq", rep.Seq, "err", err)
	return rep, nil
}

func (d *Detector) setIndicator(ind Indicator, on bool) {
	if err := d.sink.SetIndicator(ind, on); err != nil {
		d.log.Warn("[DETECT] indicator update failed", "indicator", ind.String(), "err", err)
	}
}

func (d *Detector) publish(rep TickReport) {
	d.trace.Record(rep)
	if d.results == nil {
		return
	}
	if d.blocking {
		d.results <- rep
		return
	}
	select {
	case d.results <- rep:
	default:
		// 消费者跟不上，丢弃以免阻塞主循环
		d.dropped++
		if d.dropped == 1 || d.dropped%100 == 0 {
			d.log.Warn("[DETECT] result consumer lagging, report dropped", "seq", rep.Seq, "dropped", d.dropped)
		}
	}
}

// Dropped 因消费者跟不上而丢弃的结果数
func (d *Detector) Dropped() uint64 {
	return d.dropped
}
