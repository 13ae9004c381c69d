package tremor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionSummary 一段时间内的分类统计
type SessionSummary struct {
	Ticks          int // 读到样本的节拍数
	Analyzed       int
	Tremor         int // Class == tremor
	Dyskinesia     int // Class == dyskinesia
	Strong         int
	PeakTremor     float64
	PeakDyskinesia float64
}

func (s *SessionSummary) add(rep TickReport) {
	if rep.Ready {
		s.Ticks++
	}
	if !rep.Analyzed {
		return
	}
	s.Analyzed++
	r := rep.Result
	switch r.Class {
	case ClassTremor:
		s.Tremor++
	case ClassDyskinesia:
		s.Dyskinesia++
	}
	if r.StrongSignal {
		s.Strong++
	}
	s.PeakTremor = max(s.PeakTremor, r.TremorPeak)
	s.PeakDyskinesia = max(s.PeakDyskinesia, r.DyskinesiaPeak)
}

// SessionMonitor 在后台汇总检测结果，按固定周期输出一次摘要
// 主循环通过 WithResults 把结果推进来，这里不会反压主循环
type SessionMonitor struct {
	interval  time.Duration
	log       *slog.Logger
	in        chan TickReport
	OnSummary func(SessionSummary) // 每个周期回调一次

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	total  SessionSummary
	period SessionSummary
}

// NewSessionMonitor 创建实例；cfg.Loop.ReportInterval 为 0 时只做累计不打印
func NewSessionMonitor(cfg *Config, log *slog.Logger, onSummary func(SessionSummary)) *SessionMonitor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionMonitor{
		interval:  cfg.Loop.ReportInterval,
		log:       log,
		in:        make(chan TickReport, 256),
		OnSummary: onSummary,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Results 交给 Detector 的输入通道
func (m *SessionMonitor) Results() chan<- TickReport {
	return m.in
}

// Start 启动后台 goroutine
func (m *SessionMonitor) Start() {
	go m.run()
}

// Stop 停止监控，处理完已排队的结果后返回累计统计
func (m *SessionMonitor) Stop() SessionSummary {
	m.cancel()
	<-m.done
	return m.Total()
}

// Total 当前累计统计
func (m *SessionMonitor) Total() SessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

func (m *SessionMonitor) run() {
	defer close(m.done)

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-m.ctx.Done():
			// 把剩下的结果收完
			for {
				select {
				case rep := <-m.in:
					m.record(rep)
				default:
					return
				}
			}
		case rep := <-m.in:
			m.record(rep)
		case <-tick:
			m.flush()
		}
	}
}

func (m *SessionMonitor) record(rep TickReport) {
	m.mu.Lock()
	m.total.add(rep)
	m.period.add(rep)
	m.mu.Unlock()
}

// flush 输出本周期摘要并清零
func (m *SessionMonitor) flush() {
	m.mu.Lock()
	s := m.period
	m.period = SessionSummary{}
	m.mu.Unlock()

	m.log.Info("[MONITOR] summary",
		"ticks", s.Ticks,
		"analyzed", s.Analyzed,
		"tremor", s.Tremor,
		"dyskinesia", s.Dyskinesia,
		"strong", s.Strong,
	)
	if m.OnSummary != nil {
		m.OnSummary(s)
	}
}
