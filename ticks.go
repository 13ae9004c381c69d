package tremor

import "time"

// TickSource 驱动主循环的节拍
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

// TimerTicks 基于 time.Ticker 的固定间隔节拍
type TimerTicks struct {
	t *time.Ticker
}

func NewTimerTicks(d time.Duration) *TimerTicks {
	return &TimerTicks{t: time.NewTicker(d)}
}

func (t *TimerTicks) C() <-chan time.Time { return t.t.C }
func (t *TimerTicks) Stop()               { t.t.Stop() }

// ManualTicks 手动触发的节拍，用于测试和快速回放
type ManualTicks struct {
	ch chan time.Time
}

func NewManualTicks() *ManualTicks {
	return &ManualTicks{ch: make(chan time.Time)}
}

func (m *ManualTicks) C() <-chan time.Time { return m.ch }
func (m *ManualTicks) Stop()               {}

// Tick 阻塞直到主循环取走这一拍
func (m *ManualTicks) Tick() {
	m.ch <- time.Now()
}
