package tremor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionMonitorTotals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loop.ReportInterval = 0
	m := NewSessionMonitor(cfg, quietLogger(), nil)
	m.Start()

	in := m.Results()
	in <- TickReport{Ready: true}
	in <- TickReport{Ready: true, Warm: true, Analyzed: true, Result: Result{Class: ClassTremor, TremorPeak: 30}}
	in <- TickReport{Ready: true, Warm: true, Analyzed: true, Result: Result{Class: ClassDyskinesia, StrongSignal: true, DyskinesiaPeak: 90}}
	in <- TickReport{} // 未就绪

	s := m.Stop()
	assert.Equal(t, 3, s.Ticks)
	assert.Equal(t, 2, s.Analyzed)
	assert.Equal(t, 1, s.Tremor)
	assert.Equal(t, 1, s.Dyskinesia)
	assert.Equal(t, 1, s.Strong)
	assert.Equal(t, 30.0, s.PeakTremor)
	assert.Equal(t, 90.0, s.PeakDyskinesia)
}

func TestSessionMonitorPeriodicSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loop.ReportInterval = 10 * time.Millisecond

	summaries := make(chan SessionSummary, 16)
	m := NewSessionMonitor(cfg, quietLogger(), func(s SessionSummary) {
		select {
		case summaries <- s:
		default:
		}
	})
	m.Start()
	defer m.Stop()

	m.Results() <- TickReport{Ready: true, Analyzed: true, Result: Result{Class: ClassTremor}}

	assert.Eventually(t, func() bool {
		for {
			select {
			case s := <-summaries:
				if s.Tremor == 1 {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
}
