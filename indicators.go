package tremor

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3/sysfs"
)

// Indicator 状态指示器
type Indicator int

const (
	IndicatorTremor Indicator = iota
	IndicatorDyskinesia
	IndicatorStrongSignal
	IndicatorCollecting
)

// AllIndicators 全部指示器，顺序固定
var AllIndicators = []Indicator{IndicatorTremor, IndicatorDyskinesia, IndicatorStrongSignal, IndicatorCollecting}

func (i Indicator) String() string {
	switch i {
	case IndicatorTremor:
		return "tremor"
	case IndicatorDyskinesia:
		return "dyskinesia"
	case IndicatorStrongSignal:
		return "strongSignal"
	case IndicatorCollecting:
		return "collecting"
	default:
		return fmt.Sprintf("indicator(%d)", int(i))
	}
}

// ActuationSink 指示器输出接口，只写不读
type ActuationSink interface {
	SetIndicator(ind Indicator, on bool) error
}

// ApplyResult 根据分类结果驱动指示器
// 震颤和异动灯分别看各自的计数，可以同时亮
func ApplyResult(sink ActuationSink, r Result) error {
	return errors.Join(
		sink.SetIndicator(IndicatorTremor, r.Tremor),
		sink.SetIndicator(IndicatorDyskinesia, r.Dyskinesia),
		sink.SetIndicator(IndicatorStrongSignal, r.StrongSignal),
	)
}

// AllOff 关闭所有指示器
func AllOff(sink ActuationSink) error {
	var errs []error
	for _, ind := range AllIndicators {
		errs = append(errs, sink.SetIndicator(ind, false))
	}
	return errors.Join(errs...)
}

// MultiSink 把同一个状态分发给多个输出
type MultiSink []ActuationSink

func (m MultiSink) SetIndicator(ind Indicator, on bool) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SetIndicator(ind, on))
	}
	return errors.Join(errs...)
}

// LogSink 只在状态变化时打印日志，没有硬件时使用
type LogSink struct {
	log   *slog.Logger
	state map[Indicator]bool
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log, state: make(map[Indicator]bool)}
}

func (s *LogSink) SetIndicator(ind Indicator, on bool) error {
	prev, seen := s.state[ind]
	if seen && prev == on {
		return nil
	}
	s.state[ind] = on
	if !seen && !on {
		return nil
	}
	s.log.Info("[INDICATOR] "+ind.String(), "on", on)
	return nil
}

// LEDSink 通过 periph 的 sysfs LED 驱动 (/sys/class/leds) 点灯
type LEDSink struct {
	leds  map[Indicator]gpio.PinOut
	state map[Indicator]bool
}

// NewLEDSink names 为指示器名到 LED 名的映射，没有映射的指示器直接忽略
func NewLEDSink(names map[string]string) (*LEDSink, error) {
	if _, err := driverreg.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	return newLEDSink(names, func(name string) (gpio.PinOut, error) {
		return sysfs.LEDByName(name)
	})
}

func newLEDSink(names map[string]string, lookup func(string) (gpio.PinOut, error)) (*LEDSink, error) {
	s := &LEDSink{
		leds:  make(map[Indicator]gpio.PinOut),
		state: make(map[Indicator]bool),
	}
	for _, ind := range AllIndicators {
		name, ok := names[ind.String()]
		if !ok || name == "" {
			continue
		}
		led, err := lookup(name)
		if err != nil {
			return nil, fmt.Errorf("led %s for %s: %w", name, ind, err)
		}
		s.leds[ind] = led
	}
	return s, nil
}

func (s *LEDSink) SetIndicator(ind Indicator, on bool) error {
	led, ok := s.leds[ind]
	if !ok {
		return nil
	}
	if prev, seen := s.state[ind]; seen && prev == on {
		return nil
	}
	if err := led.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("set led %s: %w", led, err)
	}
	s.state[ind] = on
	return nil
}
