package Sensor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"tinygo.org/x/drivers"
)

// Backoff 指数退避重试策略
type Backoff struct {
	// Attempts 总尝试次数 (含第一次)，<= 1 表示不重试
	Attempts int
	// MinInterval 第一次重试前的等待，默认 2ms
	MinInterval time.Duration
	// MaxInterval 等待上限，默认 50ms
	MaxInterval time.Duration
	// NoJitter 关闭 ±5% 抖动
	NoJitter bool
	Logger   *slog.Logger

	timer backoff.Timer // 测试时替换
}

// policy 每次调用都新建，ExponentialBackOff 有状态
func (b *Backoff) policy() backoff.BackOff {
	minInterval := b.MinInterval
	if minInterval <= 0 {
		minInterval = 2 * time.Millisecond
	}
	maxInterval := b.MaxInterval
	if maxInterval < minInterval {
		maxInterval = max(50*time.Millisecond, minInterval)
	}
	jitter := 0.05
	if b.NoJitter {
		jitter = 0
	}
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(minInterval),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(jitter),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithMaxRetries(exp, uint64(max(b.Attempts, 1)-1))
}

// Do 执行 task，失败则按退避间隔重试
func (b *Backoff) Do(name string, task func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := task()
		// 协议层明确拒绝，重试没有意义
		if errors.Is(err, ErrTooLong) || errors.Is(err, ErrNotOpen) || errors.Is(err, ErrBadTx) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if b.Logger != nil {
			b.Logger.Debug("[SENSOR] bus error, retrying", "op", name, "attempt", attempt, "wait", wait, "err", err)
		}
	}

	var err error
	if b.timer != nil {
		err = backoff.RetryNotifyWithTimer(op, b.policy(), notify, b.timer)
	} else {
		err = backoff.RetryNotify(op, b.policy(), notify)
	}
	if err == nil && attempt > 1 && b.Logger != nil {
		b.Logger.Debug("[SENSOR] retry succeeded", "op", name, "attempt", attempt)
	}
	return err
}

var _ drivers.I2C = (*RetryBus)(nil)

// RetryBus 给任意 I2C 总线加上重试
type RetryBus struct {
	Bus    drivers.I2C
	Policy *Backoff
}

func (r *RetryBus) Tx(addr uint16, w, rd []byte) error {
	name := "write"
	if len(rd) > 0 {
		name = "read"
	}
	return r.Policy.Do(name, func() error {
		return r.Bus.Tx(addr, w, rd)
	})
}
