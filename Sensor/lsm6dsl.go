package Sensor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm6ds3tr"
)

// lsm6ds3tr 没有导出的位定义
const (
	ctrl3SwReset = 0x01
	ctrl3IfInc   = 0x04
	ctrl3BDU     = 0x40
	statusXLDA   = 0x01
)

var (
	ErrIdentityMismatch = errors.New("device id mismatch, I2C may not be connected")
	ErrResetTimeout     = errors.New("software reset did not complete")
	ErrSampleRate       = errors.New("unsupported output data rate")
)

// Acceleration 三轴加速度 (g)
type Acceleration struct {
	X, Y, Z float64
}

// Options 初始化参数
type Options struct {
	Address     uint16 // 7 位 I2C 地址，0 用驱动默认的 0x6A
	AccelRange  lsm6ds3tr.AccelRange
	SampleRate  lsm6ds3tr.AccelSampleRate
	SettleDelay time.Duration // 上电后等待
	ResetPolls  int           // 复位位轮询上限
	Logger      *slog.Logger
}

// DefaultOptions 104Hz，±2g
func DefaultOptions() Options {
	return Options{
		Address:     lsm6ds3tr.Address,
		AccelRange:  lsm6ds3tr.ACCEL_2G,
		SampleRate:  lsm6ds3tr.ACCEL_SR_104,
		SettleDelay: 500 * time.Millisecond,
		ResetPolls:  100,
	}
}

// SampleRateFor 把 Hz 换成 CTRL1_XL 的 ODR 位
func SampleRateFor(hz float64) (lsm6ds3tr.AccelSampleRate, error) {
	switch hz {
	case 12.5, 13:
		return lsm6ds3tr.ACCEL_SR_13, nil
	case 26:
		return lsm6ds3tr.ACCEL_SR_26, nil
	case 52:
		return lsm6ds3tr.ACCEL_SR_52, nil
	case 104:
		return lsm6ds3tr.ACCEL_SR_104, nil
	case 208:
		return lsm6ds3tr.ACCEL_SR_208, nil
	case 416:
		return lsm6ds3tr.ACCEL_SR_416, nil
	case 833:
		return lsm6ds3tr.ACCEL_SR_833, nil
	case 1666:
		return lsm6ds3tr.ACCEL_SR_1666, nil
	}
	return 0, fmt.Errorf("%w: %vHz", ErrSampleRate, hz)
}

// LSM6DSL 加速度计，寄存器访问交给 lsm6ds3tr 驱动
// 这里只补上驱动没有的软件复位和 XLDA 轮询
type LSM6DSL struct {
	bus  drivers.I2C
	dev  *lsm6ds3tr.Device
	opts Options
	log  *slog.Logger

	sleep func(time.Duration)
}

// NewLSM6DSL 创建驱动，不访问总线
func NewLSM6DSL(bus drivers.I2C, opts Options) *LSM6DSL {
	if opts.ResetPolls <= 0 {
		opts.ResetPolls = 100
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	dev := lsm6ds3tr.New(bus)
	if opts.Address != 0 {
		dev.Address = opts.Address
	}
	return &LSM6DSL{bus: bus, dev: dev, opts: opts, log: log, sleep: time.Sleep}
}

// Init 身份校验 -> 软件复位 -> 配置量程和数据率
// 身份不符时返回 ErrIdentityMismatch，设备不可信，调用方应直接退出
func (d *LSM6DSL) Init() error {
	if d.opts.SettleDelay > 0 {
		d.sleep(d.opts.SettleDelay)
	}

	if !d.dev.Connected() {
		return fmt.Errorf("%w: address 0x%02X", ErrIdentityMismatch, d.dev.Address)
	}
	d.log.Info("[SENSOR] WHO_AM_I ok", "addr", fmt.Sprintf("0x%02X", d.dev.Address))

	if err := d.Reset(); err != nil {
		return err
	}
	d.log.Info("[SENSOR] reset completed")

	// 块数据更新 + 地址自增，保证 6 字节连续读是同一帧
	if err := d.updateReg(lsm6ds3tr.CTRL3_C, ctrl3BDU|ctrl3IfInc, ctrl3BDU|ctrl3IfInc); err != nil {
		return err
	}
	err := d.dev.Configure(lsm6ds3tr.Configuration{
		AccelRange:      d.opts.AccelRange,
		AccelSampleRate: d.opts.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("configure accelerometer: %w", err)
	}
	d.log.Info("[SENSOR] accelerometer configured",
		"range", fmt.Sprintf("0x%02X", byte(d.opts.AccelRange)),
		"odr", fmt.Sprintf("0x%02X", byte(d.opts.SampleRate)))
	return nil
}

// Reset 置位 SW_RESET 并等待它自动清零
func (d *LSM6DSL) Reset() error {
	if err := d.updateReg(lsm6ds3tr.CTRL3_C, ctrl3SwReset, ctrl3SwReset); err != nil {
		return err
	}
	var v [1]byte
	for i := 0; i < d.opts.ResetPolls; i++ {
		if err := readReg(d.bus, d.dev.Address, lsm6ds3tr.CTRL3_C, v[:]); err != nil {
			return fmt.Errorf("poll reset: %w", err)
		}
		if v[0]&ctrl3SwReset == 0 {
			return nil
		}
	}
	return ErrResetTimeout
}

// DataReady STATUS_REG.XLDA
func (d *LSM6DSL) DataReady() (bool, error) {
	var st [1]byte
	if err := readReg(d.bus, d.dev.Address, lsm6ds3tr.STATUS, st[:]); err != nil {
		return false, fmt.Errorf("read STATUS_REG: %w", err)
	}
	return st[0]&statusXLDA != 0, nil
}

// ReadAcceleration 读取并换算成 g，驱动返回的是 µg
func (d *LSM6DSL) ReadAcceleration() (Acceleration, error) {
	x, y, z, err := d.dev.ReadAcceleration()
	if err != nil {
		return Acceleration{}, fmt.Errorf("read OUTX_L_XL: %w", err)
	}
	return Acceleration{
		X: float64(x) / 1e6,
		Y: float64(y) / 1e6,
		Z: float64(z) / 1e6,
	}, nil
}

// updateReg 读-改-写
func (d *LSM6DSL) updateReg(reg, mask, val byte) error {
	var v [1]byte
	if err := readReg(d.bus, d.dev.Address, reg, v[:]); err != nil {
		return fmt.Errorf("read 0x%02X: %w", reg, err)
	}
	v[0] = v[0]&^mask | val&mask
	if err := writeReg(d.bus, d.dev.Address, reg, v[0]); err != nil {
		return fmt.Errorf("write 0x%02X: %w", reg, err)
	}
	return nil
}
