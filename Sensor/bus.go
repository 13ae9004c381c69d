// Package Sensor 是 LSM6DSL 加速度计的驱动封装 (基于 tinygo drivers)，以及把
// I2C 事务转发到桥接单片机的串口传输层。
package Sensor

import (
	"io"

	"tinygo.org/x/drivers"
)

// SerialPort 定义串口操作接口，方便测试 Mock
type SerialPort interface {
	io.ReadWriteCloser
}

// readReg 从 reg 开始连续读取 len(buf) 个字节
func readReg(bus drivers.I2C, addr uint16, reg byte, buf []byte) error {
	return bus.Tx(addr, []byte{reg}, buf)
}

// writeReg 向 reg 写入一个字节
func writeReg(bus drivers.I2C, addr uint16, reg, val byte) error {
	return bus.Tx(addr, []byte{reg, val}, nil)
}
