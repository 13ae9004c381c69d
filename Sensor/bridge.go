package Sensor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
	"tinygo.org/x/drivers"
)

const (
	FramePreamble = 0xFE
	FrameEnd      = 0xFD
	AddrHost      = 0xE0 // 主机 (PC) 地址

	CmdWrite = 0x01 // 写寄存器
	CmdRead  = 0x02 // 读寄存器
	RespOK   = 0xFB
	RespNG   = 0xFA

	maxPayload = 16 // 桥接固件一次最多转发 16 字节
)

var (
	ErrNotOpen  = errors.New("bridge connection not open")
	ErrNAK      = errors.New("bridge rejected transfer")
	ErrNoReply  = errors.New("bridge timeout or no data")
	ErrBadFrame = errors.New("malformed bridge frame")
	ErrTooLong  = fmt.Errorf("transfer longer than %d bytes", maxPayload)
	ErrBadTx    = errors.New("unsupported i2c transaction")
)

var _ drivers.I2C = (*Bridge)(nil)

// Bridge 通过串口把 I2C 事务转发给 USB-I2C 桥接单片机，实现 drivers.I2C
//
// 请求帧: FE FE [设备地址] [E0] [Cmd] [Reg] [Len] [Data...] FD
// 应答帧: FE FE [E0] [设备地址] [Cmd|FB|FA] [Len] [Data...] FD
// 应答带长度字段，数据里出现 FD 也不会截断
type Bridge struct {
	Port     string
	BaudRate int
	conn     SerialPort
	pending  []byte
}

// NewBridge 创建新的桥接客户端
func NewBridge(port string, baudRate int) *Bridge {
	return &Bridge{
		Port:     port,
		BaudRate: baudRate,
	}
}

// Open 打开串口连接
func (b *Bridge) Open() error {
	config := &serial.Config{
		Name:        b.Port,
		Baud:        b.BaudRate,
		ReadTimeout: time.Millisecond * 50,
	}
	s, err := serial.OpenPort(config)
	if err != nil {
		return err
	}
	b.conn = s
	return nil
}

// Close 关闭串口连接
func (b *Bridge) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Tx 寄存器式 I2C 事务: w[0] 是寄存器地址
// r 非空时从该寄存器连续读 len(r) 字节；否则把 w[1:] 写进去
func (b *Bridge) Tx(addr uint16, w, r []byte) error {
	if len(w) == 0 || (len(r) > 0 && len(w) > 1) {
		return fmt.Errorf("%w: write %d, read %d", ErrBadTx, len(w), len(r))
	}
	dev, reg := byte(addr), w[0]
	if len(r) > 0 {
		return b.readRegisters(dev, reg, r)
	}
	return b.writeRegister(dev, reg, w[1:])
}

// writeRegister 写寄存器，等待桥接确认
func (b *Bridge) writeRegister(dev, reg byte, data []byte) error {
	if len(data) > maxPayload {
		return ErrTooLong
	}
	if err := b.send(dev, CmdWrite, reg, byte(len(data)), data); err != nil {
		return err
	}
	_, err := b.readResponse(dev, RespOK)
	return err
}

// readRegisters 连续读取 len(buf) 个寄存器
func (b *Bridge) readRegisters(dev, reg byte, buf []byte) error {
	if len(buf) > maxPayload {
		return ErrTooLong
	}
	if err := b.send(dev, CmdRead, reg, byte(len(buf)), nil); err != nil {
		return err
	}
	data, err := b.readResponse(dev, CmdRead)
	if err != nil {
		return err
	}
	if len(data) != len(buf) {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrBadFrame, len(buf), len(data))
	}
	copy(buf, data)
	return nil
}

// send 构造帧: FE FE [To] [From] [Cmd] [Reg] [Len] [Data...] FD
func (b *Bridge) send(dev, cmd, reg, n byte, data []byte) error {
	if b.conn == nil {
		return ErrNotOpen
	}
	frame := []byte{FramePreamble, FramePreamble, dev, AddrHost, cmd, reg, n}
	frame = append(frame, data...)
	frame = append(frame, FrameEnd)

	_, err := b.conn.Write(frame)
	return err
}

// readResponse 读取并解析应答，跳过串口回显
func (b *Bridge) readResponse(dev, expected byte) ([]byte, error) {
	if b.conn == nil {
		return nil, ErrNotOpen
	}

	buf := make([]byte, 256)
	for attempt := 0; attempt < 4; attempt++ {
		if data, ok, err := b.parse(dev, expected); ok || err != nil {
			return data, err
		}

		n, err := b.conn.Read(buf)
		if n > 0 {
			b.pending = append(b.pending, buf[:n]...)
			continue
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		// 串口读超时返回 0 字节
	}

	if data, ok, err := b.parse(dev, expected); ok || err != nil {
		return data, err
	}
	pending := hex.EncodeToString(b.pending)
	b.pending = nil
	if pending == "" {
		return nil, ErrNoReply
	}
	return nil, fmt.Errorf("%w: response header not found in: %s", ErrNoReply, pending)
}

// parse 在缓存里寻找完整的应答帧
// 返回 ok=false 表示数据还不够
func (b *Bridge) parse(dev, expected byte) ([]byte, bool, error) {
	// 查找目标帧头: FE FE [To=Host] [From=设备]
	header := []byte{FramePreamble, FramePreamble, AddrHost, dev}
	idx := bytes.Index(b.pending, header)
	if idx == -1 {
		return nil, false, nil
	}

	frame := b.pending[idx:]
	// Header(4) + Cmd + Len
	if len(frame) < 6 {
		return nil, false, nil
	}
	cmd := frame[4]
	n := int(frame[5])
	end := 6 + n
	if len(frame) < end+1 {
		return nil, false, nil
	}

	data := make([]byte, n)
	copy(data, frame[6:end])
	endMarker := frame[end]

	// 消费掉这一帧
	b.pending = append(b.pending[:0], frame[end+1:]...)

	if endMarker != FrameEnd {
		return nil, true, fmt.Errorf("%w: missing end marker", ErrBadFrame)
	}
	if cmd == RespNG {
		return nil, true, ErrNAK
	}
	if cmd != expected {
		return nil, true, fmt.Errorf("%w: unexpected command 0x%02X", ErrBadFrame, cmd)
	}
	return data, true, nil
}
