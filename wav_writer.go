package tremor

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// WavWriter 把三轴加速度按 16-bit PCM 三声道写入 WAV 文件
// 满量程 fullScale (g) 映射到 int16 的 ±32767
type WavWriter struct {
	file       *os.File
	buf        *bufio.Writer
	sampleRate int
	fullScale  float64
	dataSize   int
}

const wavChannels = 3

// NewWavWriter 创建新的 WAV 写入器
func NewWavWriter(filename string, sampleRate int, fullScale float64) (*WavWriter, error) {
	if fullScale <= 0 {
		return nil, fmt.Errorf("invalid full scale %v", fullScale)
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	// 写入占位符头 (44字节)
	// 稍后在 Close 时我们会回写正确的大小
	header := make([]byte, 44)
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, err
	}

	return &WavWriter{
		file:       f,
		buf:        bufio.NewWriter(f),
		sampleRate: sampleRate,
		fullScale:  fullScale,
	}, nil
}

// WriteSample 写入一帧 (X, Y, Z)
func (w *WavWriter) WriteSample(s Sample) error {
	var frame [wavChannels * 2]byte
	for i, v := range [wavChannels]float64{s.X, s.Y, s.Z} {
		v /= w.fullScale
		// 简单的限幅
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(int16(v*32767)))
	}

	n, err := w.buf.Write(frame[:])
	if err != nil {
		return err
	}
	w.dataSize += n
	return nil
}

// Close 关闭文件并回写 WAV 头
func (w *WavWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}

	blockAlign := wavChannels * 2
	totalSize := 36 + w.dataSize
	header := make([]byte, 44)

	// RIFF header
	copy(header[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:], uint32(totalSize))
	copy(header[8:], []byte("WAVE"))

	// fmt chunk
	copy(header[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:], 16)                              // Subchunk1Size (16 for PCM)
	binary.LittleEndian.PutUint16(header[20:], 1)                               // AudioFormat (1 for PCM)
	binary.LittleEndian.PutUint16(header[22:], wavChannels)                     // NumChannels (X, Y, Z)
	binary.LittleEndian.PutUint32(header[24:], uint32(w.sampleRate))            // SampleRate
	binary.LittleEndian.PutUint32(header[28:], uint32(w.sampleRate*blockAlign)) // ByteRate
	binary.LittleEndian.PutUint16(header[32:], uint16(blockAlign))              // BlockAlign
	binary.LittleEndian.PutUint16(header[34:], 16)                              // BitsPerSample

	// data chunk
	copy(header[36:], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:], uint32(w.dataSize))

	// Seek 到开头并写入
	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return err
	}
	if _, err := w.file.Write(header); err != nil {
		w.file.Close()
		return err
	}

	return w.file.Close()
}
